package handlers

import (
	"net/http"

	"tremo/internal/jobs"
	"tremo/internal/runners"

	"github.com/labstack/echo/v4"
)

// RunnerHandler はランナー登録APIのハンドラー
type RunnerHandler struct {
	registry   *runners.Registry
	jobService *jobs.Service
}

// NewRunnerHandler は新しいRunnerHandlerを作成
func NewRunnerHandler(registry *runners.Registry, jobService *jobs.Service) *RunnerHandler {
	return &RunnerHandler{registry: registry, jobService: jobService}
}

type registerRequest struct {
	RegistrationToken string `json:"registrationToken"`
	Name              string `json:"name"`
}

type registerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Register はランナーを新規登録
// POST /api/v1/runners/register
func (h *RunnerHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	runner, err := h.registry.Register(ctx, req.RegistrationToken, req.Name)
	if err != nil {
		return writeJobError(c, err)
	}

	return c.JSON(http.StatusOK, registerResponse{
		ID:    runner.ID,
		Name:  runner.Name,
		Token: runner.Token,
	})
}

type unregisterRequest struct {
	RunnerToken string `json:"runnerToken"`
}

// Unregister はランナー自身による登録解除
// 保持中のジョブはpendingに戻される
// POST /api/v1/runners/unregister
func (h *RunnerHandler) Unregister(c echo.Context) error {
	ctx := c.Request().Context()

	var req unregisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	runner, err := h.registry.Authenticate(ctx, req.RunnerToken)
	if err != nil {
		return writeJobError(c, err)
	}

	if err := h.jobService.RearmRunnerJobs(ctx, runner.ID); err != nil {
		return writeJobError(c, err)
	}
	if err := h.registry.Delete(ctx, runner.ID); err != nil {
		return writeJobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
