package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tremo/internal/jobs"
	"tremo/internal/models"
	"tremo/internal/runners"

	"github.com/labstack/echo/v4"
)

// AdminHandler は管理者向けAPIのハンドラー
type AdminHandler struct {
	jobService *jobs.Service
	registry   *runners.Registry
}

// NewAdminHandler は新しいAdminHandlerを作成
func NewAdminHandler(jobService *jobs.Service, registry *runners.Registry) *AdminHandler {
	return &AdminHandler{jobService: jobService, registry: registry}
}

// AdminAuth は管理者トークンを検証するミドルウェアを返す
// トークン未設定の場合は管理APIを全て拒否する
func AdminAuth(adminToken string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if adminToken == "" {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "admin API is disabled"})
			}
			auth := c.Request().Header.Get("Authorization")
			presented, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid admin token"})
			}
			return next(c)
		}
	}
}

type createJobRequest struct {
	Type      string                    `json:"type"`
	Payload   json.RawMessage           `json:"payload"`
	Private   *models.JobPrivatePayload `json:"privatePayload"`
	Priority  int64                     `json:"priority"`
	DependsOn string                    `json:"dependsOnJob,omitempty"`
}

// CreateJob は新しいジョブを登録する（外部の動画パイプラインから呼ばれる）
// POST /api/v1/admin/jobs
func (h *AdminHandler) CreateJob(c echo.Context) error {
	ctx := c.Request().Context()

	var req createJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if !models.KnownJobType(req.Type) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown job type"})
	}

	params := jobs.CreateParams{
		Type:     req.Type,
		Payload:  req.Payload,
		Private:  req.Private,
		Priority: req.Priority,
	}
	if req.DependsOn != "" {
		parent, err := h.jobService.GetJob(ctx, req.DependsOn)
		if err != nil {
			return writeJobError(c, err)
		}
		params.DependsOnJobID = &parent.ID
	}

	job, err := h.jobService.CreateJob(ctx, params)
	if err != nil {
		return writeJobError(c, err)
	}
	return c.JSON(http.StatusOK, models.NewJobView(job))
}

// ListJobs はジョブ一覧を取得（状態と全文検索で絞り込み、ページネーション対応）
// GET /api/v1/admin/jobs
func (h *AdminHandler) ListJobs(c echo.Context) error {
	ctx := c.Request().Context()

	state := c.QueryParam("state")
	if state != "" && !models.KnownJobState(state) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown job state"})
	}

	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	list, total, err := h.jobService.ListJobs(ctx, state, c.QueryParam("search"), limit, offset)
	if err != nil {
		return writeJobError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"total": total,
		"data":  models.NewJobViews(list),
	})
}

// GetJob はジョブを取得
// GET /api/v1/admin/jobs/:uuid
func (h *AdminHandler) GetJob(c echo.Context) error {
	ctx := c.Request().Context()

	job, err := h.jobService.GetJob(ctx, c.Param("uuid"))
	if err != nil {
		return writeJobError(c, err)
	}
	return c.JSON(http.StatusOK, models.NewJobView(job))
}

// Stats は状態ごとのジョブ数を取得
// GET /api/v1/admin/jobs/stats
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.jobService.Stats(ctx)
	if err != nil {
		return writeJobError(c, err)
	}
	return c.JSON(http.StatusOK, counts)
}

// CancelJob はジョブをキャンセル
// POST /api/v1/admin/jobs/:uuid/cancel
func (h *AdminHandler) CancelJob(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.jobService.CancelJob(ctx, c.Param("uuid")); err != nil {
		return writeJobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteJob はジョブを削除（キャンセル可能な場合は先にキャンセル）
// DELETE /api/v1/admin/jobs/:uuid
func (h *AdminHandler) DeleteJob(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.jobService.DeleteJob(ctx, c.Param("uuid")); err != nil {
		return writeJobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type runnerView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	LastContact time.Time `json:"lastContact"`
}

// ListRunners はランナー一覧を取得
// GET /api/v1/admin/runners
func (h *AdminHandler) ListRunners(c echo.Context) error {
	ctx := c.Request().Context()

	list, err := h.registry.List(ctx)
	if err != nil {
		return writeJobError(c, err)
	}

	views := make([]runnerView, len(list))
	for i, r := range list {
		views[i] = runnerView{
			ID:          r.ID,
			Name:        r.Name,
			CreatedAt:   r.CreatedAt,
			LastContact: r.LastContact,
		}
	}
	return c.JSON(http.StatusOK, views)
}

// DeleteRunner はランナーを削除
// 保持中のジョブは失敗扱いにせずpendingに戻す
// DELETE /api/v1/admin/runners/:id
func (h *AdminHandler) DeleteRunner(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	runner, err := h.registry.Get(ctx, id)
	if err != nil {
		return writeJobError(c, err)
	}
	if runner == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "runner not found"})
	}

	if err := h.jobService.RearmRunnerJobs(ctx, id); err != nil {
		return writeJobError(c, err)
	}
	if err := h.registry.Delete(ctx, id); err != nil {
		return writeJobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GenerateRegistrationToken は登録トークンを発行
// POST /api/v1/admin/registration-tokens
func (h *AdminHandler) GenerateRegistrationToken(c echo.Context) error {
	ctx := c.Request().Context()

	reg, err := h.registry.GenerateRegistrationToken(ctx)
	if err != nil {
		return writeJobError(c, err)
	}
	return c.JSON(http.StatusOK, reg)
}

// ListRegistrationTokens は登録トークン一覧を取得
// GET /api/v1/admin/registration-tokens
func (h *AdminHandler) ListRegistrationTokens(c echo.Context) error {
	ctx := c.Request().Context()

	tokens, err := h.registry.ListRegistrationTokens(ctx)
	if err != nil {
		return writeJobError(c, err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// DeleteRegistrationToken は登録トークンを失効させる
// DELETE /api/v1/admin/registration-tokens/:id
func (h *AdminHandler) DeleteRegistrationToken(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid token id"})
	}
	if err := h.registry.DeleteRegistrationToken(ctx, id); err != nil {
		return writeJobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
