package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tremo/internal/files"
	"tremo/internal/jobs"
	"tremo/internal/models"
	"tremo/internal/runners"

	"github.com/labstack/echo/v4"
)

// RunnerJobHandler はランナー向けジョブAPIのハンドラー
type RunnerJobHandler struct {
	registry   *runners.Registry
	jobService *jobs.Service
	fileStore  *files.Store
}

// NewRunnerJobHandler は新しいRunnerJobHandlerを作成
func NewRunnerJobHandler(registry *runners.Registry, jobService *jobs.Service, fileStore *files.Store) *RunnerJobHandler {
	return &RunnerJobHandler{registry: registry, jobService: jobService, fileStore: fileStore}
}

type requestJobsRequest struct {
	RunnerToken string   `json:"runnerToken"`
	Types       []string `json:"types"`
}

// Request はクレーム可能なジョブ一覧を返す
// POST /api/v1/runners/jobs/request
func (h *RunnerJobHandler) Request(c echo.Context) error {
	ctx := c.Request().Context()

	var req requestJobsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	runner, err := h.registry.Authenticate(ctx, req.RunnerToken)
	if err != nil {
		return writeJobError(c, err)
	}

	available, err := h.jobService.RequestJobs(ctx, runner, req.Types)
	if err != nil {
		return writeJobError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"availableJobs": models.NewJobViews(available),
	})
}

type acceptJobRequest struct {
	RunnerToken string `json:"runnerToken"`
}

// Accept はジョブをアトミックにクレームする
// 別のランナーが先にクレームしていた場合は409を返す
// POST /api/v1/runners/jobs/:uuid/accept
func (h *RunnerJobHandler) Accept(c echo.Context) error {
	ctx := c.Request().Context()

	var req acceptJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	runner, err := h.registry.Authenticate(ctx, req.RunnerToken)
	if err != nil {
		return writeJobError(c, err)
	}

	job, jobToken, err := h.jobService.AcceptJob(ctx, runner, c.Param("uuid"))
	if err != nil {
		return writeJobError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"job":      models.NewJobView(job),
		"jobToken": jobToken,
	})
}

// Update は進捗と部分ペイロードを記録する
// ライブ配信ジョブではプレイリストやセグメントのファイルが添付される
// POST /api/v1/runners/jobs/:uuid/update (multipart)
func (h *RunnerJobHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	runner, err := h.registry.Authenticate(ctx, c.FormValue("runnerToken"))
	if err != nil {
		return writeJobError(c, err)
	}

	payload := jobs.UpdatePayload{}
	if v := c.FormValue("progress"); v != "" {
		progress, err := strconv.ParseInt(v, 10, 64)
		if err != nil || progress < 0 || progress > 100 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid progress"})
		}
		payload.Progress = &progress
	}
	if v := c.FormValue("payload"); v != "" {
		payload.Body = json.RawMessage(v)
	}

	refs, err := h.saveUploads(c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	payload.Files = refs

	if err := h.jobService.UpdateJob(ctx, runner, c.Param("uuid"), c.FormValue("jobToken"), payload); err != nil {
		return writeJobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type errorJobRequest struct {
	RunnerToken string `json:"runnerToken"`
	Message     string `json:"message"`
}

// Error はランナーからの処理失敗報告
// POST /api/v1/runners/jobs/:uuid/error
func (h *RunnerJobHandler) Error(c echo.Context) error {
	ctx := c.Request().Context()

	var req errorJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	runner, err := h.registry.Authenticate(ctx, req.RunnerToken)
	if err != nil {
		return writeJobError(c, err)
	}

	if err := h.jobService.ErrorJob(ctx, runner, c.Param("uuid"), req.Message); err != nil {
		return writeJobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type abortJobRequest struct {
	RunnerToken string `json:"runnerToken"`
	JobToken    string `json:"jobToken"`
	Reason      string `json:"reason"`
}

// Abort はランナーによる自発的なジョブ放棄
// 失敗回数は加算されず、ジョブはpendingに戻る
// POST /api/v1/runners/jobs/:uuid/abort
func (h *RunnerJobHandler) Abort(c echo.Context) error {
	ctx := c.Request().Context()

	var req abortJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	runner, err := h.registry.Authenticate(ctx, req.RunnerToken)
	if err != nil {
		return writeJobError(c, err)
	}

	if err := h.jobService.AbortJob(ctx, runner, c.Param("uuid"), req.JobToken); err != nil {
		return writeJobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Success はジョブの成功報告
// 結果ファイルはステートマシンのトランザクション外でディスクへ保存される
// POST /api/v1/runners/jobs/:uuid/success (multipart)
func (h *RunnerJobHandler) Success(c echo.Context) error {
	ctx := c.Request().Context()

	runner, err := h.registry.Authenticate(ctx, c.FormValue("runnerToken"))
	if err != nil {
		return writeJobError(c, err)
	}

	result := jobs.ResultPayload{}
	if v := c.FormValue("payload"); v != "" {
		result.Body = json.RawMessage(v)
	}

	refs, err := h.saveUploads(c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	result.Files = refs

	if err := h.jobService.SuccessJob(ctx, runner, c.Param("uuid"), c.FormValue("jobToken"), result); err != nil {
		return writeJobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// saveUploads はmultipartの添付ファイルをすべてincoming領域へ保存
func (h *RunnerJobHandler) saveUploads(c echo.Context) ([]jobs.FileRef, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// multipartでないリクエストは添付なしとして扱う
		return nil, nil
	}

	jobUUID := c.Param("uuid")
	var refs []jobs.FileRef
	for field, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			rel, err := h.fileStore.SaveIncoming(jobUUID, fh.Filename, f)
			f.Close()
			if err != nil {
				return nil, err
			}
			refs = append(refs, jobs.FileRef{Field: field, Path: rel})
		}
	}
	return refs, nil
}
