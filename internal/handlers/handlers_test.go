package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tremo/internal/config"
	"tremo/internal/files"
	"tremo/internal/jobs"
	"tremo/internal/models"
	"tremo/internal/runners"
	"tremo/internal/storage"
)

const testAdminToken = "test-admin-token"

type testApp struct {
	e        *echo.Echo
	registry *runners.Registry
	jobs     *jobs.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fileStore, err := files.NewStore(t.TempDir())
	require.NoError(t, err)

	jobRepo := storage.NewJobRepository(db)
	runnerRepo := storage.NewRunnerRepository(db)
	regTokenRepo := storage.NewRegistrationTokenRepository(db)

	cfg := &config.Config{AdminToken: testAdminToken, FailureThreshold: 5}
	registry := runners.NewRegistry(runnerRepo, regTokenRepo)
	jobService := jobs.NewService(jobRepo, runnerRepo, fileStore, jobs.LogGateway{}, cfg)

	runnerHandler := NewRunnerHandler(registry, jobService)
	runnerJobHandler := NewRunnerJobHandler(registry, jobService, fileStore)
	adminHandler := NewAdminHandler(jobService, registry)

	e := echo.New()
	api := e.Group("/api/v1")

	runnersGroup := api.Group("/runners")
	runnersGroup.POST("/register", runnerHandler.Register)
	runnersGroup.POST("/unregister", runnerHandler.Unregister)

	jobsGroup := runnersGroup.Group("/jobs")
	jobsGroup.POST("/request", runnerJobHandler.Request)
	jobsGroup.POST("/:uuid/accept", runnerJobHandler.Accept)
	jobsGroup.POST("/:uuid/update", runnerJobHandler.Update)
	jobsGroup.POST("/:uuid/error", runnerJobHandler.Error)
	jobsGroup.POST("/:uuid/abort", runnerJobHandler.Abort)
	jobsGroup.POST("/:uuid/success", runnerJobHandler.Success)

	admin := api.Group("/admin", AdminAuth(cfg.AdminToken))
	admin.POST("/jobs", adminHandler.CreateJob)
	admin.GET("/jobs", adminHandler.ListJobs)
	admin.GET("/jobs/stats", adminHandler.Stats)
	admin.GET("/jobs/:uuid", adminHandler.GetJob)
	admin.POST("/jobs/:uuid/cancel", adminHandler.CancelJob)
	admin.DELETE("/jobs/:uuid", adminHandler.DeleteJob)
	admin.GET("/runners", adminHandler.ListRunners)
	admin.DELETE("/runners/:id", adminHandler.DeleteRunner)
	admin.POST("/registration-tokens", adminHandler.GenerateRegistrationToken)

	return &testApp{e: e, registry: registry, jobs: jobService}
}

func (a *testApp) postJSON(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) adminReq(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// postMultipart posts form fields plus file attachments keyed by field name.
func (a *testApp) postMultipart(t *testing.T, path string, fields map[string]string, fileFields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, filename := range fileFields {
		fw, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = io.Copy(fw, strings.NewReader("file bytes of "+filename))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) registerRunner(t *testing.T, name string) string {
	t.Helper()
	reg, err := a.registry.GenerateRegistrationToken(context.Background())
	require.NoError(t, err)

	rec := a.postJSON(t, "/api/v1/runners/register", map[string]string{
		"registrationToken": reg.Token,
		"name":              name,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestRegister_BadToken(t *testing.T) {
	app := newTestApp(t)
	rec := app.postJSON(t, "/api/v1/runners/register", map[string]string{
		"registrationToken": "bogus",
		"name":              "worker-1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_MissingName(t *testing.T) {
	app := newTestApp(t)
	rec := app.postJSON(t, "/api/v1/runners/register", map[string]string{
		"registrationToken": "whatever",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunnerJobLifecycle(t *testing.T) {
	app := newTestApp(t)
	runnerToken := app.registerRunner(t, "worker-1")

	job, err := app.jobs.CreateJob(context.Background(), jobs.CreateParams{
		Type:    models.JobTypeVideoStudioTranscoding,
		Payload: json.RawMessage(`{"input":{"videoFileUrl":"videos/src.mp4"}}`),
		Private: &models.JobPrivatePayload{VideoUUID: "v1"},
	})
	require.NoError(t, err)

	// Request: the pending job is offered, without server-side fields.
	rec := app.postJSON(t, "/api/v1/runners/jobs/request", map[string]interface{}{
		"runnerToken": runnerToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), job.Uuid)
	assert.NotContains(t, rec.Body.String(), "processingJobToken")
	assert.NotContains(t, rec.Body.String(), "privatePayload")

	// Accept.
	rec = app.postJSON(t, "/api/v1/runners/jobs/"+job.Uuid+"/accept", map[string]string{
		"runnerToken": runnerToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var accepted struct {
		Job      models.JobView `json:"job"`
		JobToken string         `json:"jobToken"`
	}
	decodeJSON(t, rec, &accepted)
	require.NotEmpty(t, accepted.JobToken)
	assert.Equal(t, models.JobStateProcessing, accepted.Job.State)

	// A second runner hitting accept races and loses.
	otherToken := app.registerRunner(t, "worker-2")
	rec = app.postJSON(t, "/api/v1/runners/jobs/"+job.Uuid+"/accept", map[string]string{
		"runnerToken": otherToken,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Progress update.
	rec = app.postMultipart(t, "/api/v1/runners/jobs/"+job.Uuid+"/update", map[string]string{
		"runnerToken": runnerToken,
		"jobToken":    accepted.JobToken,
		"progress":    "55",
	}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// Success with the result file attached.
	rec = app.postMultipart(t, "/api/v1/runners/jobs/"+job.Uuid+"/success", map[string]string{
		"runnerToken": runnerToken,
		"jobToken":    accepted.JobToken,
		"payload":     `{"ok":true}`,
	}, map[string]string{
		"videoFile": "edit.mp4",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// A replayed success is still accepted.
	rec = app.postMultipart(t, "/api/v1/runners/jobs/"+job.Uuid+"/success", map[string]string{
		"runnerToken": runnerToken,
		"jobToken":    accepted.JobToken,
	}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The admin view shows the final state.
	rec = app.adminReq(t, http.MethodGet, "/api/v1/admin/jobs/"+job.Uuid, testAdminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.JobView
	decodeJSON(t, rec, &view)
	assert.Equal(t, models.JobStateCompleted, view.State)
	require.NotNil(t, view.Progress)
	assert.EqualValues(t, 100, *view.Progress)
}

func TestUpdate_WrongJobToken(t *testing.T) {
	app := newTestApp(t)
	runnerToken := app.registerRunner(t, "worker-1")

	job, err := app.jobs.CreateJob(context.Background(), jobs.CreateParams{
		Type: models.JobTypeVideoTranscription,
	})
	require.NoError(t, err)

	rec := app.postJSON(t, "/api/v1/runners/jobs/"+job.Uuid+"/accept", map[string]string{
		"runnerToken": runnerToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.postMultipart(t, "/api/v1/runners/jobs/"+job.Uuid+"/update", map[string]string{
		"runnerToken": runnerToken,
		"jobToken":    "forged",
		"progress":    "10",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdate_InvalidProgress(t *testing.T) {
	app := newTestApp(t)
	runnerToken := app.registerRunner(t, "worker-1")

	rec := app.postMultipart(t, "/api/v1/runners/jobs/some-uuid/update", map[string]string{
		"runnerToken": runnerToken,
		"progress":    "140",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorEndpoint_UnknownJob(t *testing.T) {
	app := newTestApp(t)
	runnerToken := app.registerRunner(t, "worker-1")

	rec := app.postJSON(t, "/api/v1/runners/jobs/missing/error", map[string]string{
		"runnerToken": runnerToken,
		"message":     "boom",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnregister_RearmsJobs(t *testing.T) {
	app := newTestApp(t)
	runnerToken := app.registerRunner(t, "worker-1")

	job, err := app.jobs.CreateJob(context.Background(), jobs.CreateParams{
		Type: models.JobTypeVideoTranscription,
	})
	require.NoError(t, err)

	rec := app.postJSON(t, "/api/v1/runners/jobs/"+job.Uuid+"/accept", map[string]string{
		"runnerToken": runnerToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.postJSON(t, "/api/v1/runners/unregister", map[string]string{
		"runnerToken": runnerToken,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The job went back to pending and the token died with the runner.
	got, err := app.jobs.GetJob(context.Background(), job.Uuid)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatePending, got.State)

	rec = app.postJSON(t, "/api/v1/runners/jobs/request", map[string]string{
		"runnerToken": runnerToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuth(t *testing.T) {
	app := newTestApp(t)

	rec := app.adminReq(t, http.MethodGet, "/api/v1/admin/jobs", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.adminReq(t, http.MethodGet, "/api/v1/admin/jobs", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.adminReq(t, http.MethodGet, "/api/v1/admin/jobs", testAdminToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuth_DisabledWithoutToken(t *testing.T) {
	e := echo.New()
	e.GET("/admin/ping", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, AdminAuth(""))

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCreateJob(t *testing.T) {
	app := newTestApp(t)

	data, err := json.Marshal(map[string]interface{}{
		"type":    models.JobTypeVODWebVideoTranscoding,
		"payload": map[string]interface{}{"input": map[string]string{"videoFileUrl": "videos/src.mp4"}},
		"privatePayload": map[string]interface{}{
			"videoUuid": "v1",
		},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/jobs", bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view models.JobView
	decodeJSON(t, rec, &view)
	assert.Equal(t, models.JobStatePending, view.State)
	assert.NotEmpty(t, view.UUID)
	assert.NotContains(t, rec.Body.String(), "videoUuid", "private payload must not leak")
}

func TestAdminCreateJob_UnknownType(t *testing.T) {
	app := newTestApp(t)

	data, _ := json.Marshal(map[string]string{"type": "mystery"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/jobs", bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminListJobs_Pagination(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 3; i++ {
		_, err := app.jobs.CreateJob(context.Background(), jobs.CreateParams{
			Type: models.JobTypeVideoTranscription,
		})
		require.NoError(t, err)
	}

	rec := app.adminReq(t, http.MethodGet, "/api/v1/admin/jobs?limit=2", testAdminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total int64             `json:"total"`
		Data  []*models.JobView `json:"data"`
	}
	decodeJSON(t, rec, &resp)
	assert.EqualValues(t, 3, resp.Total)
	assert.Len(t, resp.Data, 2)
}

func TestAdminCancelAndStats(t *testing.T) {
	app := newTestApp(t)
	job, err := app.jobs.CreateJob(context.Background(), jobs.CreateParams{
		Type: models.JobTypeVideoTranscription,
	})
	require.NoError(t, err)

	rec := app.adminReq(t, http.MethodPost, "/api/v1/admin/jobs/"+job.Uuid+"/cancel", testAdminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Cancelling a finished job conflicts.
	rec = app.adminReq(t, http.MethodPost, "/api/v1/admin/jobs/"+job.Uuid+"/cancel", testAdminToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.adminReq(t, http.MethodGet, "/api/v1/admin/jobs/stats", testAdminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var counts map[string]int64
	decodeJSON(t, rec, &counts)
	assert.EqualValues(t, 1, counts[models.JobStateCancelled])
}

func TestAdminDeleteRunner_RearmsJobs(t *testing.T) {
	app := newTestApp(t)
	runnerToken := app.registerRunner(t, "worker-1")

	job, err := app.jobs.CreateJob(context.Background(), jobs.CreateParams{
		Type: models.JobTypeVideoTranscription,
	})
	require.NoError(t, err)
	rec := app.postJSON(t, "/api/v1/runners/jobs/"+job.Uuid+"/accept", map[string]string{
		"runnerToken": runnerToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.adminReq(t, http.MethodGet, "/api/v1/admin/runners", testAdminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), runnerToken, "runner tokens must not leak")
	var list []struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &list)
	require.Len(t, list, 1)

	rec = app.adminReq(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/runners/%s", list[0].ID), testAdminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	got, err := app.jobs.GetJob(context.Background(), job.Uuid)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatePending, got.State)
}
