package handlers

import (
	"errors"
	"net/http"

	"tremo/internal/jobs"
	"tremo/internal/runners"

	"github.com/labstack/echo/v4"
)

// writeJobError はジョブサービスのエラーをHTTPレスポンスに変換する
func writeJobError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	case errors.Is(err, jobs.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": "job is no longer valid"})
	case errors.Is(err, jobs.ErrUnauthorized), errors.Is(err, runners.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
	case errors.Is(err, jobs.ErrUnknownJobType):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
