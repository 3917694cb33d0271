package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"tremo/internal/models"
	"tremo/internal/storage/sqlc"
)

// transcriptionHandler finalizes video-transcription jobs: the uploaded
// subtitle file is stored as the video's transcript in the language the
// runner detected.
type transcriptionHandler struct {
	baseHandler
}

func (h *transcriptionHandler) Complete(ctx context.Context, job *sqlc.RunnerJob, result ResultPayload) error {
	private, err := privatePayload(job)
	if err != nil {
		return err
	}

	var body models.TranscriptionResult
	if len(result.Body) > 0 {
		if err := json.Unmarshal(result.Body, &body); err != nil {
			return fmt.Errorf("failed to unmarshal transcription result: %w", err)
		}
	}
	language := body.InputLanguage
	if language == "" {
		language = "unknown"
	}

	promoted, err := h.promoteResultFile(result, "vttFile", private.VideoUUID, "transcripts")
	if err != nil {
		return err
	}
	return h.svc.gateway.AttachTranscript(ctx, private.VideoUUID, language, promoted)
}
