package jobs

import (
	"context"

	"tremo/internal/storage/sqlc"
)

// studioHandler finalizes video-studio-transcoding jobs: the rendered edit
// replaces the source as a new studio rendition of the video.
type studioHandler struct {
	baseHandler
}

func (h *studioHandler) Complete(ctx context.Context, job *sqlc.RunnerJob, result ResultPayload) error {
	private, err := privatePayload(job)
	if err != nil {
		return err
	}

	promoted, err := h.promoteResultFile(result, "videoFile", private.VideoUUID, "studio")
	if err != nil {
		return err
	}
	return h.svc.gateway.AttachVideoFile(ctx, private.VideoUUID, "studio-video", promoted)
}
