package jobs

import (
	"context"
	"path"

	"tremo/internal/storage/sqlc"
)

// liveHandler handles live-rtmp-hls-transcoding jobs. It is the only type
// whose update messages carry file attachments: playlists and segments are
// published to the live directory as they arrive, because viewers consume
// them while the job is still running.
type liveHandler struct {
	baseHandler
}

func (h *liveHandler) Update(_ context.Context, job *sqlc.RunnerJob, payload UpdatePayload) error {
	private, err := privatePayload(job)
	if err != nil {
		return err
	}
	for _, ref := range payload.Files {
		dest := path.Join("live", private.VideoUUID, path.Base(ref.Path))
		if _, err := h.svc.files.Promote(ref.Path, dest); err != nil {
			return err
		}
	}
	return nil
}

func (h *liveHandler) Complete(_ context.Context, job *sqlc.RunnerJob, _ ResultPayload) error {
	// Segments were already published through updates. Completion only
	// means the stream ended.
	return h.svc.files.RemoveIncoming(job.Uuid)
}

// Error never re-arms a live job: the stream that failed cannot be
// replayed by another runner.
func (h *liveHandler) Error(ctx context.Context, job *sqlc.RunnerJob, message string, _ int64) (bool, error) {
	private, err := privatePayload(job)
	if err != nil {
		return false, err
	}
	if err := h.svc.gateway.JobFailed(ctx, private.VideoUUID, job.Type, message); err != nil {
		return false, err
	}
	return false, nil
}

func (h *liveHandler) Cancel(ctx context.Context, job *sqlc.RunnerJob) error {
	private, err := privatePayload(job)
	if err != nil {
		return err
	}
	// Remove already published segments along with the incoming area.
	if err := h.svc.files.Remove(path.Join("live", private.VideoUUID)); err != nil {
		return err
	}
	return h.svc.files.RemoveIncoming(job.Uuid)
}
