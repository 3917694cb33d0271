package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"tremo/internal/models"
	"tremo/internal/storage/sqlc"
)

// baseHandler carries the retry policy and cleanup shared by most job
// types. Concrete handlers embed it and override what differs.
type baseHandler struct {
	svc *Service
}

func (b *baseHandler) Update(_ context.Context, _ *sqlc.RunnerJob, _ UpdatePayload) error {
	// Progress is recorded by the state machine; most types carry no
	// partial payloads.
	return nil
}

// Error retries while the failure counter stays below the configured
// threshold, then finalizes and propagates the failure to the owning video.
func (b *baseHandler) Error(ctx context.Context, job *sqlc.RunnerJob, message string, failures int64) (bool, error) {
	if failures < b.svc.cfg.FailureThreshold {
		return true, nil
	}
	private, err := privatePayload(job)
	if err != nil {
		return false, err
	}
	if err := b.svc.gateway.JobFailed(ctx, private.VideoUUID, job.Type, message); err != nil {
		return false, err
	}
	return false, nil
}

func (b *baseHandler) Abort(_ context.Context, job *sqlc.RunnerJob) error {
	return b.svc.files.RemoveIncoming(job.Uuid)
}

func (b *baseHandler) Cancel(_ context.Context, job *sqlc.RunnerJob) error {
	return b.svc.files.RemoveIncoming(job.Uuid)
}

// promoteResultFile moves a required uploaded result file into the video's
// permanent directory and returns its new store-relative path.
func (b *baseHandler) promoteResultFile(result ResultPayload, field, videoUUID, subdir string) (string, error) {
	ref := findFile(result.Files, field)
	if ref == nil {
		return "", fmt.Errorf("result is missing the %s file", field)
	}
	dest := path.Join("videos", videoUUID, subdir, path.Base(ref.Path))
	return b.svc.files.Promote(ref.Path, dest)
}

// chainHLSJobs enqueues the dependent HLS jobs of a finished web video or
// audio merge job. Children inherit a priority bonus so continuations win
// against newly submitted root jobs, and stay unclaimable until the parent
// reaches completed.
func (b *baseHandler) chainHLSJobs(ctx context.Context, job *sqlc.RunnerJob, private *models.JobPrivatePayload, sourcePath string) error {
	for _, res := range private.ChainHLS {
		var payload models.VODHLSPayload
		payload.Input.VideoFileURL = sourcePath
		payload.Output.Resolution = res

		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal chained HLS payload: %w", err)
		}

		dep := job.ID
		_, err = b.svc.CreateJob(ctx, CreateParams{
			Type:           models.JobTypeVODHLSTranscoding,
			Payload:        data,
			Private:        &models.JobPrivatePayload{VideoUUID: private.VideoUUID},
			Priority:       job.Priority + models.JobPriorityChildBonus,
			DependsOnJobID: &dep,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// webVideoHandler finalizes vod-web-video-transcoding jobs: the transcoded
// file becomes a web video rendition and the configured HLS variants are
// chained as dependent jobs.
type webVideoHandler struct {
	baseHandler
}

func (h *webVideoHandler) Complete(ctx context.Context, job *sqlc.RunnerJob, result ResultPayload) error {
	private, err := privatePayload(job)
	if err != nil {
		return err
	}

	promoted, err := h.promoteResultFile(result, "videoFile", private.VideoUUID, "web-video")
	if err != nil {
		return err
	}
	if err := h.svc.gateway.AttachVideoFile(ctx, private.VideoUUID, "web-video", promoted); err != nil {
		return err
	}
	return h.chainHLSJobs(ctx, job, private, promoted)
}

// hlsHandler finalizes vod-hls-transcoding jobs: one playlist and one
// fragmented video file per resolution.
type hlsHandler struct {
	baseHandler
}

func (h *hlsHandler) Complete(ctx context.Context, job *sqlc.RunnerJob, result ResultPayload) error {
	private, err := privatePayload(job)
	if err != nil {
		return err
	}

	video, err := h.promoteResultFile(result, "videoFile", private.VideoUUID, "hls")
	if err != nil {
		return err
	}
	if err := h.svc.gateway.AttachVideoFile(ctx, private.VideoUUID, "hls-video", video); err != nil {
		return err
	}

	// The playlist is optional when the runner muxes a single file.
	if ref := findFile(result.Files, "resolutionPlaylistFile"); ref != nil {
		playlist, err := h.promoteResultFile(result, "resolutionPlaylistFile", private.VideoUUID, "hls")
		if err != nil {
			return err
		}
		if err := h.svc.gateway.AttachVideoFile(ctx, private.VideoUUID, "hls-playlist", playlist); err != nil {
			return err
		}
	}
	return nil
}

// audioMergeHandler finalizes vod-audio-merge-transcoding jobs: audio plus
// a still image become a web video rendition, with the same HLS chaining
// as web video jobs.
type audioMergeHandler struct {
	baseHandler
}

func (h *audioMergeHandler) Complete(ctx context.Context, job *sqlc.RunnerJob, result ResultPayload) error {
	private, err := privatePayload(job)
	if err != nil {
		return err
	}

	promoted, err := h.promoteResultFile(result, "videoFile", private.VideoUUID, "web-video")
	if err != nil {
		return err
	}
	if err := h.svc.gateway.AttachVideoFile(ctx, private.VideoUUID, "web-video", promoted); err != nil {
		return err
	}
	return h.chainHLSJobs(ctx, job, private, promoted)
}
