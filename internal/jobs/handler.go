package jobs

import (
	"context"
	"encoding/json"
	"log"

	"tremo/internal/storage/sqlc"
)

// FileRef points at an uploaded file already persisted to the incoming
// area of the file store.
type FileRef struct {
	Field string // multipart field name the file arrived under
	Path  string // store-relative path
}

// UpdatePayload carries an in-progress message from a runner.
type UpdatePayload struct {
	Progress *int64
	Body     json.RawMessage
	Files    []FileRef
}

// ResultPayload carries the final result of a job from a runner.
type ResultPayload struct {
	Body  json.RawMessage
	Files []FileRef
}

// Handler encapsulates what update/complete/error/abort/cancel mean for
// one job type. The shared state machine in Service never inspects payload
// contents; it dispatches on the job type tag only.
type Handler interface {
	// Update applies side effects of an in-progress message, such as
	// persisting incrementally uploaded media segments.
	Update(ctx context.Context, job *sqlc.RunnerJob, payload UpdatePayload) error

	// Complete persists the result artifacts and triggers any dependent
	// work. The job is in the completing state while this runs.
	Complete(ctx context.Context, job *sqlc.RunnerJob, result ResultPayload) error

	// Error decides between re-arming the job and finalizing it as
	// errored. failures is the counter value after the increment.
	// When the decision is terminal the handler propagates the failure
	// to the owning video before returning.
	Error(ctx context.Context, job *sqlc.RunnerJob, message string, failures int64) (retry bool, err error)

	// Abort releases partial resources before the job is re-armed.
	Abort(ctx context.Context, job *sqlc.RunnerJob) error

	// Cancel releases resources before the job is finalized as cancelled.
	Cancel(ctx context.Context, job *sqlc.RunnerJob) error
}

// VideoGateway is the narrow interface to the system owning the videos.
// The real implementation lives outside this subsystem; failures surface
// through the owning video's own status, not through the job API.
type VideoGateway interface {
	// AttachVideoFile records a finalized media artifact for a video.
	AttachVideoFile(ctx context.Context, videoUUID, kind, path string) error

	// AttachTranscript records a finalized transcript file for a video.
	AttachTranscript(ctx context.Context, videoUUID, language, path string) error

	// JobFailed reports a terminal job failure so the owner can react,
	// for example by falling back to local processing.
	JobFailed(ctx context.Context, videoUUID, jobType, message string) error
}

// LogGateway is a VideoGateway that only logs. Used when the coordinator
// runs without the surrounding video application attached.
type LogGateway struct{}

func (LogGateway) AttachVideoFile(_ context.Context, videoUUID, kind, path string) error {
	log.Printf("video %s: attached %s file %s", videoUUID, kind, path)
	return nil
}

func (LogGateway) AttachTranscript(_ context.Context, videoUUID, language, path string) error {
	log.Printf("video %s: attached transcript (%s) %s", videoUUID, language, path)
	return nil
}

func (LogGateway) JobFailed(_ context.Context, videoUUID, jobType, message string) error {
	log.Printf("video %s: %s job failed permanently: %s", videoUUID, jobType, message)
	return nil
}
