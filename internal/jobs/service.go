package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"tremo/internal/config"
	"tremo/internal/files"
	"tremo/internal/models"
	"tremo/internal/storage"
	"tremo/internal/storage/sqlc"
	"tremo/internal/token"
)

var (
	// ErrNotFound means the referenced job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrUnauthorized means a runner or processing job token did not
	// match the job's current assignment.
	ErrUnauthorized = errors.New("invalid token for this job")

	// ErrConflict means the job state no longer matches the operation's
	// precondition: a lost claim race, a cancelled job, or a stale
	// message. Runners receiving it must stop working on the job.
	ErrConflict = errors.New("job is no longer valid")

	// ErrUnknownJobType means the requested job type is not registered.
	ErrUnknownJobType = errors.New("unknown job type")
)

// Service implements the job state machine over the job store, dispatching
// type-specific semantics to the registered handlers. It is stateless apart
// from its dependencies; any number of instances may serve requests
// concurrently against the same store.
type Service struct {
	jobs     *storage.JobRepository
	runners  *storage.RunnerRepository
	files    *files.Store
	gateway  VideoGateway
	cfg      *config.Config
	handlers map[string]Handler
}

// NewService creates the job service and registers one handler per job
// type. The handler map is fixed at startup; dispatch is a pure function
// of the job type tag.
func NewService(jobRepo *storage.JobRepository, runnerRepo *storage.RunnerRepository, fileStore *files.Store, gateway VideoGateway, cfg *config.Config) *Service {
	s := &Service{
		jobs:    jobRepo,
		runners: runnerRepo,
		files:   fileStore,
		gateway: gateway,
		cfg:     cfg,
	}
	s.handlers = map[string]Handler{
		models.JobTypeVODWebVideoTranscoding:   &webVideoHandler{baseHandler{svc: s}},
		models.JobTypeVODHLSTranscoding:        &hlsHandler{baseHandler{svc: s}},
		models.JobTypeVODAudioMergeTranscoding: &audioMergeHandler{baseHandler{svc: s}},
		models.JobTypeLiveRTMPHLSTranscoding:   &liveHandler{baseHandler{svc: s}},
		models.JobTypeVideoStudioTranscoding:   &studioHandler{baseHandler{svc: s}},
		models.JobTypeVideoTranscription:       &transcriptionHandler{baseHandler{svc: s}},
	}
	return s
}

func (s *Service) handler(jobType string) (Handler, error) {
	h, ok := s.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	return h, nil
}

// CreateParams describes a job to enqueue.
type CreateParams struct {
	Type           string
	Payload        json.RawMessage
	Private        *models.JobPrivatePayload
	Priority       int64
	DependsOnJobID *int64
}

// CreateJob enqueues a new pending job.
func (s *Service) CreateJob(ctx context.Context, params CreateParams) (*sqlc.RunnerJob, error) {
	if _, err := s.handler(params.Type); err != nil {
		return nil, err
	}
	payload := params.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	job := &sqlc.RunnerJob{
		Type:           params.Type,
		Payload:        string(payload),
		Priority:       params.Priority,
		DependsOnJobID: params.DependsOnJobID,
	}
	if params.Private != nil {
		data, err := json.Marshal(params.Private)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal private payload: %w", err)
		}
		private := string(data)
		job.PrivatePayload = &private
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// RequestJobs returns claimable pending jobs whose type is in the runner's
// requested set, ordered by priority then age. An empty set means all types.
// The type filter is applied in the query, so a backlog of other types can
// never crowd a requested type out of the offered window.
func (s *Service) RequestJobs(ctx context.Context, runner *sqlc.Runner, types []string) ([]sqlc.RunnerJob, error) {
	const maxAvailable = 10

	if len(types) == 0 {
		return s.jobs.ListEligible(ctx, maxAvailable)
	}
	return s.jobs.ListEligibleByType(ctx, types, maxAvailable)
}

// AcceptJob atomically claims a pending job for the runner and returns the
// job along with a fresh processing job token. Exactly one of any set of
// concurrent callers succeeds; the others receive ErrConflict and must
// poll again.
func (s *Service) AcceptJob(ctx context.Context, runner *sqlc.Runner, jobUUID string) (*sqlc.RunnerJob, string, error) {
	job, err := s.jobs.GetByUUID(ctx, jobUUID)
	if err != nil {
		return nil, "", err
	}
	if job == nil {
		return nil, "", ErrNotFound
	}

	jobToken, err := token.Generate()
	if err != nil {
		return nil, "", err
	}

	claimed, err := s.jobs.Claim(ctx, job.ID, runner.ID, jobToken)
	if err != nil {
		return nil, "", err
	}
	if !claimed {
		return nil, "", ErrConflict
	}

	job, err = s.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return nil, "", err
	}
	return job, jobToken, nil
}

// UpdateJob records progress and hands partial payloads to the job type
// handler. Duplicate or late updates on an already finished job are
// answered idempotently.
func (s *Service) UpdateJob(ctx context.Context, runner *sqlc.Runner, jobUUID, jobToken string, payload UpdatePayload) error {
	job, err := s.jobs.GetByUUID(ctx, jobUUID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}

	// Tolerate duplicate messages from a slow network. Files the replayed
	// message already uploaded are discarded; the job's incoming area was
	// cleaned when it left processing and must not be recreated.
	if job.State == models.JobStateCompleting || job.State == models.JobStateCompleted {
		s.cleanIncoming(job.Uuid)
		return nil
	}
	if job.State != models.JobStateProcessing {
		s.cleanIncoming(job.Uuid)
		return ErrConflict
	}
	if err := s.checkOwnership(job, runner.ID, &jobToken); err != nil {
		return err
	}

	if payload.Progress != nil {
		if err := s.jobs.UpdateProgress(ctx, job.ID, *payload.Progress); err != nil {
			return err
		}
	}

	h, err := s.handler(job.Type)
	if err != nil {
		return err
	}
	return h.Update(ctx, job, payload)
}

// ErrorJob records a runner-reported processing failure. The failure
// counter always increments; the handler decides whether the job is
// re-armed or finalized as errored.
func (s *Service) ErrorJob(ctx context.Context, runner *sqlc.Runner, jobUUID, message string) error {
	job, err := s.jobs.GetByUUID(ctx, jobUUID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}
	if job.State != models.JobStateProcessing {
		return ErrConflict
	}
	if err := s.checkOwnership(job, runner.ID, nil); err != nil {
		return err
	}

	failures, err := s.jobs.IncrementFailures(ctx, job.ID)
	if err != nil {
		return err
	}
	job.Failures = failures

	return s.settleFailure(ctx, job, message, failures)
}

// settleFailure asks the job type handler whether to retry, then re-arms
// or finalizes accordingly.
func (s *Service) settleFailure(ctx context.Context, job *sqlc.RunnerJob, message string, failures int64) error {
	h, err := s.handler(job.Type)
	if err != nil {
		return err
	}

	retry, err := h.Error(ctx, job, message, failures)
	if err != nil {
		return err
	}

	s.cleanIncoming(job.Uuid)
	if retry {
		return s.jobs.Rearm(ctx, job.ID)
	}
	return s.jobs.Fail(ctx, job.ID, message)
}

// AbortJob is the runner voluntarily giving the job up, for example while
// shutting down. The job returns to pending with no failure penalty.
func (s *Service) AbortJob(ctx context.Context, runner *sqlc.Runner, jobUUID, jobToken string) error {
	job, err := s.jobs.GetByUUID(ctx, jobUUID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}
	if job.State != models.JobStateProcessing {
		return ErrConflict
	}
	if err := s.checkOwnership(job, runner.ID, &jobToken); err != nil {
		return err
	}

	h, err := s.handler(job.Type)
	if err != nil {
		return err
	}
	if err := h.Abort(ctx, job); err != nil {
		return err
	}
	return s.jobs.Rearm(ctx, job.ID)
}

// SuccessJob finalizes a job. The handler persists the result artifacts
// while the job sits in the intermediate completing state; a handler
// failure is surfaced as a processing failure so the job is never left
// stuck in processing.
func (s *Service) SuccessJob(ctx context.Context, runner *sqlc.Runner, jobUUID, jobToken string, result ResultPayload) error {
	job, err := s.jobs.GetByUUID(ctx, jobUUID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}
	if job.State == models.JobStateCompleting || job.State == models.JobStateCompleted {
		s.cleanIncoming(job.Uuid)
		return nil
	}
	if job.State != models.JobStateProcessing {
		s.cleanIncoming(job.Uuid)
		return ErrConflict
	}
	if err := s.checkOwnership(job, runner.ID, &jobToken); err != nil {
		return err
	}

	h, err := s.handler(job.Type)
	if err != nil {
		return err
	}

	if err := s.jobs.MarkCompleting(ctx, job.ID); err != nil {
		return err
	}

	if err := h.Complete(ctx, job, result); err != nil {
		log.Printf("job %s completion failed: %v", job.Uuid, err)
		failures, ferr := s.jobs.IncrementFailures(ctx, job.ID)
		if ferr != nil {
			return ferr
		}
		job.Failures = failures
		return s.settleFailure(ctx, job, err.Error(), failures)
	}

	var resultStr *string
	if len(result.Body) > 0 {
		str := string(result.Body)
		resultStr = &str
	}
	if err := s.jobs.Complete(ctx, job.ID, resultStr); err != nil {
		return err
	}
	s.cleanIncoming(job.Uuid)
	return nil
}

// CancelJob is the administrator cancelling a pending or processing job.
// The runner is not preempted; it learns of the cancellation through the
// conflict response of its next message.
func (s *Service) CancelJob(ctx context.Context, jobUUID string) error {
	job, err := s.jobs.GetByUUID(ctx, jobUUID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}
	if job.State != models.JobStatePending && job.State != models.JobStateProcessing {
		return ErrConflict
	}

	h, err := s.handler(job.Type)
	if err != nil {
		return err
	}
	if err := h.Cancel(ctx, job); err != nil {
		return err
	}
	s.cleanIncoming(job.Uuid)
	return s.jobs.Cancel(ctx, job.ID)
}

// DeleteJob removes a job record, cancelling it first if still cancellable.
func (s *Service) DeleteJob(ctx context.Context, jobUUID string) error {
	job, err := s.jobs.GetByUUID(ctx, jobUUID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}

	if job.State == models.JobStatePending || job.State == models.JobStateProcessing {
		if err := s.CancelJob(ctx, jobUUID); err != nil && err != ErrConflict {
			return err
		}
	}

	s.cleanIncoming(job.Uuid)
	return s.jobs.Delete(ctx, job.ID)
}

// GetJob returns a job by its public UUID.
func (s *Service) GetJob(ctx context.Context, jobUUID string) (*sqlc.RunnerJob, error) {
	job, err := s.jobs.GetByUUID(ctx, jobUUID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

// ListJobs returns jobs filtered by state and free text search, with the
// total count for pagination.
func (s *Service) ListJobs(ctx context.Context, state, search string, limit, offset int) ([]sqlc.RunnerJob, int64, error) {
	return s.jobs.List(ctx, state, search, limit, offset)
}

// Stats returns job counts grouped by state.
func (s *Service) Stats(ctx context.Context) (map[string]int64, error) {
	return s.jobs.CountByState(ctx)
}

// RearmRunnerJobs returns all in-flight jobs of a runner to pending with
// no failure penalty. Used when a runner is deleted or unregisters while
// still owning jobs.
func (s *Service) RearmRunnerJobs(ctx context.Context, runnerID string) error {
	active, err := s.jobs.ListRunnerActive(ctx, runnerID)
	if err != nil {
		return err
	}
	for i := range active {
		job := &active[i]
		h, err := s.handler(job.Type)
		if err != nil {
			return err
		}
		if err := h.Abort(ctx, job); err != nil {
			log.Printf("failed to abort job %s of removed runner: %v", job.Uuid, err)
		}
		if err := s.jobs.Rearm(ctx, job.ID); err != nil {
			return err
		}
	}
	return nil
}

// cleanIncoming removes the incoming file area of a job. Best effort: a
// leftover directory is wasted disk, not corrupted state.
func (s *Service) cleanIncoming(jobUUID string) {
	if err := s.files.RemoveIncoming(jobUUID); err != nil {
		log.Printf("failed to clean incoming files of job %s: %v", jobUUID, err)
	}
}

// checkOwnership verifies the runner owns the job and, when jobToken is
// non-nil, that the processing job token matches the current assignment.
// Tokens are compared against the stored values; they carry no meaning of
// their own.
func (s *Service) checkOwnership(job *sqlc.RunnerJob, runnerID string, jobToken *string) error {
	if job.RunnerID == nil || *job.RunnerID != runnerID {
		return ErrUnauthorized
	}
	if jobToken != nil {
		if job.ProcessingJobToken == nil || *job.ProcessingJobToken != *jobToken {
			return ErrUnauthorized
		}
	}
	return nil
}

// privatePayload unmarshals the server-side context of a job.
func privatePayload(job *sqlc.RunnerJob) (*models.JobPrivatePayload, error) {
	if job.PrivatePayload == nil {
		return &models.JobPrivatePayload{}, nil
	}
	var p models.JobPrivatePayload
	if err := json.Unmarshal([]byte(*job.PrivatePayload), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal private payload of job %s: %w", job.Uuid, err)
	}
	return &p, nil
}

// findFile returns the uploaded file saved under the given multipart field.
func findFile(refs []FileRef, field string) *FileRef {
	for i := range refs {
		if refs[i].Field == field {
			return &refs[i]
		}
	}
	return nil
}
