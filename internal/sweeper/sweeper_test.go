package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tremo/internal/files"
	"tremo/internal/models"
	"tremo/internal/storage"
	"tremo/internal/storage/sqlc"
)

type testFixture struct {
	db        *storage.DB
	jobRepo   *storage.JobRepository
	fileStore *files.Store
	sweeper   *Sweeper
}

func newTestFixture(t *testing.T, staleAfter, retention time.Duration) *testFixture {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fileStore, err := files.NewStore(t.TempDir())
	require.NoError(t, err)

	jobRepo := storage.NewJobRepository(db)
	return &testFixture{
		db:        db,
		jobRepo:   jobRepo,
		fileStore: fileStore,
		sweeper:   New(jobRepo, fileStore, time.Minute, staleAfter, retention),
	}
}

func (f *testFixture) newClaimedJob(t *testing.T, runnerName string) *sqlc.RunnerJob {
	t.Helper()
	ctx := context.Background()

	runnerRepo := storage.NewRunnerRepository(f.db)
	runner := &sqlc.Runner{Name: runnerName, Token: "token-" + runnerName}
	require.NoError(t, runnerRepo.Create(ctx, runner))

	job := &sqlc.RunnerJob{Type: models.JobTypeVideoTranscription, Payload: "{}"}
	require.NoError(t, f.jobRepo.Create(ctx, job))
	claimed, err := f.jobRepo.Claim(ctx, job.ID, runner.ID, "job-token")
	require.NoError(t, err)
	require.True(t, claimed)
	return job
}

func TestSweep_RequeuesAbandonedJobs(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture(t, 5*time.Minute, 48*time.Hour)
	job := f.newClaimedJob(t, "silent")

	// Leftover upload from the vanished runner.
	rel, err := f.fileStore.SaveIncoming(job.Uuid, "partial.mp4", strings.NewReader("bytes"))
	require.NoError(t, err)

	// The runner has been silent for longer than the liveness threshold.
	_, err = f.db.Exec(`UPDATE runners SET last_contact = ?`, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	f.sweeper.sweep(ctx)

	got, err := f.jobRepo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatePending, got.State)
	assert.EqualValues(t, 0, got.Failures, "abandonment carries no failure penalty")
	assert.Nil(t, got.ProcessingJobToken)

	_, err = os.Stat(f.fileStore.Abs(rel))
	assert.True(t, os.IsNotExist(err), "stale incoming files must be cleaned")
}

func TestSweep_LeavesLiveRunnersAlone(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture(t, 5*time.Minute, 48*time.Hour)
	job := f.newClaimedJob(t, "busy")

	f.sweeper.sweep(ctx)

	got, err := f.jobRepo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateProcessing, got.State)
}

func TestSweep_PurgesExpiredFinishedJobs(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture(t, 5*time.Minute, 48*time.Hour)

	old := &sqlc.RunnerJob{Type: models.JobTypeVideoTranscription, Payload: "{}"}
	require.NoError(t, f.jobRepo.Create(ctx, old))
	require.NoError(t, f.jobRepo.Fail(ctx, old.ID, "boom"))
	_, err := f.db.Exec(`UPDATE runner_jobs SET finished_at = ? WHERE id = ?`,
		time.Now().Add(-72*time.Hour), old.ID)
	require.NoError(t, err)

	fresh := &sqlc.RunnerJob{Type: models.JobTypeVideoTranscription, Payload: "{}"}
	require.NoError(t, f.jobRepo.Create(ctx, fresh))
	require.NoError(t, f.jobRepo.Fail(ctx, fresh.ID, "boom"))

	f.sweeper.sweep(ctx)

	got, err := f.jobRepo.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "expired finished job must be purged")

	got, err = f.jobRepo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, got, "recent finished job must be kept")
}

func TestStartStop(t *testing.T) {
	f := newTestFixture(t, 5*time.Minute, 48*time.Hour)
	f.sweeper.Start(context.Background())
	f.sweeper.Stop()
}
