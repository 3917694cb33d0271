package sweeper

import (
	"context"
	"log"
	"sync"
	"time"

	"tremo/internal/files"
	"tremo/internal/storage"
)

// Sweeper periodically reclaims jobs from abandoned runners and purges
// finished jobs past the retention window. It runs outside the request
// path; the state machine itself never blocks on it.
type Sweeper struct {
	jobRepo   *storage.JobRepository
	fileStore *files.Store

	interval   time.Duration
	staleAfter time.Duration
	retention  time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a sweeper.
func New(jobRepo *storage.JobRepository, fileStore *files.Store, interval, staleAfter, retention time.Duration) *Sweeper {
	return &Sweeper{
		jobRepo:    jobRepo,
		fileStore:  fileStore,
		interval:   interval,
		staleAfter: staleAfter,
		retention:  retention,
		stop:       make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	log.Println("Sweeper started")
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("Sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	s.requeueAbandoned(ctx)
	s.purgeOldJobs(ctx)
}

// requeueAbandoned re-arms processing jobs whose runner has been silent
// for longer than the liveness threshold. No failure penalty: the runner
// vanished, the job did not fail.
func (s *Sweeper) requeueAbandoned(ctx context.Context) {
	cutoff := time.Now().Add(-s.staleAfter)
	stale, err := s.jobRepo.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		log.Printf("Error listing stale jobs: %v", err)
		return
	}

	for i := range stale {
		job := &stale[i]
		if err := s.fileStore.RemoveIncoming(job.Uuid); err != nil {
			log.Printf("Error cleaning files of abandoned job %s: %v", job.Uuid, err)
		}
		if err := s.jobRepo.Rearm(ctx, job.ID); err != nil {
			log.Printf("Error re-arming abandoned job %s: %v", job.Uuid, err)
			continue
		}
		log.Printf("Re-armed job %s abandoned by silent runner", job.Uuid)
	}
}

// purgeOldJobs deletes finished jobs older than the retention window.
func (s *Sweeper) purgeOldJobs(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	n, err := s.jobRepo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("Error purging old jobs: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Purged %d finished jobs", n)
	}
}
