package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"tremo/internal/models"
	"tremo/internal/storage/sqlc"
)

// claimAttempts はクレームトランザクションの最大リトライ回数
const claimAttempts = 3

// JobRepository はランナージョブのデータアクセス層
type JobRepository struct {
	db *DB
}

// NewJobRepository は新しいJobRepositoryを作成
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create は新しいジョブを作成
func (r *JobRepository) Create(ctx context.Context, job *sqlc.RunnerJob) error {
	if job.Uuid == "" {
		job.Uuid = uuid.New().String()
	}
	if job.State == "" {
		job.State = models.JobStatePending
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	id, err := r.db.Queries.CreateJob(ctx, sqlc.CreateJobParams{
		Uuid:           job.Uuid,
		Type:           job.Type,
		State:          job.State,
		Payload:        job.Payload,
		PrivatePayload: job.PrivatePayload,
		Priority:       job.Priority,
		DependsOnJobID: job.DependsOnJobID,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	})
	if err != nil {
		return err
	}
	job.ID = id
	return nil
}

// GetByID はIDでジョブを取得
func (r *JobRepository) GetByID(ctx context.Context, id int64) (*sqlc.RunnerJob, error) {
	job, err := r.db.Queries.GetJobByID(ctx, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetByUUID は公開UUIDでジョブを取得
func (r *JobRepository) GetByUUID(ctx context.Context, jobUUID string) (*sqlc.RunnerJob, error) {
	job, err := r.db.Queries.GetJobByUUID(ctx, jobUUID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListEligible はクレーム可能なジョブ一覧を取得（優先度降順、作成日時昇順）
// 依存ジョブが未完了のジョブは除外される
func (r *JobRepository) ListEligible(ctx context.Context, limit int) ([]sqlc.RunnerJob, error) {
	if limit == 0 {
		limit = 10
	}
	return r.db.Queries.ListEligibleJobs(ctx, int64(limit))
}

// ListEligibleByType はクレーム可能なジョブのうち指定タイプのものを取得
// タイプの絞り込みはSQL側で行い、他タイプの滞留ジョブに枠を奪われない
func (r *JobRepository) ListEligibleByType(ctx context.Context, types []string, limit int) ([]sqlc.RunnerJob, error) {
	if limit == 0 {
		limit = 10
	}
	return r.db.Queries.ListEligibleJobsByType(ctx, sqlc.ListEligibleJobsByTypeParams{
		Types: types,
		Limit: int64(limit),
	})
}

// Claim はジョブをpendingからprocessingへ遷移させる
// トランザクション内で状態を再読み込みして検証するCAS操作であり、
// 他のランナーに先にクレームされていた場合は (false, nil) を返す
//
// immediateトランザクションにより競合側はbusy_timeoutで待機するが、
// それでもBUSYが返った場合はバックオフを挟んでリトライする
func (r *JobRepository) Claim(ctx context.Context, jobID int64, runnerID, processingJobToken string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < claimAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
			}
		}
		claimed, err := r.tryClaim(ctx, jobID, runnerID, processingJobToken)
		if err != nil {
			if isBusy(err) {
				lastErr = err
				continue
			}
			return false, err
		}
		return claimed, nil
	}
	return false, lastErr
}

func (r *JobRepository) tryClaim(ctx context.Context, jobID int64, runnerID, processingJobToken string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	qtx := r.db.Queries.WithTx(tx)

	// 状態を再読み込みして検証
	job, err := qtx.GetJobByID(ctx, jobID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if job.State != models.JobStatePending {
		return false, nil
	}

	// 依存ジョブが完了しているか確認
	if job.DependsOnJobID != nil {
		parent, err := qtx.GetJobByID(ctx, *job.DependsOnJobID)
		if err != nil && err != sql.ErrNoRows {
			return false, err
		}
		if err == nil && parent.State != models.JobStateCompleted {
			return false, nil
		}
	}

	now := time.Now()
	n, err := qtx.ClaimJob(ctx, sqlc.ClaimJobParams{
		ProcessingJobToken: &processingJobToken,
		RunnerID:           &runnerID,
		StartedAt:          &now,
		UpdatedAt:          now,
		ID:                 jobID,
	})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// isBusy はSQLiteのロック競合エラーかどうかを判定
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// UpdateProgress はジョブの進捗を更新
func (r *JobRepository) UpdateProgress(ctx context.Context, id int64, progress int64) error {
	return r.db.Queries.UpdateJobProgress(ctx, sqlc.UpdateJobProgressParams{
		Progress:  &progress,
		UpdatedAt: time.Now(),
		ID:        id,
	})
}

// IncrementFailures は失敗回数を加算して加算後の値を返す
func (r *JobRepository) IncrementFailures(ctx context.Context, id int64) (int64, error) {
	return r.db.Queries.IncrementJobFailures(ctx, sqlc.IncrementJobFailuresParams{
		UpdatedAt: time.Now(),
		ID:        id,
	})
}

// Rearm はジョブをpendingに戻す（クレーム情報と進捗をクリア）
func (r *JobRepository) Rearm(ctx context.Context, id int64) error {
	return r.db.Queries.RearmJob(ctx, sqlc.RearmJobParams{
		UpdatedAt: time.Now(),
		ID:        id,
	})
}

// MarkCompleting はジョブをcompleting状態にする
func (r *JobRepository) MarkCompleting(ctx context.Context, id int64) error {
	return r.db.Queries.MarkJobCompleting(ctx, sqlc.MarkJobCompletingParams{
		UpdatedAt: time.Now(),
		ID:        id,
	})
}

// Complete はジョブを完了状態にする
func (r *JobRepository) Complete(ctx context.Context, id int64, result *string) error {
	now := time.Now()
	return r.db.Queries.CompleteJob(ctx, sqlc.CompleteJobParams{
		Result:     result,
		FinishedAt: &now,
		UpdatedAt:  now,
		ID:         id,
	})
}

// Fail はジョブを失敗状態にする
func (r *JobRepository) Fail(ctx context.Context, id int64, errorMsg string) error {
	now := time.Now()
	return r.db.Queries.FailJob(ctx, sqlc.FailJobParams{
		Error:      &errorMsg,
		FinishedAt: &now,
		UpdatedAt:  now,
		ID:         id,
	})
}

// Cancel はジョブをキャンセル状態にする
func (r *JobRepository) Cancel(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.Queries.CancelJob(ctx, sqlc.CancelJobParams{
		FinishedAt: &now,
		UpdatedAt:  now,
		ID:         id,
	})
}

// Delete はジョブを削除
func (r *JobRepository) Delete(ctx context.Context, id int64) error {
	return r.db.Queries.DeleteJob(ctx, id)
}

// List はジョブ一覧を取得（状態と検索文字列で絞り込み、ページネーション対応）
// 総件数も合わせて返す
func (r *JobRepository) List(ctx context.Context, state, search string, limit, offset int) ([]sqlc.RunnerJob, int64, error) {
	if limit == 0 {
		limit = 20
	}

	var statePtr, searchPtr *string
	if state != "" {
		statePtr = &state
	}
	if search != "" {
		pattern := "%" + search + "%"
		searchPtr = &pattern
	}

	total, err := r.db.Queries.CountJobs(ctx, sqlc.CountJobsParams{
		State:  statePtr,
		Search: searchPtr,
	})
	if err != nil {
		return nil, 0, err
	}

	jobs, err := r.db.Queries.ListJobs(ctx, sqlc.ListJobsParams{
		State:  statePtr,
		Search: searchPtr,
		Limit:  int64(limit),
		Offset: int64(offset),
	})
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// ListRunnerActive はランナーが現在処理中のジョブ一覧を取得
func (r *JobRepository) ListRunnerActive(ctx context.Context, runnerID string) ([]sqlc.RunnerJob, error) {
	return r.db.Queries.ListRunnerActiveJobs(ctx, &runnerID)
}

// ListStaleProcessing は音信不通ランナーが保持するprocessingジョブを取得
func (r *JobRepository) ListStaleProcessing(ctx context.Context, lastContactBefore time.Time) ([]sqlc.RunnerJob, error) {
	return r.db.Queries.ListStaleProcessingJobs(ctx, lastContactBefore)
}

// DeleteFinishedBefore は指定日時より前に終了したジョブを削除
func (r *JobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.db.Queries.DeleteFinishedJobsBefore(ctx, &cutoff)
}

// CountByState は状態ごとのジョブ数を取得
func (r *JobRepository) CountByState(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Queries.CountJobsByState(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.State] = row.Count
	}
	return counts, nil
}
