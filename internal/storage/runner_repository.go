package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"tremo/internal/storage/sqlc"
)

// RunnerRepository は登録済みランナーのデータアクセス層
type RunnerRepository struct {
	db *DB
}

// NewRunnerRepository は新しいRunnerRepositoryを作成
func NewRunnerRepository(db *DB) *RunnerRepository {
	return &RunnerRepository{db: db}
}

// Create は新しいランナーを作成
func (r *RunnerRepository) Create(ctx context.Context, runner *sqlc.Runner) error {
	if runner.ID == "" {
		runner.ID = uuid.New().String()
	}
	now := time.Now()
	runner.CreatedAt = now
	runner.LastContact = now

	return r.db.Queries.CreateRunner(ctx, sqlc.CreateRunnerParams{
		ID:                  runner.ID,
		Name:                runner.Name,
		Token:               runner.Token,
		RegistrationTokenID: runner.RegistrationTokenID,
		CreatedAt:           runner.CreatedAt,
		LastContact:         runner.LastContact,
	})
}

// GetByID はIDでランナーを取得
func (r *RunnerRepository) GetByID(ctx context.Context, id string) (*sqlc.Runner, error) {
	runner, err := r.db.Queries.GetRunnerByID(ctx, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &runner, nil
}

// GetByToken はランナートークンでランナーを取得
func (r *RunnerRepository) GetByToken(ctx context.Context, token string) (*sqlc.Runner, error) {
	runner, err := r.db.Queries.GetRunnerByToken(ctx, token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &runner, nil
}

// Touch は最終コンタクト日時を更新
func (r *RunnerRepository) Touch(ctx context.Context, id string) error {
	return r.db.Queries.TouchRunner(ctx, sqlc.TouchRunnerParams{
		LastContact: time.Now(),
		ID:          id,
	})
}

// List はランナー一覧を取得
func (r *RunnerRepository) List(ctx context.Context) ([]sqlc.Runner, error) {
	return r.db.Queries.ListRunners(ctx)
}

// Delete はランナーを削除
func (r *RunnerRepository) Delete(ctx context.Context, id string) error {
	return r.db.Queries.DeleteRunner(ctx, id)
}
