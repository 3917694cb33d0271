package storage

import (
	"context"
	"database/sql"
	"time"

	"tremo/internal/storage/sqlc"
)

// RegistrationTokenRepository はランナー登録トークンのデータアクセス層
type RegistrationTokenRepository struct {
	db *DB
}

// NewRegistrationTokenRepository は新しいRegistrationTokenRepositoryを作成
func NewRegistrationTokenRepository(db *DB) *RegistrationTokenRepository {
	return &RegistrationTokenRepository{db: db}
}

// Create は新しい登録トークンを作成
func (r *RegistrationTokenRepository) Create(ctx context.Context, token *sqlc.RunnerRegistrationToken) error {
	token.CreatedAt = time.Now()
	id, err := r.db.Queries.CreateRegistrationToken(ctx, sqlc.CreateRegistrationTokenParams{
		Token:     token.Token,
		CreatedAt: token.CreatedAt,
	})
	if err != nil {
		return err
	}
	token.ID = id
	return nil
}

// GetByToken はトークン文字列で登録トークンを取得
func (r *RegistrationTokenRepository) GetByToken(ctx context.Context, token string) (*sqlc.RunnerRegistrationToken, error) {
	row, err := r.db.Queries.GetRegistrationTokenByToken(ctx, token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// List は登録トークン一覧を取得
func (r *RegistrationTokenRepository) List(ctx context.Context) ([]sqlc.RunnerRegistrationToken, error) {
	return r.db.Queries.ListRegistrationTokens(ctx)
}

// Delete は登録トークンを削除（既存ランナーの認証には影響しない）
func (r *RegistrationTokenRepository) Delete(ctx context.Context, id int64) error {
	return r.db.Queries.DeleteRegistrationToken(ctx, id)
}
