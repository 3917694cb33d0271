package runners

import (
	"context"
	"errors"
	"log"

	"tremo/internal/storage"
	"tremo/internal/storage/sqlc"
	"tremo/internal/token"
)

// ErrUnauthorized means the presented registration or runner token is
// unknown. The two namespaces are checked against separate tables and are
// never accepted interchangeably.
var ErrUnauthorized = errors.New("unknown token")

// Registry manages runner identities and their credentials.
type Registry struct {
	runners *storage.RunnerRepository
	tokens  *storage.RegistrationTokenRepository
}

// NewRegistry creates a runner registry.
func NewRegistry(runnerRepo *storage.RunnerRepository, tokenRepo *storage.RegistrationTokenRepository) *Registry {
	return &Registry{runners: runnerRepo, tokens: tokenRepo}
}

// Register mints a new runner identity. The registration token authorizes
// this one creation only; the runner authenticates with its own distinct
// token afterwards.
func (r *Registry) Register(ctx context.Context, registrationToken, name string) (*sqlc.Runner, error) {
	reg, err := r.tokens.GetByToken(ctx, registrationToken)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrUnauthorized
	}

	runnerToken, err := token.Generate()
	if err != nil {
		return nil, err
	}

	runner := &sqlc.Runner{
		Name:                name,
		Token:               runnerToken,
		RegistrationTokenID: &reg.ID,
	}
	if err := r.runners.Create(ctx, runner); err != nil {
		return nil, err
	}
	return runner, nil
}

// Authenticate resolves a runner token and updates the runner's last
// contact timestamp. The timestamp update is best effort: a failure is
// logged but never fails the request being authenticated.
func (r *Registry) Authenticate(ctx context.Context, runnerToken string) (*sqlc.Runner, error) {
	if runnerToken == "" {
		return nil, ErrUnauthorized
	}
	runner, err := r.runners.GetByToken(ctx, runnerToken)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, ErrUnauthorized
	}

	if err := r.runners.Touch(ctx, runner.ID); err != nil {
		log.Printf("failed to update last contact of runner %s: %v", runner.ID, err)
	}
	return runner, nil
}

// List returns all registered runners.
func (r *Registry) List(ctx context.Context) ([]sqlc.Runner, error) {
	return r.runners.List(ctx)
}

// Get returns a runner by id, or nil when unknown.
func (r *Registry) Get(ctx context.Context, id string) (*sqlc.Runner, error) {
	return r.runners.GetByID(ctx, id)
}

// Delete removes a runner identity. Historical jobs keep existing; the
// caller is responsible for re-arming in-flight ones.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.runners.Delete(ctx, id)
}

// GenerateRegistrationToken creates a new registration token.
func (r *Registry) GenerateRegistrationToken(ctx context.Context) (*sqlc.RunnerRegistrationToken, error) {
	t, err := token.Generate()
	if err != nil {
		return nil, err
	}
	reg := &sqlc.RunnerRegistrationToken{Token: t}
	if err := r.tokens.Create(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// ListRegistrationTokens returns all registration tokens.
func (r *Registry) ListRegistrationTokens(ctx context.Context) ([]sqlc.RunnerRegistrationToken, error) {
	return r.tokens.List(ctx)
}

// DeleteRegistrationToken revokes a registration token. Runners already
// registered with it keep working.
func (r *Registry) DeleteRegistrationToken(ctx context.Context, id int64) error {
	return r.tokens.Delete(ctx, id)
}
