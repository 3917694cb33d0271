package runners

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tremo/internal/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRegistry(storage.NewRunnerRepository(db), storage.NewRegistrationTokenRepository(db))
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	reg, err := registry.GenerateRegistrationToken(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, reg.Token)

	runner, err := registry.Register(ctx, reg.Token, "worker-1")
	require.NoError(t, err)
	require.NotEmpty(t, runner.ID)
	require.NotEmpty(t, runner.Token)
	assert.NotEqual(t, reg.Token, runner.Token)

	got, err := registry.Authenticate(ctx, runner.Token)
	require.NoError(t, err)
	assert.Equal(t, runner.ID, got.ID)
	assert.Equal(t, "worker-1", got.Name)
}

func TestAuthenticate_UpdatesLastContact(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	reg, err := registry.GenerateRegistrationToken(ctx)
	require.NoError(t, err)
	runner, err := registry.Register(ctx, reg.Token, "worker-1")
	require.NoError(t, err)

	before := runner.LastContact
	got, err := registry.Authenticate(ctx, runner.Token)
	require.NoError(t, err)

	refreshed, err := registry.Get(ctx, got.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.False(t, refreshed.LastContact.Before(before))
}

// Registration tokens and runner tokens live in separate namespaces and
// must never be accepted interchangeably.
func TestTokenNamespacesAreSeparate(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	reg, err := registry.GenerateRegistrationToken(ctx)
	require.NoError(t, err)
	runner, err := registry.Register(ctx, reg.Token, "worker-1")
	require.NoError(t, err)

	_, err = registry.Authenticate(ctx, reg.Token)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = registry.Register(ctx, runner.Token, "worker-2")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegister_UnknownToken(t *testing.T) {
	registry := newTestRegistry(t)
	_, err := registry.Register(context.Background(), "bogus", "worker-1")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_EmptyToken(t *testing.T) {
	registry := newTestRegistry(t)
	_, err := registry.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)
}

// A revoked registration token stops registering new runners, but runners
// already registered with it keep their identity.
func TestDeleteRegistrationToken_ExistingRunnersSurvive(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	reg, err := registry.GenerateRegistrationToken(ctx)
	require.NoError(t, err)
	runner, err := registry.Register(ctx, reg.Token, "worker-1")
	require.NoError(t, err)

	require.NoError(t, registry.DeleteRegistrationToken(ctx, reg.ID))

	_, err = registry.Register(ctx, reg.Token, "worker-2")
	require.ErrorIs(t, err, ErrUnauthorized)

	got, err := registry.Authenticate(ctx, runner.Token)
	require.NoError(t, err)
	assert.Equal(t, runner.ID, got.ID)
}
