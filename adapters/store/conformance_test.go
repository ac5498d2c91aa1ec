package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func ptr[T any](v T) *T { return &v }

func emailIdentity(email string, at time.Time) *core.Identity {
	return &core.Identity{
		ID:           uuid.NewString(),
		Email:        ptr(email),
		PasswordHash: ptr("$argon2id$digest"),
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func walletIdentity(address string, at time.Time) *core.Identity {
	return &core.Identity{
		ID:            uuid.NewString(),
		WalletAddress: ptr(address),
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

// testIdentityStore exercises the IdentityStore contract against s.
// Emails are made unique per run so persistent backends can be reused.
func testIdentityStore(t *testing.T, s ports.IdentityStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	suffix := uuid.NewString()[:8]
	email := "Alice." + suffix + "@Example.com"
	wallet := "0x" + uuid.NewString()[:8] + "3F3E94C9b9A09f33669435E7Ef1BeAed"

	t.Run("insert and find by email", func(t *testing.T) {
		in := emailIdentity(email, now)
		require.NoError(t, s.Insert(ctx, in))

		got, err := s.FindByEmail(ctx, "  alice."+suffix+"@example.COM")
		require.NoError(t, err)
		assert.Equal(t, in.ID, got.ID)
		assert.Equal(t, email, *got.Email, "email is stored as given")
		assert.True(t, got.HasPassword())

		byID, err := s.FindByID(ctx, in.ID)
		require.NoError(t, err)
		assert.Equal(t, in.ID, byID.ID)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		err := s.Insert(ctx, emailIdentity("ALICE."+suffix+"@example.com", now))
		require.ErrorIs(t, err, core.ErrDuplicateIdentity)
		var conflict core.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "email", conflict.Field)
	})

	t.Run("wallet identity", func(t *testing.T) {
		in := walletIdentity(wallet, now)
		require.NoError(t, s.Insert(ctx, in))

		got, err := s.FindByWallet(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, in.ID, got.ID)
		assert.Nil(t, got.Email)
		assert.False(t, got.HasPassword())

		err = s.Insert(ctx, walletIdentity(wallet, now))
		require.ErrorIs(t, err, core.ErrDuplicateIdentity)
	})

	t.Run("invalid identities are rejected", func(t *testing.T) {
		err := s.Insert(ctx, &core.Identity{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now})
		require.ErrorIs(t, err, core.ErrValidation)

		err = s.Insert(ctx, &core.Identity{ID: uuid.NewString(), Email: ptr("x-" + suffix + "@example.com"), CreatedAt: now, UpdatedAt: now})
		require.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("updates", func(t *testing.T) {
		in := emailIdentity("bob."+suffix+"@example.com", now)
		require.NoError(t, s.Insert(ctx, in))

		login := now.Add(time.Minute)
		require.NoError(t, s.UpdateLastLogin(ctx, in.ID, login))
		require.NoError(t, s.UpdatePassword(ctx, in.ID, "$argon2id$other", login))

		got, err := s.FindByID(ctx, in.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
		assert.True(t, got.LastLoginAt.Equal(login))
		assert.Equal(t, "$argon2id$other", *got.PasswordHash)
	})

	t.Run("missing identities", func(t *testing.T) {
		missing := uuid.NewString()
		_, err := s.FindByID(ctx, missing)
		require.ErrorIs(t, err, core.ErrIdentityNotFound)
		_, err = s.FindByEmail(ctx, "nobody-"+suffix+"@example.com")
		require.ErrorIs(t, err, core.ErrIdentityNotFound)
		_, err = s.FindByWallet(ctx, testWallet+"0")
		require.ErrorIs(t, err, core.ErrIdentityNotFound)
		require.ErrorIs(t, s.UpdateLastLogin(ctx, missing, now), core.ErrIdentityNotFound)
	})
}

// testNonceLedger exercises the NonceLedger contract against l.
func testNonceLedger(t *testing.T, l ports.NonceLedger) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	address := "0x" + uuid.NewString()[:8] + "3F3E94C9b9A09f33669435E7Ef1BeAed"

	_, err := l.Get(ctx, address)
	require.ErrorIs(t, err, core.ErrChallengeNotFound)

	first := core.Nonce{Address: address, Value: "n1", ExpiresAt: now.Add(5 * time.Minute)}
	got, err := l.UpsertIfStale(ctx, first, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "n1", got.Value)
	assert.True(t, got.ExpiresAt.Equal(first.ExpiresAt))

	// still fresh: the candidate is discarded
	later := now.Add(2 * time.Minute)
	got, err = l.UpsertIfStale(ctx, core.Nonce{Address: address, Value: "n2", ExpiresAt: later.Add(5 * time.Minute)}, later.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "n1", got.Value)
	assert.True(t, got.ExpiresAt.Equal(first.ExpiresAt))

	// inside the refresh window: rotated
	rotateAt := now.Add(4 * time.Minute)
	got, err = l.UpsertIfStale(ctx, core.Nonce{Address: address, Value: "n3", ExpiresAt: rotateAt.Add(5 * time.Minute)}, rotateAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "n3", got.Value)

	stored, err := l.Get(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, "n3", stored.Value)
	assert.True(t, stored.ExpiresAt.Equal(rotateAt.Add(5*time.Minute)))

	require.ErrorIs(t, l.Consume(ctx, address, "n1"), core.ErrChallengeNotFound, "stale value must not consume")
	require.NoError(t, l.Consume(ctx, address, "n3"))
	require.ErrorIs(t, l.Consume(ctx, address, "n3"), core.ErrChallengeNotFound)

	_, err = l.Get(ctx, address)
	require.ErrorIs(t, err, core.ErrChallengeNotFound)
}
