package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIdentityValidate(t *testing.T) {
	email, hash, wallet := "a@x.com", "digest", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	assert.NoError(t, (&Identity{ID: "1", Email: &email, PasswordHash: &hash}).Validate())
	assert.NoError(t, (&Identity{ID: "1", WalletAddress: &wallet}).Validate())
	assert.ErrorIs(t, (&Identity{Email: &email, PasswordHash: &hash}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&Identity{ID: "1"}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&Identity{ID: "1", Email: &email}).Validate(), ErrValidation)
}

func TestNonceExpiry(t *testing.T) {
	n := Nonce{ExpiresAt: mustTime("2026-05-04T10:05:00Z")}

	assert.False(t, n.Expired(mustTime("2026-05-04T10:04:59Z")))
	assert.True(t, n.Expired(mustTime("2026-05-04T10:05:00Z")))
	assert.True(t, n.Fresh(mustTime("2026-05-04T10:04:00Z")))
	assert.False(t, n.Fresh(mustTime("2026-05-04T10:05:00Z")))
}

func TestLoginMessage(t *testing.T) {
	assert.Equal(t,
		"Signing this message logs you in to this application using your wallet address\nNonce: 0xabc",
		LoginMessage("0xabc"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}
