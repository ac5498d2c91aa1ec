package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/gatekeeper/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestSessionRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tk := NewJWTTokenizer(newKey(t), WithIssuer("gatekeeper"), WithClock(fixedClock(now)))

	for _, claim := range []core.CredentialClaim{
		core.EmailClaim("a@x.com"),
		core.WalletClaim("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"),
	} {
		session := &core.Session{
			ID:        "jti-1",
			Subject:   "user-1",
			Claim:     claim,
			IssuedAt:  now,
			ExpiresAt: now.Add(24 * time.Hour),
		}

		token, err := tk.SessionToToken(session)
		require.NoError(t, err)

		got, err := tk.TokenToSession(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.Subject)
		assert.Equal(t, "jti-1", got.ID)
		assert.Equal(t, claim, got.Claim)
		assert.True(t, got.ExpiresAt.Equal(session.ExpiresAt))
	}
}

func TestSessionWithoutClaimIsRejected(t *testing.T) {
	tk := NewJWTTokenizer(newKey(t))
	_, err := tk.SessionToToken(&core.Session{Subject: "user-1", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)})
	require.Error(t, err)
}

func TestExpiredSessionIsMalformed(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := newKey(t)

	token, err := NewJWTTokenizer(key, WithClock(fixedClock(issued))).SessionToToken(&core.Session{
		Subject:   "user-1",
		Claim:     core.EmailClaim("a@x.com"),
		IssuedAt:  issued,
		ExpiresAt: issued.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	later := NewJWTTokenizer(key, WithClock(fixedClock(issued.Add(25*time.Hour))))
	_, err = later.TokenToSession(token)
	require.ErrorIs(t, err, core.ErrMalformedToken)
}

func TestForeignKeyIsMalformed(t *testing.T) {
	now := time.Now()
	token, err := NewJWTTokenizer(newKey(t)).SessionToToken(&core.Session{
		Subject:   "user-1",
		Claim:     core.EmailClaim("a@x.com"),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = NewJWTTokenizer(newKey(t)).TokenToSession(token)
	require.ErrorIs(t, err, core.ErrMalformedToken)

	_, err = NewJWTTokenizer(newKey(t)).TokenToSession("garbage")
	require.ErrorIs(t, err, core.ErrMalformedToken)
}

func TestHMACTokenIsRejected(t *testing.T) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{AudienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: "a@x.com",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTTokenizer(newKey(t)).TokenToSession(token)
	require.ErrorIs(t, err, core.ErrMalformedToken)
}

func TestResetAndSessionAudiencesDoNotMix(t *testing.T) {
	now := time.Now()
	tk := NewJWTTokenizer(newKey(t))

	reset, err := tk.ResetToToken(&core.ResetGrant{ID: "r-1", Subject: "user-1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	grant, err := tk.TokenToReset(reset)
	require.NoError(t, err)
	assert.Equal(t, "user-1", grant.Subject)

	_, err = tk.TokenToSession(reset)
	require.ErrorIs(t, err, core.ErrMalformedToken)

	session, err := tk.SessionToToken(&core.Session{Subject: "user-1", Claim: core.EmailClaim("a@x.com"), IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = tk.TokenToReset(session)
	require.ErrorIs(t, err, core.ErrMalformedToken)
}

func TestIssuerMismatchIsMalformed(t *testing.T) {
	now := time.Now()
	key := newKey(t)
	token, err := NewJWTTokenizer(key, WithIssuer("other")).SessionToToken(&core.Session{
		Subject: "user-1", Claim: core.EmailClaim("a@x.com"), IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = NewJWTTokenizer(key, WithIssuer("gatekeeper")).TokenToSession(token)
	require.ErrorIs(t, err, core.ErrMalformedToken)
}
