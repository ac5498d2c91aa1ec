package tokenizer

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

const AudienceSession = "session:access"
const AudienceReset = "session:password-reset"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
	now     func() time.Time
}

// Option configures a JWTTokenizer.
type Option func(*JWTTokenizer)

// WithIssuer sets the iss claim written into and required from tokens.
func WithIssuer(issuer string) Option {
	return func(j *JWTTokenizer) { j.issuer = issuer }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(j *JWTTokenizer) { j.now = now }
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, opts ...Option) ports.Tokenizer {
	j := &JWTTokenizer{signKey: signKey, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// SessionToToken converts a Session to a signed session token
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Subject,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}

	switch c := session.Claim.(type) {
	case core.EmailClaim:
		claims.Email = c.Value()
	case core.WalletClaim:
		claims.WalletAddress = c.Value()
	default:
		return "", fmt.Errorf("session for %s has no credential claim", session.Subject)
	}

	return j.sign(claims)
}

// TokenToSession parses a session token and returns the embedded session
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	claims := &SessionClaims{}
	if err := j.parse(tokenStr, claims, AudienceSession); err != nil {
		return nil, err
	}

	session := &core.Session{
		ID:        claims.ID,
		Subject:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	// Email wins when a token carries both.
	switch {
	case claims.Email != "":
		session.Claim = core.EmailClaim(claims.Email)
	case claims.WalletAddress != "":
		session.Claim = core.WalletClaim(claims.WalletAddress)
	}

	return session, nil
}

// ResetToToken converts a ResetGrant to a signed password-reset token
func (j *JWTTokenizer) ResetToToken(grant *core.ResetGrant) (string, error) {
	claims := ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   grant.Subject,
			ID:        grant.ID,
			ExpiresAt: jwt.NewNumericDate(grant.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(grant.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceReset},
		},
	}

	return j.sign(claims)
}

// TokenToReset parses a password-reset token
func (j *JWTTokenizer) TokenToReset(tokenStr string) (*core.ResetGrant, error) {
	claims := &ResetClaims{}
	if err := j.parse(tokenStr, claims, AudienceReset); err != nil {
		return nil, err
	}

	return &core.ResetGrant{
		ID:        claims.ID,
		Subject:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (j *JWTTokenizer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

func (j *JWTTokenizer) parse(tokenStr string, claims jwt.Claims, audience string) error {
	opts := []jwt.ParserOption{
		jwt.WithAudience(audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedToken, err)
	}

	if !token.Valid {
		return core.ErrMalformedToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return fmt.Errorf("%w: missing subject", core.ErrMalformedToken)
	}

	return nil
}
