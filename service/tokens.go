package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

// TokenService issues session and reset tokens and reconciles inbound
// session tokens against the live identity record.
type TokenService struct {
	tokenizer  ports.Tokenizer
	identities ports.IdentityStore
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(tokenizer ports.Tokenizer, identities ports.IdentityStore, cfg Config, now func() time.Time) *TokenService {
	cfg = cfg.withDefaults()
	return &TokenService{
		tokenizer:  tokenizer,
		identities: identities,
		sessionTTL: cfg.SessionTTL,
		resetTTL:   cfg.ResetTTL,
		now:        now,
	}
}

// Issue signs a session token binding identity to claim.
func (t *TokenService) Issue(identity *core.Identity, claim core.CredentialClaim) (string, time.Time, error) {
	now := t.now()
	session := &core.Session{
		ID:        uuid.NewString(),
		Subject:   identity.ID,
		Claim:     claim,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.sessionTTL),
	}

	token, err := t.tokenizer.SessionToToken(session)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session token: %w", err)
	}
	return token, session.ExpiresAt, nil
}

// IssueReset signs a password-reset token for identity.
func (t *TokenService) IssueReset(identity *core.Identity) (string, error) {
	now := t.now()
	grant := &core.ResetGrant{
		ID:        uuid.NewString(),
		Subject:   identity.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.resetTTL),
	}

	token, err := t.tokenizer.ResetToToken(grant)
	if err != nil {
		return "", fmt.Errorf("failed to create reset token: %w", err)
	}
	return token, nil
}

// Validate parses a session token and checks that its claim still matches
// the identity. A changed email or wallet invalidates earlier tokens.
func (t *TokenService) Validate(ctx context.Context, token string) (*core.Session, *core.Identity, error) {
	session, err := t.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, nil, err
	}

	identity, err := t.identities.FindByID(ctx, session.Subject)
	if err != nil {
		return nil, nil, err
	}

	if !claimMatches(session.Claim, identity) {
		return nil, nil, core.ErrClaimMismatch
	}
	return session, identity, nil
}

// ValidateReset parses a reset token and loads its identity.
func (t *TokenService) ValidateReset(ctx context.Context, token string) (*core.ResetGrant, *core.Identity, error) {
	grant, err := t.tokenizer.TokenToReset(token)
	if err != nil {
		return nil, nil, err
	}

	identity, err := t.identities.FindByID(ctx, grant.Subject)
	if err != nil {
		return nil, nil, err
	}
	return grant, identity, nil
}

func claimMatches(claim core.CredentialClaim, identity *core.Identity) bool {
	switch c := claim.(type) {
	case core.EmailClaim:
		return identity.Email != nil && *identity.Email == c.Value()
	case core.WalletClaim:
		return identity.WalletAddress != nil && strings.EqualFold(*identity.WalletAddress, c.Value())
	default:
		return false
	}
}
