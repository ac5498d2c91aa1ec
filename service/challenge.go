package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

// ChallengeIssuer hands out per-wallet login challenges.
type ChallengeIssuer struct {
	ledger        ports.NonceLedger
	ttl           time.Duration
	refreshWindow time.Duration
	nonceBytes    int
	now           func() time.Time
}

// NewChallengeIssuer creates a new challenge issuer
func NewChallengeIssuer(ledger ports.NonceLedger, cfg Config, now func() time.Time) *ChallengeIssuer {
	cfg = cfg.withDefaults()
	return &ChallengeIssuer{
		ledger:        ledger,
		ttl:           cfg.ChallengeTTL,
		refreshWindow: cfg.ChallengeRefreshWindow,
		nonceBytes:    cfg.NonceBytes,
		now:           now,
	}
}

// IssueOrRotate returns the live challenge for address, rotating it when it
// expires within the refresh window. The address must be canonical.
func (c *ChallengeIssuer) IssueOrRotate(ctx context.Context, address string) (*core.Nonce, error) {
	value, err := generateNonce(c.nonceBytes)
	if err != nil {
		return nil, err
	}

	now := c.now()
	candidate := core.Nonce{
		Address:   address,
		Value:     value,
		ExpiresAt: now.Add(c.ttl),
	}

	nonce, err := c.ledger.UpsertIfStale(ctx, candidate, now.Add(c.refreshWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return nonce, nil
}

// generateNonce generates a secure random 0x-prefixed hex nonce of n bytes
func generateNonce(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hexutil.Encode(bytes), nil
}
