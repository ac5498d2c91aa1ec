package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

// CredentialVerifier checks passwords and signed challenges and resolves the
// matching identity.
type CredentialVerifier struct {
	identities ports.IdentityStore
	ledger     ports.NonceLedger
	hasher     ports.PasswordHasher
	wallets    ports.SignerRecoverer
	now        func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// NewCredentialVerifier creates a new credential verifier
func NewCredentialVerifier(
	identities ports.IdentityStore,
	ledger ports.NonceLedger,
	hasher ports.PasswordHasher,
	wallets ports.SignerRecoverer,
	now func() time.Time,
) *CredentialVerifier {
	return &CredentialVerifier{
		identities: identities,
		ledger:     ledger,
		hasher:     hasher,
		wallets:    wallets,
		now:        now,
	}
}

// VerifyPassword authenticates email/secret. Unknown emails, wallet-only
// identities and wrong secrets all fail with core.ErrInvalidCredentials.
func (v *CredentialVerifier) VerifyPassword(ctx context.Context, email, secret string) (*core.Identity, error) {
	identity, err := v.identities.FindByEmail(ctx, email)
	if errors.Is(err, core.ErrIdentityNotFound) {
		v.burnVerify(secret)
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !identity.HasPassword() {
		v.burnVerify(secret)
		return nil, core.ErrInvalidCredentials
	}

	ok, err := v.hasher.Verify(*identity.PasswordHash, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password of %s: %w", identity.ID, err)
	}
	if !ok {
		return nil, core.ErrInvalidCredentials
	}

	if err := v.touch(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// VerifySignature authenticates a signed challenge for the canonical address,
// consuming the challenge and auto-provisioning a wallet identity on first login.
func (v *CredentialVerifier) VerifySignature(ctx context.Context, address, signature string) (*core.Identity, error) {
	nonce, err := v.ledger.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	if nonce.Expired(v.now()) {
		return nil, core.ErrChallengeExpired
	}

	signer, err := v.wallets.RecoverSigner(core.LoginMessage(nonce.Value), signature)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(signer, address) {
		return nil, core.ErrInvalidSignature
	}

	// Consuming before resolving the identity makes a concurrent replay of the
	// same signature lose with ErrChallengeNotFound.
	if err := v.ledger.Consume(ctx, address, nonce.Value); err != nil {
		return nil, err
	}

	identity, err := v.resolveWallet(ctx, address)
	if err != nil {
		return nil, err
	}

	if err := v.touch(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (v *CredentialVerifier) resolveWallet(ctx context.Context, address string) (*core.Identity, error) {
	identity, err := v.identities.FindByWallet(ctx, address)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, core.ErrIdentityNotFound) {
		return nil, err
	}

	now := v.now()
	identity = &core.Identity{
		ID:            uuid.NewString(),
		WalletAddress: &address,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = v.identities.Insert(ctx, identity)
	if errors.Is(err, core.ErrDuplicateIdentity) {
		// another login provisioned the same wallet first
		return v.identities.FindByWallet(ctx, address)
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func (v *CredentialVerifier) touch(ctx context.Context, identity *core.Identity) error {
	at := v.now()
	if err := v.identities.UpdateLastLogin(ctx, identity.ID, at); err != nil {
		return err
	}
	identity.LastLoginAt = &at
	return nil
}

// burnVerify spends the same hashing work as a real verification so that
// unknown emails are not distinguishable by response time.
func (v *CredentialVerifier) burnVerify(secret string) {
	v.dummyOnce.Do(func() {
		v.dummyDigest, _ = v.hasher.Hash(uuid.NewString())
	})
	if v.dummyDigest != "" {
		_, _ = v.hasher.Verify(v.dummyDigest, secret)
	}
}
