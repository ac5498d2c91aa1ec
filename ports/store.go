package ports

import (
	"context"
	"time"

	"github.com/layer-3/gatekeeper/core"
)

// IdentityStore persists identity records.
// Lookups of a missing record return core.ErrIdentityNotFound, uniqueness
// violations return a core.ConflictError and backend failures a core.StoreError.
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (*core.Identity, error)

	// FindByEmail looks an identity up by its normalized email.
	FindByEmail(ctx context.Context, email string) (*core.Identity, error)

	// FindByWallet looks an identity up by its canonical wallet address.
	FindByWallet(ctx context.Context, address string) (*core.Identity, error)

	Insert(ctx context.Context, identity *core.Identity) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error
}

// NonceLedger holds at most one outstanding challenge per wallet address.
// Get of a missing address returns core.ErrChallengeNotFound.
type NonceLedger interface {
	Get(ctx context.Context, address string) (*core.Nonce, error)

	// UpsertIfStale atomically stores candidate unless the existing record for
	// candidate.Address expires after refreshBefore, in which case the existing
	// record is kept and returned.
	UpsertIfStale(ctx context.Context, candidate core.Nonce, refreshBefore time.Time) (*core.Nonce, error)

	// Consume deletes the record for address if it still holds value.
	// It returns core.ErrChallengeNotFound when there was nothing to delete.
	Consume(ctx context.Context, address, value string) error
}
