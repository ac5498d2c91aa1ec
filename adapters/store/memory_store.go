package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/gatekeeper/core"
)

// MemoryStore is an in-memory identity store.
// It is used in tests and single-instance development setups.
type MemoryStore struct {
	identities map[string]core.Identity
	byEmail    map[string]string
	byWallet   map[string]string
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory identity store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]core.Identity),
		byEmail:    make(map[string]string),
		byWallet:   make(map[string]string),
	}
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, core.ErrIdentityNotFound
	}
	return cloneIdentity(identity), nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[core.NormalizeEmail(email)]
	if !ok {
		return nil, core.ErrIdentityNotFound
	}
	return cloneIdentity(s.identities[id]), nil
}

func (s *MemoryStore) FindByWallet(ctx context.Context, address string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byWallet[address]
	if !ok {
		return nil, core.ErrIdentityNotFound
	}
	return cloneIdentity(s.identities[id]), nil
}

func (s *MemoryStore) Insert(ctx context.Context, identity *core.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[identity.ID]; exists {
		return core.ConflictError{Field: "id"}
	}
	if identity.Email != nil {
		if _, exists := s.byEmail[core.NormalizeEmail(*identity.Email)]; exists {
			return core.ConflictError{Field: "email"}
		}
	}
	if identity.WalletAddress != nil {
		if _, exists := s.byWallet[*identity.WalletAddress]; exists {
			return core.ConflictError{Field: "wallet_address"}
		}
	}

	s.put(*cloneIdentity(*identity))
	return nil
}

func (s *MemoryStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.update(id, func(identity *core.Identity) {
		identity.LastLoginAt = &at
	})
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error {
	return s.update(id, func(identity *core.Identity) {
		identity.PasswordHash = &passwordHash
		identity.UpdatedAt = at
	})
}

// Replace overwrites a stored identity, re-indexing its email and wallet.
// Email or wallet changes made this way invalidate previously issued session tokens.
func (s *MemoryStore) Replace(ctx context.Context, identity *core.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.identities[identity.ID]
	if !ok {
		return core.ErrIdentityNotFound
	}
	if identity.Email != nil {
		if owner, exists := s.byEmail[core.NormalizeEmail(*identity.Email)]; exists && owner != identity.ID {
			return core.ConflictError{Field: "email"}
		}
	}
	if identity.WalletAddress != nil {
		if owner, exists := s.byWallet[*identity.WalletAddress]; exists && owner != identity.ID {
			return core.ConflictError{Field: "wallet_address"}
		}
	}

	s.unindex(old)
	s.put(*cloneIdentity(*identity))
	return nil
}

// Delete removes an identity. The auth flows never delete; account removal lives elsewhere.
func (s *MemoryStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.identities[id]; ok {
		s.unindex(old)
		delete(s.identities, id)
	}
}

func (s *MemoryStore) update(id string, fn func(*core.Identity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return core.ErrIdentityNotFound
	}
	fn(&identity)
	s.identities[id] = identity
	return nil
}

func (s *MemoryStore) put(identity core.Identity) {
	s.identities[identity.ID] = identity
	if identity.Email != nil {
		s.byEmail[core.NormalizeEmail(*identity.Email)] = identity.ID
	}
	if identity.WalletAddress != nil {
		s.byWallet[*identity.WalletAddress] = identity.ID
	}
}

func (s *MemoryStore) unindex(identity core.Identity) {
	if identity.Email != nil {
		delete(s.byEmail, core.NormalizeEmail(*identity.Email))
	}
	if identity.WalletAddress != nil {
		delete(s.byWallet, *identity.WalletAddress)
	}
}

func cloneIdentity(in core.Identity) *core.Identity {
	out := in
	out.Email = clonePtr(in.Email)
	out.PasswordHash = clonePtr(in.PasswordHash)
	out.WalletAddress = clonePtr(in.WalletAddress)
	out.LastLoginAt = clonePtr(in.LastLoginAt)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// MemoryLedger is an in-memory nonce ledger.
type MemoryLedger struct {
	nonces map[string]core.Nonce
	mu     sync.Mutex
}

// NewMemoryLedger creates a new in-memory nonce ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		nonces: make(map[string]core.Nonce),
	}
}

func (l *MemoryLedger) Get(ctx context.Context, address string) (*core.Nonce, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	nonce, ok := l.nonces[address]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}
	return &nonce, nil
}

func (l *MemoryLedger) UpsertIfStale(ctx context.Context, candidate core.Nonce, refreshBefore time.Time) (*core.Nonce, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.nonces[candidate.Address]; ok && existing.Fresh(refreshBefore) {
		return &existing, nil
	}
	l.nonces[candidate.Address] = candidate
	return &candidate, nil
}

func (l *MemoryLedger) Consume(ctx context.Context, address, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	nonce, ok := l.nonces[address]
	if !ok || nonce.Value != value {
		return core.ErrChallengeNotFound
	}
	delete(l.nonces, address)
	return nil
}
