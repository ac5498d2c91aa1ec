package core

import (
	"strings"
	"time"
)

// Identity is the authenticated principal, reachable by email or wallet address.
type Identity struct {
	ID            string     // UUID of the identity
	Email         *string    // Email as registered, nil for wallet-only identities
	PasswordHash  *string    // Encoded password digest, present iff Email is present
	WalletAddress *string    // Canonical (checksummed) wallet address
	CreatedAt     time.Time  // When the identity was created
	UpdatedAt     time.Time  // When the identity was last modified
	LastLoginAt   *time.Time // When the identity last logged in
}

// HasPassword reports whether the identity can use the password flow.
func (i *Identity) HasPassword() bool {
	return i.Email != nil && i.PasswordHash != nil
}

// Validate checks the record-level invariants of an identity.
func (i *Identity) Validate() error {
	if i.ID == "" {
		return NewValidationError(FieldError{Field: "id", Reason: "required"})
	}
	if i.Email == nil && i.WalletAddress == nil {
		return NewValidationError(FieldError{Field: "email", Reason: "email or wallet address required"})
	}
	if (i.Email == nil) != (i.PasswordHash == nil) {
		return NewValidationError(FieldError{Field: "password", Reason: "email and password must be set together"})
	}
	return nil
}

// Nonce is the outstanding login challenge for a wallet address.
type Nonce struct {
	Address   string    // Canonical wallet address
	Value     string    // Random challenge value
	ExpiresAt time.Time // When the challenge stops being accepted
}

// Expired reports whether the challenge can no longer be consumed at now.
func (n Nonce) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// Fresh reports whether the challenge outlives refreshBefore and may be re-issued as is.
func (n Nonce) Fresh(refreshBefore time.Time) bool {
	return n.ExpiresAt.After(refreshBefore)
}

// LoginMessage is the text a wallet signs to prove key possession for nonce.
func LoginMessage(nonce string) string {
	return strings.Join([]string{
		"Signing this message logs you in to this application using your wallet address",
		"Nonce: " + nonce,
	}, "\n")
}

// NormalizeEmail canonicalizes an email for uniqueness checks and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session is the verified content of a session token.
type Session struct {
	ID        string          // Token identifier
	Subject   string          // Identity ID
	Claim     CredentialClaim // Credential the identity authenticated with, nil if absent
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ResetGrant is the verified content of a password-reset token.
type ResetGrant struct {
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Authentication is the outcome of a successful register or login.
type Authentication struct {
	Token     string
	Identity  *Identity
	Claim     CredentialClaim
	ExpiresAt time.Time
}
