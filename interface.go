// Package gatekeeper authenticates callers by password or by wallet signature
// and issues session tokens that are checked against the live identity record.
package gatekeeper

import (
	"context"

	"github.com/layer-3/gatekeeper/core"
)

// Client represents the public interface of the identity-verification service
type Client interface {
	// RequestChallenge returns the nonce the wallet has to sign to log in
	RequestChallenge(ctx context.Context, walletAddress string) (string, error)

	// LoginWithSignature consumes the wallet's challenge and returns a session token
	LoginWithSignature(ctx context.Context, walletAddress, signature string) (*core.Authentication, error)

	// Register creates an email identity and returns a session token
	Register(ctx context.Context, email, password string) (*core.Authentication, error)

	// LoginWithPassword verifies email and password and returns a session token
	LoginWithPassword(ctx context.Context, email, password string) (*core.Authentication, error)

	// RequestPasswordReset issues a reset token for out-of-band delivery
	RequestPasswordReset(ctx context.Context, email string) (string, error)

	// ResetPassword sets a new password using a reset token
	ResetPassword(ctx context.Context, resetToken, password string) error

	// ValidateToken checks a session token against the identity it was issued for
	ValidateToken(ctx context.Context, token string) (*core.Session, error)
}
