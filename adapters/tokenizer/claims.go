package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the credential the subject logged in with.
// At most one of Email and WalletAddress is set.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// ResetClaims are just the standard claims for password-reset tokens
type ResetClaims struct {
	jwt.RegisteredClaims
}
