package service

import "time"

const (
	// DefaultChallengeTTL is how long a freshly issued challenge stays valid.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultChallengeRefreshWindow: a challenge expiring within this window is rotated on re-issue.
	DefaultChallengeRefreshWindow = 1 * time.Minute

	// DefaultNonceBytes is the entropy of a challenge.
	DefaultNonceBytes = 16

	// DefaultSessionTTL is the validity of a session token.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultResetTTL is the validity of a password-reset token.
	DefaultResetTTL = 1 * time.Hour

	// DefaultMinPasswordLength is the shortest accepted password.
	DefaultMinPasswordLength = 6
)

// Config holds AuthService configuration.
// A zero value is a valid configuration, see constants for default values.
type Config struct {
	ChallengeTTL           time.Duration `mapstructure:"challenge_ttl"`
	ChallengeRefreshWindow time.Duration `mapstructure:"challenge_refresh_window"`

	// NonceBytes must be at least 16; smaller values are raised to the default.
	NonceBytes int `mapstructure:"nonce_bytes"`

	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	ResetTTL          time.Duration `mapstructure:"reset_ttl"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
}

func (c Config) withDefaults() Config {
	if c.ChallengeTTL <= 0 {
		c.ChallengeTTL = DefaultChallengeTTL
	}
	if c.ChallengeRefreshWindow <= 0 {
		c.ChallengeRefreshWindow = DefaultChallengeRefreshWindow
	}
	if c.NonceBytes < DefaultNonceBytes {
		c.NonceBytes = DefaultNonceBytes
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = DefaultResetTTL
	}
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = DefaultMinPasswordLength
	}
	return c
}
