package core

import "time"

// EventType names a domain event emitted by the auth service.
type EventType string

const (
	EventRegistered             EventType = "identity.registered"
	EventLoggedIn               EventType = "identity.logged_in"
	EventPasswordResetRequested EventType = "identity.password_reset_requested"
	EventPasswordReset          EventType = "identity.password_reset"
)

// AuthEvent describes something that happened to an identity.
type AuthEvent struct {
	Type          EventType `json:"type"`
	SubjectID     string    `json:"subject_id"`
	Email         string    `json:"email,omitempty"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	// ResetToken is only set on EventPasswordResetRequested, for out-of-band delivery.
	ResetToken string    `json:"reset_token,omitempty"`
	At         time.Time `json:"at"`
}
