package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrChallengeExpired   = errors.New("challenge has expired")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrClaimMismatch      = errors.New("token claim does not match identity")
	ErrMalformedToken     = errors.New("malformed token")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// FieldError describes why a single input field was rejected.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports malformed input with field-level detail.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError from the given field errors.
func NewValidationError(fields ...FieldError) ValidationError {
	return ValidationError{Fields: fields}
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports a uniqueness violation on a logical field ("email", "wallet_address").
type ConflictError struct {
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return ErrDuplicateIdentity.Error()
	}
	return fmt.Sprintf("%v: %s", ErrDuplicateIdentity, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrDuplicateIdentity }

// StoreError wraps a backend failure. It matches ErrStoreUnavailable with errors.Is
// while keeping the cause reachable through Unwrap.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

func (e StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// Unavailable wraps err as a StoreError for op. A nil err stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return StoreError{Op: op, Err: err}
}

var kinds = []struct {
	err  error
	code string
}{
	{ErrValidation, "validation_error"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrChallengeNotFound, "challenge_not_found"},
	{ErrChallengeExpired, "challenge_expired"},
	{ErrInvalidSignature, "invalid_signature"},
	{ErrClaimMismatch, "claim_mismatch"},
	{ErrMalformedToken, "malformed_token"},
	{ErrIdentityNotFound, "identity_not_found"},
	{ErrDuplicateIdentity, "duplicate_identity"},
	{ErrStoreUnavailable, "store_unavailable"},
}

// Kind returns a stable snake_case code for err: "ok" for nil, "internal" for
// errors outside the taxonomy.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}
