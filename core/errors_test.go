package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{errors.New("boom"), "internal"},
		{NewValidationError(FieldError{Field: "email", Reason: "required"}), "validation_error"},
		{ConflictError{Field: "email"}, "duplicate_identity"},
		{Unavailable("get nonce", errors.New("dial tcp: refused")), "store_unavailable"},
		{fmt.Errorf("login: %w", ErrChallengeExpired), "challenge_expired"},
		{fmt.Errorf("%w: token is expired", ErrMalformedToken), "malformed_token"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Kind(tc.err), "%v", tc.err)
	}
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := Unavailable("insert identity", cause)

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insert identity")
	assert.Nil(t, Unavailable("noop", nil))
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError(
		FieldError{Field: "email", Reason: "required"},
		FieldError{Field: "password", Reason: "must be at least 6 characters"},
	)
	assert.Equal(t, "validation failed: email: required; password: must be at least 6 characters", err.Error())
	assert.Equal(t, "validation failed", NewValidationError().Error())
}
