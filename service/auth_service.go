package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

// AuthService handles authentication business logic
type AuthService struct {
	identities ports.IdentityStore
	hasher     ports.PasswordHasher
	wallets    ports.SignerRecoverer
	publisher  ports.EventPublisher
	metrics    ports.Metrics
	logger     zerolog.Logger
	validate   *validator.Validate
	now        func() time.Time
	cfg        Config

	challenges *ChallengeIssuer
	verifier   *CredentialVerifier
	tokens     *TokenService
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithLogger sets the logger used for operation outcomes.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *AuthService) { s.logger = logger }
}

// WithPublisher sets the destination of auth events.
func WithPublisher(publisher ports.EventPublisher) Option {
	return func(s *AuthService) { s.publisher = publisher }
}

// WithMetrics sets the outcome recorder.
func WithMetrics(metrics ports.Metrics) Option {
	return func(s *AuthService) { s.metrics = metrics }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	identities ports.IdentityStore,
	ledger ports.NonceLedger,
	tokenizer ports.Tokenizer,
	hasher ports.PasswordHasher,
	wallets ports.SignerRecoverer,
	cfg Config,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		identities: identities,
		hasher:     hasher,
		wallets:    wallets,
		publisher:  nopPublisher{},
		metrics:    nopMetrics{},
		logger:     zerolog.Nop(),
		validate:   validator.New(),
		now:        time.Now,
		cfg:        cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.challenges = NewChallengeIssuer(ledger, s.cfg, s.now)
	s.verifier = NewCredentialVerifier(identities, ledger, hasher, wallets, s.now)
	s.tokens = NewTokenService(tokenizer, identities, s.cfg, s.now)
	return s
}

// RequestChallenge returns the challenge the wallet has to sign to log in.
func (s *AuthService) RequestChallenge(ctx context.Context, walletAddress string) (_ string, err error) {
	defer s.observe("request_challenge", &err)

	address, err := s.wallets.CanonicalAddress(walletAddress)
	if err != nil {
		return "", err
	}

	nonce, err := s.challenges.IssueOrRotate(ctx, address)
	if err != nil {
		return "", err
	}
	return nonce.Value, nil
}

// LoginWithSignature authenticates a wallet by its signature over the
// outstanding challenge. Unknown wallets get a new identity.
func (s *AuthService) LoginWithSignature(ctx context.Context, walletAddress, signature string) (_ *core.Authentication, err error) {
	defer s.observe("login_with_signature", &err)

	address, err := s.wallets.CanonicalAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	if fe := s.check("signature", signature, "required"); fe != nil {
		return nil, core.NewValidationError(*fe)
	}

	identity, err := s.verifier.VerifySignature(ctx, address, signature)
	if err != nil {
		return nil, err
	}

	auth, err := s.authenticate(identity, core.WalletClaim(*identity.WalletAddress))
	if err != nil {
		return nil, err
	}

	s.publish(ctx, core.AuthEvent{
		Type:          core.EventLoggedIn,
		SubjectID:     identity.ID,
		WalletAddress: *identity.WalletAddress,
	})
	return auth, nil
}

// Register creates an email identity and logs it in.
func (s *AuthService) Register(ctx context.Context, email, password string) (_ *core.Authentication, err error) {
	defer s.observe("register", &err)

	email = strings.TrimSpace(email)
	if err := s.checkCredentials(email, password, s.passwordRule()); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	identity := &core.Identity{
		ID:           uuid.NewString(),
		Email:        &email,
		PasswordHash: &digest,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLoginAt:  &now,
	}
	if err := s.identities.Insert(ctx, identity); err != nil {
		return nil, err
	}

	auth, err := s.authenticate(identity, core.EmailClaim(email))
	if err != nil {
		return nil, err
	}

	s.publish(ctx, core.AuthEvent{
		Type:      core.EventRegistered,
		SubjectID: identity.ID,
		Email:     email,
	})
	return auth, nil
}

// LoginWithPassword authenticates an email identity.
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password string) (_ *core.Authentication, err error) {
	defer s.observe("login_with_password", &err)

	email = strings.TrimSpace(email)
	// Stored passwords may predate the length rule, so only presence is checked.
	if err := s.checkCredentials(email, password, "required"); err != nil {
		return nil, err
	}

	identity, err := s.verifier.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	auth, err := s.authenticate(identity, core.EmailClaim(*identity.Email))
	if err != nil {
		return nil, err
	}

	s.publish(ctx, core.AuthEvent{
		Type:      core.EventLoggedIn,
		SubjectID: identity.ID,
		Email:     *identity.Email,
	})
	return auth, nil
}

// RequestPasswordReset issues a reset token for the identity registered with
// email and publishes it for out-of-band delivery.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (_ string, err error) {
	defer s.observe("request_password_reset", &err)

	email = strings.TrimSpace(email)
	if err := s.checkCredentials(email, "", ""); err != nil {
		return "", err
	}

	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.IssueReset(identity)
	if err != nil {
		return "", err
	}

	s.publish(ctx, core.AuthEvent{
		Type:       core.EventPasswordResetRequested,
		SubjectID:  identity.ID,
		Email:      *identity.Email,
		ResetToken: token,
	})
	return token, nil
}

// ResetPassword replaces the password of the identity the reset token was issued for.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, password string) (err error) {
	defer s.observe("reset_password", &err)

	if fe := s.check("password", password, s.passwordRule()); fe != nil {
		return core.NewValidationError(*fe)
	}

	_, identity, err := s.tokens.ValidateReset(ctx, resetToken)
	if err != nil {
		return err
	}
	if !identity.HasPassword() {
		return core.ErrInvalidCredentials
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.identities.UpdatePassword(ctx, identity.ID, digest, s.now()); err != nil {
		return err
	}

	s.publish(ctx, core.AuthEvent{
		Type:      core.EventPasswordReset,
		SubjectID: identity.ID,
		Email:     *identity.Email,
	})
	return nil
}

// ValidateToken checks a session token against the live identity record.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (_ *core.Session, err error) {
	defer s.observe("validate_token", &err)

	session, _, err := s.tokens.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *AuthService) authenticate(identity *core.Identity, claim core.CredentialClaim) (*core.Authentication, error) {
	token, expiresAt, err := s.tokens.Issue(identity, claim)
	if err != nil {
		return nil, err
	}
	return &core.Authentication{
		Token:     token,
		Identity:  identity,
		Claim:     claim,
		ExpiresAt: expiresAt,
	}, nil
}

// checkCredentials validates an email and a password against passwordRule.
// An empty passwordRule skips the password.
func (s *AuthService) checkCredentials(email, password, passwordRule string) error {
	var fields []core.FieldError
	if fe := s.check("email", email, "required,email"); fe != nil {
		fields = append(fields, *fe)
	}
	if passwordRule != "" {
		if fe := s.check("password", password, passwordRule); fe != nil {
			fields = append(fields, *fe)
		}
	}
	if len(fields) > 0 {
		return core.NewValidationError(fields...)
	}
	return nil
}

func (s *AuthService) passwordRule() string {
	return fmt.Sprintf("required,min=%d", s.cfg.MinPasswordLength)
}

func (s *AuthService) check(field, value, rule string) *core.FieldError {
	err := s.validate.Var(value, rule)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &core.FieldError{Field: field, Reason: reason(verrs[0])}
	}
	return &core.FieldError{Field: field, Reason: err.Error()}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return fe.Tag()
	}
}

func (s *AuthService) publish(ctx context.Context, event core.AuthEvent) {
	event.At = s.now()
	if err := s.publisher.PublishAuthEvent(ctx, event); err != nil {
		// The operation itself succeeded, so a lost event is only logged.
		s.logger.Warn().Err(err).
			Str("event", string(event.Type)).
			Str("subject", event.SubjectID).
			Msg("failed to publish auth event")
	}
}

func (s *AuthService) observe(operation string, err *error) {
	s.metrics.ObserveOutcome(operation, *err)

	kind := core.Kind(*err)
	switch kind {
	case "ok":
		s.logger.Debug().Str("op", operation).Msg("auth operation succeeded")
	case "internal", "store_unavailable":
		s.logger.Error().Err(*err).Str("op", operation).Msg("auth operation failed")
	default:
		s.logger.Info().Str("op", operation).Str("outcome", kind).Msg("auth operation rejected")
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishAuthEvent(context.Context, core.AuthEvent) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveOutcome(string, error) {}
