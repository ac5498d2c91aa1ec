package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/layer-3/gatekeeper/ports"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidDigest is returned when a stored digest cannot be parsed.
var ErrInvalidDigest = errors.New("invalid password digest")

// Upper bounds on the cost parameters of a digest accepted by Verify. They are
// fixed so that lowering the configured cost keeps older digests verifiable.
const (
	maxMemoryKiB   = 1 << 20 // 1 GiB
	maxIterations  = 16
	maxParallelism = 64
)

// Params tunes the argon2id key derivation.
type Params struct {
	MemoryKiB   uint32 `mapstructure:"memory_kib"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// DefaultParams follows the OWASP argon2id baseline.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes with argon2id and also verifies bcrypt digests
// carried over from earlier deployments.
type Hasher struct {
	params Params
}

// NewHasher creates a new password hasher. Zero fields of params take defaults.
func NewHasher(params Params) ports.PasswordHasher {
	def := DefaultParams()
	if params.MemoryKiB == 0 {
		params.MemoryKiB = def.MemoryKiB
	}
	if params.Iterations == 0 {
		params.Iterations = def.Iterations
	}
	if params.Parallelism == 0 {
		params.Parallelism = def.Parallelism
	}
	if params.SaltLength == 0 {
		params.SaltLength = def.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = def.KeyLength
	}
	return &Hasher{params: params}
}

// Hash returns $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<key>.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify checks secret against an argon2id or bcrypt digest.
func (h *Hasher) Verify(digest, secret string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return h.verifyArgon2id(digest, secret)
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
		}
		return true, nil
	default:
		return false, ErrInvalidDigest
	}
}

func (h *Hasher) verifyArgon2id(digest, secret string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return false, ErrInvalidDigest
	}

	var mem, iter uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return false, ErrInvalidDigest
	}
	if mem == 0 || iter == 0 || par == 0 {
		return false, ErrInvalidDigest
	}
	if mem > maxMemoryKiB || iter > maxIterations || par > maxParallelism {
		return false, ErrInvalidDigest
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidDigest
	}
	expected, err := b64.DecodeString(parts[5])
	if err != nil || len(expected) < 16 || len(expected) > 128 {
		return false, ErrInvalidDigest
	}

	key := argon2.IDKey([]byte(secret), salt, iter, mem, par, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}
