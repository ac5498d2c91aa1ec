package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/gatekeeper/core"
)

//go:embed postgres_schema.sql
var postgresSchema string

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStore implements the identity store and the nonce ledger over PostgreSQL.
// The pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresStore creates a new Postgres store in schema (default "gatekeeper").
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("store: nil pool")
	}
	if schema == "" {
		schema = "gatekeeper"
	}
	if !pgIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("store: invalid schema identifier %q", schema)
	}
	return &PostgresStore{pool: pool, schema: schema}, nil
}

// Migrate creates the schema, tables and unique indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl := strings.ReplaceAll(postgresSchema, "{{schema}}", pgx.Identifier{s.schema}.Sanitize())
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to migrate schema %s: %w", s.schema, err)
	}
	return nil
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

const identityColumns = `id::text, email, password_hash, wallet_address, created_at, updated_at, last_login_at`

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*core.Identity, error) {
	return s.findOne(ctx, "identity.FindByID", `id = $1`, id)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*core.Identity, error) {
	return s.findOne(ctx, "identity.FindByEmail", `email_norm = $1`, core.NormalizeEmail(email))
}

func (s *PostgresStore) FindByWallet(ctx context.Context, address string) (*core.Identity, error) {
	return s.findOne(ctx, "identity.FindByWallet", `wallet_address = $1`, address)
}

func (s *PostgresStore) findOne(ctx context.Context, op, where string, arg any) (*core.Identity, error) {
	var out core.Identity
	err := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM `+s.table("identities")+` WHERE `+where,
		arg,
	).Scan(
		&out.ID,
		&out.Email,
		&out.PasswordHash,
		&out.WalletAddress,
		&out.CreatedAt,
		&out.UpdatedAt,
		&out.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrIdentityNotFound
		}
		if pgIsInvalidText(err) {
			// a non-UUID id cannot match any row
			return nil, core.ErrIdentityNotFound
		}
		return nil, core.Unavailable(op, err)
	}
	return &out, nil
}

func (s *PostgresStore) Insert(ctx context.Context, identity *core.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	var emailNorm *string
	if identity.Email != nil {
		n := core.NormalizeEmail(*identity.Email)
		emailNorm = &n
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table("identities")+` (
		     id, email, email_norm, password_hash, wallet_address, created_at, updated_at, last_login_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		identity.ID,
		identity.Email,
		emailNorm,
		identity.PasswordHash,
		identity.WalletAddress,
		identity.CreatedAt,
		identity.UpdatedAt,
		identity.LastLoginAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return core.ConflictError{Field: field}
		}
		return core.Unavailable("identity.Insert", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, "identity.UpdateLastLogin",
		`UPDATE `+s.table("identities")+` SET last_login_at = $2 WHERE id = $1`,
		id, at,
	)
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error {
	return s.exec(ctx, "identity.UpdatePassword",
		`UPDATE `+s.table("identities")+` SET password_hash = $2, updated_at = $3
		  WHERE id = $1 AND email IS NOT NULL`,
		id, passwordHash, at,
	)
}

func (s *PostgresStore) exec(ctx context.Context, op, sql string, args ...any) error {
	ct, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return core.Unavailable(op, err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrIdentityNotFound
	}
	return nil
}

func pgIsInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02" // invalid_text_representation
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(pgErr.ConstraintName)
	switch {
	case strings.Contains(c, "email"):
		return "email", true
	case strings.Contains(c, "wallet"):
		return "wallet_address", true
	case strings.Contains(c, "pkey"):
		return "id", true
	default:
		return "unique", true
	}
}
