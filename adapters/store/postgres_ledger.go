package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/layer-3/gatekeeper/core"
)

// upsertAttempts bounds the retries when a challenge is consumed between the
// conditional upsert and the read of the kept record.
const upsertAttempts = 3

func (s *PostgresStore) Get(ctx context.Context, address string) (*core.Nonce, error) {
	out := core.Nonce{Address: address}
	err := s.pool.QueryRow(ctx,
		`SELECT nonce, expire_at FROM `+s.table("nonces")+` WHERE wallet_address = $1`,
		address,
	).Scan(&out.Value, &out.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrChallengeNotFound
		}
		return nil, core.Unavailable("nonce.Get", err)
	}
	return &out, nil
}

// UpsertIfStale relies on ON CONFLICT .. DO UPDATE .. WHERE: the update only
// fires for a stale row, and RETURNING yields nothing when the fresh row is kept.
func (s *PostgresStore) UpsertIfStale(ctx context.Context, candidate core.Nonce, refreshBefore time.Time) (*core.Nonce, error) {
	nonces := s.table("nonces")

	for attempt := 0; attempt < upsertAttempts; attempt++ {
		out := core.Nonce{Address: candidate.Address}
		err := s.pool.QueryRow(ctx,
			`INSERT INTO `+nonces+` (wallet_address, nonce, expire_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (wallet_address) DO UPDATE
			    SET nonce = EXCLUDED.nonce, expire_at = EXCLUDED.expire_at, created_at = now()
			  WHERE `+nonces+`.expire_at <= $4
			 RETURNING nonce, expire_at`,
			candidate.Address, candidate.Value, candidate.ExpiresAt, refreshBefore,
		).Scan(&out.Value, &out.ExpiresAt)
		if err == nil {
			return &out, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, core.Unavailable("nonce.UpsertIfStale", err)
		}

		kept, err := s.Get(ctx, candidate.Address)
		if errors.Is(err, core.ErrChallengeNotFound) {
			continue
		}
		return kept, err
	}

	return nil, core.Unavailable("nonce.UpsertIfStale", fmt.Errorf("gave up after %d attempts", upsertAttempts))
}

func (s *PostgresStore) Consume(ctx context.Context, address, value string) error {
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table("nonces")+` WHERE wallet_address = $1 AND nonce = $2`,
		address, value,
	)
	if err != nil {
		return core.Unavailable("nonce.Consume", err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrChallengeNotFound
	}
	return nil
}
