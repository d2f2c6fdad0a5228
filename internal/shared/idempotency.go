package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	ledgershared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// IdempotencyStore persists request keys and the resource each one produced.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

var errKeyRequired = errors.New("idempotency key and scope required")

// Claim reserves key within scope. A key that was already claimed returns
// ErrIdempotencyConflict together with the id recorded by Complete, or zero
// while the first request is still in flight.
func (s *IdempotencyStore) Claim(ctx context.Context, scope, key string) (int64, error) {
	if s == nil {
		return 0, errors.New("idempotency store not initialised")
	}
	if key == "" || scope == "" {
		return 0, errKeyRequired
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO ledger_idempotency_keys (scope, key, created_at) VALUES ($1, $2, $3)`, scope, key, time.Now())
	if err == nil {
		return 0, nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return 0, err
	}
	var resultID *int64
	err = s.pool.QueryRow(ctx, `SELECT result_id FROM ledger_idempotency_keys WHERE scope = $1 AND key = $2`, scope, key).Scan(&resultID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if resultID == nil {
		return 0, ledgershared.ErrIdempotencyConflict
	}
	return *resultID, ledgershared.ErrIdempotencyConflict
}

// Complete records the resource produced for a claimed key.
func (s *IdempotencyStore) Complete(ctx context.Context, scope, key string, resultID int64) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE ledger_idempotency_keys SET result_id = $3 WHERE scope = $1 AND key = $2`, scope, key, resultID)
	return err
}

// Release removes a key so the request can be retried after a failure.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if s == nil {
		return nil
	}
	if key == "" || scope == "" {
		return errKeyRequired
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM ledger_idempotency_keys WHERE scope = $1 AND key = $2`, scope, key)
	return err
}

// Cleanup removes entries older than retention and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, `DELETE FROM ledger_idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
