package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// maxTxAttempts bounds retries of transactions aborted by concurrent writers.
	maxTxAttempts = 6
	baseBackoff   = 10 * time.Millisecond
	maxBackoff    = 250 * time.Millisecond
)

// WithTx runs fn in a ReadCommitted transaction. Writers serialise on row locks
// (SELECT ... FOR UPDATE and in-place increments), so concurrent posts to the same
// account queue instead of aborting. Deadlocks and serialization failures are
// retried with a fresh transaction after a jittered pause; fn must therefore be
// safe to run more than once.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return retry(ctx, func() error {
		return runTx(ctx, pool, fn)
	})
}

func retry(ctx context.Context, attempt func() error) error {
	var err error
	for n := 1; n <= maxTxAttempts; n++ {
		err = attempt()
		if err == nil || !Retryable(err) || n == maxTxAttempts {
			return err
		}
		timer := time.NewTimer(backoff(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// backoff doubles per attempt up to maxBackoff and returns a random duration
// in the upper half of that window.
func backoff(attempt int) time.Duration {
	window := baseBackoff << (attempt - 1)
	if window <= 0 || window > maxBackoff {
		window = maxBackoff
	}
	half := window / 2
	return half + rand.N(half+1)
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}

// Retryable reports whether err is a serialization failure or deadlock.
func Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
