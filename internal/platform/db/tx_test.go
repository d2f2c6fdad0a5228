package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"serialization": {&pgconn.PgError{Code: "40001"}, true},
		"deadlock":      {fmt.Errorf("post: %w", &pgconn.PgError{Code: "40P01"}), true},
		"unique":        {&pgconn.PgError{Code: "23505"}, false},
		"plain":         {errors.New("boom"), false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}

func TestRetryStopsOnSuccessOrPermanentError(t *testing.T) {
	ctx := context.Background()
	deadlock := &pgconn.PgError{Code: "40P01"}

	calls := 0
	err := retry(ctx, func() error {
		calls++
		if calls < 3 {
			return deadlock
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	calls = 0
	err = retry(ctx, func() error {
		calls++
		return errors.New("constraint")
	})
	require.EqualError(t, err, "constraint")
	require.Equal(t, 1, calls)

	calls = 0
	err = retry(ctx, func() error {
		calls++
		return deadlock
	})
	require.ErrorAs(t, err, new(*pgconn.PgError))
	require.Equal(t, maxTxAttempts, calls)
}

func TestRetryGivesUpWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, func() error {
		calls++
		cancel()
		return &pgconn.PgError{Code: "40001"}
	})
	require.True(t, Retryable(err))
	require.Equal(t, 1, calls)
}

func TestBackoffStaysInWindow(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		window := baseBackoff << (attempt - 1)
		if window > maxBackoff {
			window = maxBackoff
		}
		for i := 0; i < 20; i++ {
			d := backoff(attempt)
			if d < window/2 || d > window {
				t.Fatalf("attempt %d: backoff %s outside [%s, %s]", attempt, d, window/2, window)
			}
		}
	}
}
