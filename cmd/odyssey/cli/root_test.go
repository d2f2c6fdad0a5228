package cli

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func run(t *testing.T, serve ServeFunc, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(serve)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootRunsServeWithLoadedConfig(t *testing.T) {
	var got *app.Config
	serve := func(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
		got = cfg
		require.NotNil(t, logger)
		return nil
	}

	_, err := run(t, serve)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "reversing_entry", got.ReversalMode)

	got = nil
	_, err = run(t, serve, "serve")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMigrateDownNeedsScope(t *testing.T) {
	noServe := func(context.Context, *app.Config, *slog.Logger) error {
		t.Fatalf("serve should not run")
		return nil
	}

	_, err := run(t, noServe, "migrate", "down")
	require.ErrorContains(t, err, "--all")

	_, err = run(t, noServe, "migrate", "down", "zero")
	require.ErrorContains(t, err, "positive")

	_, err = run(t, noServe, "migrate", "force", "x")
	require.Error(t, err)
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c, err := NewJobsCLI(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Trigger(context.Background(), "insights:warmup", jobs.LedgerIntegrityPayload{})
	require.ErrorContains(t, err, "unsupported job")

	_, err = NewJobsCLI(asynq.RedisClientOpt{})
	require.Error(t, err)
}

func TestPositive(t *testing.T) {
	n, err := positive("3")
	require.NoError(t, err)
	require.Equal(t, 3, n)
	for _, raw := range []string{"0", "-1", "two"} {
		if _, err := positive(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
