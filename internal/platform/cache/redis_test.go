package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewPingsRedis(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := New(context.Background(), Options{Addr: srv.Addr(), DB: 2})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, Pinger(client)(context.Background()))

	srv.Close()
	require.Error(t, Pinger(client)(context.Background()))
}

func TestNewReturnsClientWhenUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	client, err := New(context.Background(), Options{Addr: addr, DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}
