package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts, err := Options(" localhost:6379 ")
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)

	opts, err = Options("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 2, opts.DB)

	_, err = Options("")
	require.Error(t, err)
	_, err = Options("redis://cache:6379/notadb")
	require.Error(t, err)
}

func TestNewPings(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = New(context.Background(), addr)
	require.Error(t, err)
}

func TestQueueOpt(t *testing.T) {
	opt, err := QueueOpt("redis://worker:pw@queue:6379/3")
	require.NoError(t, err)
	require.Equal(t, "queue:6379", opt.Addr)
	require.Equal(t, "worker", opt.Username)
	require.Equal(t, "pw", opt.Password)
	require.Equal(t, 3, opt.DB)
}
