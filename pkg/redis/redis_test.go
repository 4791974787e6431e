package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNew(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := Config{URL: "redis://" + mr.Addr() + "/0", ReadTimeout: 1, WriteTimeout: 1, DialTimeout: 1, PoolSize: 2}
	client, err := cfg.New(context.Background())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 2, client.Options().PoolSize)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConfigNewBadURL(t *testing.T) {
	cfg := Config{URL: "://nope"}
	_, err := cfg.New(context.Background())
	require.Error(t, err)
	assert.Panics(t, func() { cfg.MustNew(context.Background()) })
}
