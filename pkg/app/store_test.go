package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/recordbook/pkg/config"
	"github.com/entrhq/recordbook/pkg/kv"
)

func TestOpenStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "memory", mutate: func(c *config.Config) { c.Backend = config.BackendMemory }},
		{name: "file", mutate: func(c *config.Config) { c.Backend = config.BackendFile }},
		{name: "sqlite", mutate: func(c *config.Config) { c.Backend = config.BackendSQLite }},
		{name: "redis", mutate: func(c *config.Config) {
			c.Backend = config.BackendRedis
			c.Redis.Addr = mr.Addr()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.Default()
			cfg.DataDir = filepath.Join(t.TempDir(), "data")
			cfg.QuotaBytes = 16
			tt.mutate(cfg)

			store, err := OpenStore(ctx, cfg)
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Set(ctx, "k", []byte("small")))
			got, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "small", string(got))

			err = store.Set(ctx, "k", []byte("this value is over the quota"))
			assert.ErrorIs(t, err, kv.ErrQuotaExceeded)
		})
	}
}

func TestOpenStore_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Backend = "floppy"
	_, err := OpenStore(ctx, cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Backend = config.BackendS3
	_, err = OpenStore(ctx, cfg)
	assert.Error(t, err, "s3 without bucket")
}
