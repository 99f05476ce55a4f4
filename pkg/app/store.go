package app

import (
	"context"
	"fmt"

	"github.com/entrhq/recordbook/pkg/config"
	"github.com/entrhq/recordbook/pkg/kv"
	"github.com/entrhq/recordbook/pkg/kv/filekv"
	"github.com/entrhq/recordbook/pkg/kv/rediskv"
	"github.com/entrhq/recordbook/pkg/kv/s3kv"
	"github.com/entrhq/recordbook/pkg/kv/sqlitekv"
)

// OpenStore opens the backend named by cfg.Backend and applies the
// configured quota.
func OpenStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	var (
		store kv.Store
		err   error
	)

	switch cfg.Backend {
	case config.BackendFile:
		store, err = filekv.Open(cfg.FileStorePath())
	case config.BackendSQLite:
		store, err = sqlitekv.Open(cfg.SQLitePath())
	case config.BackendRedis:
		store, err = rediskv.Open(ctx, rediskv.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	case config.BackendS3:
		store, err = s3kv.Open(ctx, s3kv.Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			Prefix:          cfg.S3.Prefix,
		})
	case config.BackendMemory:
		store = kv.NewMemory()
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	return kv.WithQuota(store, cfg.QuotaBytes), nil
}
