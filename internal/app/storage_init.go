package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/file"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
	"github.com/vladislavdragonenkov/pos/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/pos/internal/storage/redis"
)

// openKeyValueStore открывает выбранный бэкенд. closeFn всегда не nil.
func openKeyValueStore(ctx context.Context, cfg Config, logger *log.Entry) (domain.KeyValueStore, func() error, error) {
	noop := func() error { return nil }
	logger = logger.WithField("storage", cfg.StorageDriver)

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewKeyValueStore(), noop, nil

	case StorageDriverFile:
		store, err := file.Open(cfg.DataDir, logger)
		if err != nil {
			return nil, noop, err
		}
		logger.WithField("dir", store.Dir()).Info("file storage opened")
		return store, noop, nil

	case StorageDriverRedis:
		client, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		logger.WithField("addr", cfg.RedisAddr).Info("redis storage connected")
		return redisstore.NewStore(client, cfg.RedisPrefix), client.Close, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, noop, fmt.Errorf("postgres storage requires POS_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresNamespace)
		if err != nil {
			return nil, noop, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close()
				return nil, noop, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		logger.WithField("namespace", cfg.PostgresNamespace).Info("postgres storage opened")
		return store, func() error { store.Close(); return nil }, nil

	default:
		return nil, noop, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
