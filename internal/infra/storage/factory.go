// Package storage builds the configured revocation backend.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/dynamo"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/memory"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/postgres"
	myRedis "github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/redis"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/repo"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/migrate"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Backend struct {
	Name  string
	Store repo.Store
	// Purger is nil for backends that expire records natively.
	Purger repo.Purger
	Close  func() error
}

func nopClose() error { return nil }

// Open constructs the backend named by cfg.StoreBackend and checks that it
// answers a ping.
func Open(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *zap.Logger) (*Backend, error) {
	var (
		b   *Backend
		err error
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		s := memory.NewMemoryStore()
		b = &Backend{Store: s, Purger: s, Close: nopClose}
	case config.BackendRedis:
		b, err = openRedis(cfg)
	case config.BackendPostgres:
		b, err = openPostgres(cfg)
	case config.BackendDynamoDB:
		b, err = openDynamo(ctx, cfg, clk)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	b.Name = cfg.StoreBackend

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.Store.Ping(pingCtx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("ping %s: %w", b.Name, err)
	}

	logger.Info("revocation store ready", zap.String("backend", b.Name))
	return b, nil
}

func openRedis(cfg *config.Config) (*Backend, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	s := myRedis.NewRedisRevocationRepo(cli, cfg.RedisKey)
	return &Backend{Store: s, Purger: s, Close: cli.Close}, nil
}

func openPostgres(cfg *config.Config) (*Backend, error) {
	db, err := gorm.Open(gormpg.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if err := migrate.Up(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s := postgres.NewPostgresRevocationRepo(db)
	return &Backend{Store: s, Purger: s, Close: sqlDB.Close}, nil
}

func openDynamo(ctx context.Context, cfg *config.Config, clk clock.Clock) (*Backend, error) {
	cli, err := dynamo.NewClient(ctx, dynamo.ClientConfig{
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.DynamoDBEndpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	s, err := dynamo.NewDynamoRevocationRepo(cli, clk, dynamo.Options{
		Table:          cfg.DynamoDBTable,
		BucketSize:     cfg.DynamoDBBucketSize,
		Retention:      cfg.RetentionPeriod,
		ConsistentRead: cfg.DynamoDBConsistentRead,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{Store: s, Close: nopClose}, nil
}
