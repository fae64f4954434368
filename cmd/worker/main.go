// Package main runs the background job worker (final leaderboard snapshots to S3).
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/votestream/backend/config"
	"github.com/votestream/backend/internal/ideas"
	"github.com/votestream/backend/internal/snapshots"
	"github.com/votestream/backend/internal/votes"
	"github.com/votestream/backend/internal/worker"
	"github.com/votestream/backend/pkg/database"
	"github.com/votestream/backend/pkg/queue"
	"github.com/votestream/backend/pkg/redis"
	"github.com/votestream/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Voting.UsesMemory() {
		logger.Fatal("the worker needs STORE_BACKEND=postgres")
	}
	if !cfg.AWS.SnapshotsEnabled() {
		logger.Fatal("AWS_S3_SNAPSHOTS_BUCKET is required")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, database.PoolConfig{
		DSN:      cfg.Database.DSN(),
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		SnapshotsBucket:      cfg.AWS.SnapshotsBucket,
		Endpoint:             cfg.AWS.Endpoint,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewLeaderboardProcessor(
		ideas.NewRepository(pool),
		votes.NewRepository(pool),
		s3Client,
		snapshots.NewRepository(pool),
		jobQueue,
		logger,
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		processor.Run(gctx)
		return nil
	})
	logger.Info("worker started")

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
		return
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
