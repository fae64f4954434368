// Package main runs the VoteStream HTTP server with WebSocket, session countdown and graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/votestream/backend/config"
	"github.com/votestream/backend/internal/auth"
	"github.com/votestream/backend/internal/ideas"
	"github.com/votestream/backend/internal/leaderboard"
	"github.com/votestream/backend/internal/middleware"
	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/internal/realtime"
	"github.com/votestream/backend/internal/sessions"
	"github.com/votestream/backend/internal/snapshots"
	"github.com/votestream/backend/internal/users"
	"github.com/votestream/backend/internal/votes"
	"github.com/votestream/backend/internal/worker"
	"github.com/votestream/backend/pkg/database"
	"github.com/votestream/backend/pkg/queue"
	"github.com/votestream/backend/pkg/redis"
	"github.com/votestream/backend/pkg/response"
	"github.com/votestream/backend/pkg/storage"
)

// stores groups the persistence backends selected by STORE_BACKEND.
type stores struct {
	users    users.Store
	ideas    ideas.Store
	votes    votes.Store
	sessions sessions.Store
}

func memoryStores() stores {
	return stores{
		users:    users.NewMemoryStore(),
		ideas:    ideas.NewMemoryStore(),
		votes:    votes.NewMemoryStore(),
		sessions: sessions.NewMemoryStore(),
	}
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		users:    users.NewRepository(pool),
		ideas:    ideas.NewRepository(pool),
		votes:    votes.NewRepository(pool),
		sessions: sessions.NewRepository(pool),
	}
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	var (
		st   stores
		pool *pgxpool.Pool
		rdb  *redis.Client
	)
	if cfg.Voting.UsesMemory() {
		logger.Warn("using in-memory stores; run a single instance only")
		st = memoryStores()
	} else {
		pool, err = database.NewPostgresPool(ctx, database.PoolConfig{
			DSN:      cfg.Database.DSN(),
			MaxConns: int32(cfg.Database.MaxConns),
		}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		st = postgresStores(pool)

		rdb, err = redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	var (
		hub    *realtime.Hub
		pubsub *realtime.RedisPubSub
	)
	if rdb != nil {
		pubsub = realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}
	room := hub.Room(cfg.Voting.SessionName)

	// Voting session
	ctrl := sessions.NewController(cfg.Voting.SessionName, st.sessions, room, logger)
	syncer := sessions.NewSynchronizer(ctrl, st.sessions, room, logger)
	if err := syncer.Load(ctx); err != nil {
		logger.Warn("initial session load failed; starting idle", zap.Error(err))
	}
	ticker := sessions.NewTicker(ctrl, syncer, cfg.Voting.TickInterval, logger)
	sessionHandler := sessions.NewHandler(ctrl, cfg.Voting.DefaultDurationSeconds)

	// Participants
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(st.users, jwtService, cfg.Voting.AdminEmails, logger)
	userHandler := users.NewHandler(st.users, logger)

	// Ideas and votes
	ideaService := ideas.NewService(st.ideas, room, logger)
	ideaHandler := ideas.NewHandler(ideaService, logger)
	ledger := votes.NewLedger(st.votes, ideaService, ctrl, room, logger)
	voteHandler := votes.NewHandler(ledger, st.users, logger)

	// Final leaderboard snapshots (S3 + Redis job queue)
	var (
		processor  *worker.LeaderboardProcessor
		snapFinder leaderboard.SnapshotFinder
		signer     leaderboard.URLSigner
	)
	if pool != nil && rdb != nil && cfg.AWS.SnapshotsEnabled() {
		s3Client, err := storage.NewS3(ctx, s3Config(cfg), logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			snapRepo := snapshots.NewRepository(pool)
			jobQueue := queue.NewQueue(rdb.Client, logger)
			ctrl.OnEnded(snapshots.NewScheduler(jobQueue, st.ideas, st.votes, logger).RoundEnded)
			processor = worker.NewLeaderboardProcessor(st.ideas, st.votes, s3Client, snapRepo, jobQueue, logger)
			snapFinder, signer = snapRepo, s3Client
		}
	}
	leaderboardHandler := leaderboard.NewHandler(ideaService, ledger, ctrl, snapFinder, signer, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me", userHandler.Me)
		api.GET("/users/search", userHandler.Search)

		api.GET("/ideas", ideaHandler.List)
		api.POST("/ideas", ideaHandler.Submit)
		api.POST("/ideas/batch", ideaHandler.SubmitBatch)
		api.GET("/ideas/votable", ideaHandler.Votable)
		api.POST("/ideas/:id/votes", voteHandler.Cast)
		api.GET("/ideas/:id/votes", voteHandler.Summary)

		api.GET("/session", sessionHandler.Get)
		api.POST("/session/start", sessionHandler.Start)
		api.POST("/session/end", middleware.RequireRole(models.RoleAdmin), sessionHandler.End)

		api.GET("/leaderboard", leaderboardHandler.Live)
		api.GET("/leaderboard/snapshots/:round", leaderboardHandler.Snapshot)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, cfg.Voting.SessionName, jwtService.ParticipantID,
		func() (string, interface{}) { return sessions.EventSessionChanged, ctrl.Snapshot() }))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	if pubsub != nil {
		g.Go(func() error { return syncer.Run(gctx, pubsub) })
	}
	if processor != nil {
		g.Go(func() error {
			logger.Info("leaderboard worker started")
			processor.Run(gctx)
			return nil
		})
	}
	ticker.Start()
	defer ticker.Stop()

	g.Go(func() error {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("session", cfg.Voting.SessionName))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func s3Config(cfg *config.Config) storage.S3Config {
	return storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		SnapshotsBucket:      cfg.AWS.SnapshotsBucket,
		Endpoint:             cfg.AWS.Endpoint,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
