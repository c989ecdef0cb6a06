package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/miquiestampas/Aureo/internal/util"
	"github.com/miquiestampas/Aureo/pkg/ingest"
	"github.com/miquiestampas/Aureo/pkg/queue"
	"github.com/miquiestampas/Aureo/pkg/storage"
	"github.com/miquiestampas/Aureo/pkg/store"
	"github.com/miquiestampas/Aureo/services/aureo/internal/app"
	"github.com/miquiestampas/Aureo/services/aureo/internal/config"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "aureo",
		Short:         "Pawn shop order ingestion and watchlist alerting service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", config.ConfigPath, "path to the YAML config file")
	root.AddCommand(
		newServeCmd(&cfgPath),
		newMigrateCmd(&cfgPath),
		newCreateSuperAdminCmd(&cfgPath),
		newReprocessCmd(&cfgPath),
	)
	return root
}

// core holds the dependencies shared by every subcommand.
type core struct {
	cfg    config.FileConfig
	logger *slog.Logger
	store  *store.GormStore
	redis  *redis.Client
	queue  queue.Queue
	app    *app.App
}

func (c *core) Close() {
	if closer, ok := c.queue.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.store != nil {
		_ = c.store.Close()
	}
}

func loadConfig(path string) (config.FileConfig, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, util.InitLogger(cfg.LogLevel), nil
}

// openCore loads config and wires storage, sessions and the queue. The
// caller owns the returned core and must Close it.
func openCore(path string) (*core, error) {
	cfg, logger, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	c := &core{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	c.store, err = store.NewGormStore(cfg.DatabaseURL, store.WithLogLevel(store.ParseLogLevel(cfg.DBLogLevel)))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.RedisAddr != "" {
		c.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}

	sessionTTL, err := config.ParseDuration("sessionTTL", cfg.SessionTTL, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	sessions, err := c.sessionStore(sessionTTL)
	if err != nil {
		return nil, err
	}

	c.queue, err = c.newQueue()
	if err != nil {
		return nil, err
	}

	files, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	var archive storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		archive, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}
	settle, err := config.ParseDuration("settleDelay", cfg.SettleDelay, time.Second)
	if err != nil {
		return nil, err
	}

	c.app, err = app.New(app.Config{
		Store:       c.store,
		Sessions:    sessions,
		Files:       files,
		Queue:       c.queue,
		Archive:     archive,
		PDF:         ingest.PDFExtractor{UsePdftotext: cfg.UsePdftotext},
		SettleDelay: settle,
	})
	if err != nil {
		return nil, fmt.Errorf("init app: %w", err)
	}
	ok = true
	return c, nil
}

func (c *core) sessionStore(ttl time.Duration) (store.SessionStore, error) {
	if c.cfg.JWTSecret == "" {
		if c.redis == nil {
			return nil, fmt.Errorf("jwtSecret or redisAddr is required for sessions")
		}
		return store.NewRedisSessionStore(c.redis, ttl), nil
	}
	var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
	if c.redis != nil {
		revoker = store.NewRedisTokenRevoker(c.redis, ttl)
	}
	leeway, err := config.ParseDuration("jwtLeeway", c.cfg.JWTLeeway, 0)
	if err != nil {
		return nil, err
	}
	return store.NewJWTSessionStore(c.cfg.JWTSecret, ttl, revoker, store.JWTOptions{
		Issuer:   c.cfg.JWTIssuer,
		Audience: c.cfg.JWTAudience,
		Leeway:   leeway,
	})
}

func (c *core) newQueue() (queue.Queue, error) {
	if c.cfg.QueueBackend != config.QueueRedis {
		return queue.NewWorkerPool(c.cfg.QueueCapacity), nil
	}
	q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:       c.cfg.RedisAddr,
		Password:   c.cfg.RedisPassword,
		Stream:     c.cfg.QueueName,
		Group:      c.cfg.QueueGroup,
		MaxRetries: c.cfg.QueueMaxRetries,
		RetryDelay: time.Duration(c.cfg.QueueRetryDelaySeconds) * time.Second,
		MaxLen:     int64(c.cfg.QueueCapacity),
	})
	if err != nil {
		return nil, fmt.Errorf("init redis queue: %w", err)
	}
	return q, nil
}
