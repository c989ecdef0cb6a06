package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/miquiestampas/Aureo/internal/ratelimit"
	"github.com/miquiestampas/Aureo/internal/util"
	"github.com/miquiestampas/Aureo/services/aureo/internal/config"
	"github.com/miquiestampas/Aureo/services/aureo/internal/server"
	"github.com/miquiestampas/Aureo/services/aureo/internal/watcher"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, file watcher and processing workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfgPath)
		},
	}
}

func serve(ctx context.Context, cfgPath string) error {
	c, err := openCore(cfgPath)
	if err != nil {
		return err
	}
	defer c.Close()
	cfg, logger := c.cfg, c.logger

	recoveryInterval, err := config.ParseDuration("recoveryInterval", cfg.RecoveryInterval, time.Minute)
	if err != nil {
		return err
	}
	staleAfter, err := config.ParseDuration("staleAfter", cfg.StaleAfter, 5*time.Minute)
	if err != nil {
		return err
	}

	var limiter ratelimit.Limiter
	if c.redis != nil {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(c.redis, "aureo:ratelimit:login", cfg.LoginRateLimitPerMinute, time.Minute)
	} else {
		limiter, err = ratelimit.NewMemoryFixedWindowLimiter(cfg.LoginRateLimitPerMinute, time.Minute)
	}
	if err != nil {
		return fmt.Errorf("init login limiter: %w", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}

	c.queue.Start(ctx, cfg.QueueConcurrency, c.app.ProcessActivity)

	watch, err := watcher.New(watcher.Config{
		Store:    c.store,
		Handler:  c.app.HandleDetectedFile,
		ExcelDir: cfg.ExcelWatchDir,
		PDFDir:   cfg.PDFWatchDir,
	})
	if err != nil {
		return fmt.Errorf("init watcher: %w", err)
	}
	active, err := watch.ShouldRun()
	if err != nil {
		return fmt.Errorf("read watcher state: %w", err)
	}
	if active {
		if err := watch.Start(ctx); err != nil {
			logger.Warn("file_watching_unavailable", "err", err)
		}
	}

	scheduler, err := c.app.NewRecoveryScheduler(ctx, recoveryInterval, staleAfter)
	if err != nil {
		watch.Stop()
		return err
	}

	api, err := server.New(server.Config{
		App:            c.app,
		Watcher:        watch,
		LoginLimiter:   limiter,
		TrustedProxies: trusted,
		CORSOrigins:    cfg.CORSOrigins,
	})
	if err != nil {
		watch.Stop()
		_ = scheduler.Shutdown()
		return fmt.Errorf("init server: %w", err)
	}
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr, "queue", cfg.QueueBackend, "watcher", watch.Status().Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		watch.Stop()
		if serr := scheduler.Shutdown(); serr != nil {
			logger.Warn("scheduler_shutdown_failed", "err", serr)
		}
		c.queue.Wait()
		return err
	})
	return g.Wait()
}
