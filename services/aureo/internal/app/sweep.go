package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	defaultRecoveryInterval = time.Minute
	defaultStaleAfter       = 5 * time.Minute
	recoveryBatch           = 100
)

// RecoverStalePending re-submits Pending activities that have not changed for
// staleAfter. Duplicate submissions are harmless because processing starts
// with a conditional claim.
func (a *App) RecoverStalePending(ctx context.Context, staleAfter time.Duration) (int, error) {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	stale, err := a.store.ListStalePending(a.now().UTC().Add(-staleAfter), recoveryBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale activities: %w", err)
	}
	submitted := 0
	for _, activity := range stale {
		if ctx.Err() != nil {
			break
		}
		if !a.submit(ctx, activity) {
			// queue saturated; the next sweep picks the rest up
			break
		}
		submitted++
	}
	if len(stale) > 0 {
		slog.Info("recovery_sweep", "stale", len(stale), "submitted", submitted)
	}
	return submitted, nil
}

// NewRecoveryScheduler returns a started gocron scheduler that runs
// RecoverStalePending every interval, starting immediately. Callers shut it
// down with Shutdown.
func (a *App) NewRecoveryScheduler(ctx context.Context, interval, staleAfter time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = defaultRecoveryInterval
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := a.RecoverStalePending(ctx, staleAfter); err != nil {
				slog.Error("recovery_sweep_failed", "err", err)
			}
		}),
		gocron.WithName("recover-stale-pending"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("schedule recovery sweep: %w", err)
	}
	scheduler.Start()
	return scheduler, nil
}
