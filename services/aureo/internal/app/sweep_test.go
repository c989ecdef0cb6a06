package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquiestampas/Aureo/pkg/domain"
)

func TestRecoverySchedulerRunsImmediately(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	e.queue.full = true
	e.app.HandleDetectedFile(context.Background(), writeSource(t, "MAD01_a.xlsx", "x"), domain.FileTypeExcel)
	a := onlyActivity(t, e)
	e.queue.mu.Lock()
	e.queue.full = false
	e.queue.mu.Unlock()
	*e.clock = e.clock.Add(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler, err := e.app.NewRecoveryScheduler(ctx, time.Hour, 5*time.Minute)
	require.NoError(t, err)
	defer func() { _ = scheduler.Shutdown() }()

	require.Eventually(t, func() bool { return len(e.queue.submitted()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, a.ID, e.queue.submitted()[0].ActivityID)
}
