package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/pkg/store"
)

func onlyActivity(t *testing.T, e testEnv) domain.FileActivity {
	t.Helper()
	list, err := e.store.ListActivities(store.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

func TestHandleDetectedFileResolvesStore(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	src := writeSource(t, "MAD01_pedidos.xlsx", "payload")

	e.app.HandleDetectedFile(context.Background(), src, domain.FileTypeExcel)

	a := onlyActivity(t, e)
	assert.Equal(t, domain.StatusPending, a.Status)
	assert.Equal(t, "MAD01", a.StoreCode)
	assert.Equal(t, "MAD01", a.DetectedStoreCode)
	assert.Equal(t, src, a.OriginalPath)
	assert.Equal(t, int64(len("payload")), a.FileSize)
	assert.Equal(t, "excel", filepath.Base(filepath.Dir(a.SavedPath)))
	assert.True(t, strings.HasSuffix(a.SavedPath, "_MAD01_pedidos.xlsx"))

	_, err := os.Stat(src)
	require.NoError(t, err, "source file must stay in place")

	tasks := e.queue.submitted()
	require.Len(t, tasks, 1)
	assert.Equal(t, a.ID, tasks[0].ActivityID)
	assert.Equal(t, domain.FileTypeExcel, tasks[0].FileType)
}

func TestHandleDetectedFileUnresolvedStore(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	src := writeSource(t, "ZZZ99_pedidos.xlsx", "payload")

	e.app.HandleDetectedFile(context.Background(), src, domain.FileTypeExcel)

	a := onlyActivity(t, e)
	assert.Equal(t, domain.StatusPendingStoreAssignment, a.Status)
	assert.Empty(t, a.StoreCode)
	assert.Equal(t, "ZZZ99", a.DetectedStoreCode)
	assert.Empty(t, e.queue.submitted())
}

func TestHandleDetectedFileAutoDetection(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "DOC01", domain.FileTypePDF)
	require.NoError(t, e.store.SetConfig(domain.ConfigAutoStoreDetection, "true", ""))
	src := writeSource(t, "scan.pdf", "%PDF-1.4")

	e.app.HandleDetectedFile(context.Background(), src, domain.FileTypePDF)

	a := onlyActivity(t, e)
	assert.Equal(t, domain.StatusPending, a.Status)
	assert.Equal(t, "DOC01", a.StoreCode)
	assert.Len(t, e.queue.submitted(), 1)
}

func TestHandleDetectedFileStoreTypeMustMatch(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "MAD01", domain.FileTypePDF)
	src := writeSource(t, "MAD01_pedidos.xlsx", "payload")

	e.app.HandleDetectedFile(context.Background(), src, domain.FileTypeExcel)

	assert.Equal(t, domain.StatusPendingStoreAssignment, onlyActivity(t, e).Status)
}

func TestHandleDetectedFileCancelledDuringSettle(t *testing.T) {
	e := newTestEnv(t)
	e.app.settleDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e.app.HandleDetectedFile(ctx, writeSource(t, "MAD01_x.xlsx", "x"), domain.FileTypeExcel)

	list, err := e.store.ListActivities(store.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandleDetectedFileMissingSourceCreatesNothing(t *testing.T) {
	e := newTestEnv(t)
	e.app.HandleDetectedFile(context.Background(), filepath.Join(t.TempDir(), "gone.xlsx"), domain.FileTypeExcel)

	list, err := e.store.ListActivities(store.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestQueueFullLeavesPendingForRecovery(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	e.queue.full = true

	e.app.HandleDetectedFile(context.Background(), writeSource(t, "MAD01_a.xlsx", "x"), domain.FileTypeExcel)
	a := onlyActivity(t, e)
	assert.Equal(t, domain.StatusPending, a.Status)

	e.queue.full = false
	n, err := e.app.RecoverStalePending(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "fresh activities are not stale yet")

	*e.clock = e.clock.Add(10 * time.Minute)
	n, err = e.app.RecoverStalePending(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, e.queue.submitted(), 1)
	assert.Equal(t, a.ID, e.queue.submitted()[0].ActivityID)
}

func TestUpdateActivityStatus(t *testing.T) {
	e := newTestEnv(t)
	e.app.HandleDetectedFile(context.Background(), writeSource(t, "X.xlsx", "x"), domain.FileTypeExcel)
	a := onlyActivity(t, e)

	assert.True(t, e.app.UpdateActivityStatus(a.ID, domain.StatusProcessing, ""))
	got, err := e.app.GetActivity(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.NotNil(t, got.ProcessedAt)

	assert.True(t, e.app.UpdateActivityStatus(a.ID, domain.StatusFailed, "boom"))
	got, err = e.app.GetActivity(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "boom", got.ErrorMessage)

	assert.False(t, e.app.UpdateActivityStatus(a.ID, domain.StatusPendingStoreAssignment, ""))
	assert.False(t, e.app.UpdateActivityStatus("missing", domain.StatusProcessed, ""))
}

func TestUpload(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	ctx := context.Background()

	_, err := e.app.Upload(ctx, UploadRequest{Filename: "notes.txt", Body: strings.NewReader("x"), StoreCode: "MAD01"})
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = e.app.Upload(ctx, UploadRequest{Filename: "a.xlsx", Body: strings.NewReader("x"), StoreCode: "NOPE"})
	assert.ErrorIs(t, err, ErrStoreNotFound)

	_, err = e.app.Upload(ctx, UploadRequest{Filename: "a.pdf", Body: strings.NewReader("x"), StoreCode: "MAD01"})
	assert.ErrorIs(t, err, ErrStoreTypeMismatch)

	a, err := e.app.Upload(ctx, UploadRequest{Filename: "pedidos.xlsx", Body: strings.NewReader("xyz"), StoreCode: "MAD01", ActorID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, a.Status)
	assert.Equal(t, "u1", a.ProcessedBy)
	assert.Equal(t, int64(3), a.FileSize)
	assert.Len(t, e.queue.submitted(), 1)
}

func TestAssignStore(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	e.seedStore(t, "DOC01", domain.FileTypePDF)
	ctx := context.Background()

	e.app.HandleDetectedFile(ctx, writeSource(t, "unknown.xlsx", "x"), domain.FileTypeExcel)
	a := onlyActivity(t, e)
	require.Equal(t, domain.StatusPendingStoreAssignment, a.Status)

	_, err := e.app.AssignStore(ctx, a.ID, "DOC01", "u1")
	assert.ErrorIs(t, err, ErrStoreTypeMismatch)
	_, err = e.app.AssignStore(ctx, "missing", "MAD01", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := e.app.AssignStore(ctx, a.ID, "MAD01", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "MAD01", got.StoreCode)
	assert.Equal(t, "u1", got.ProcessedBy)
	assert.Len(t, e.queue.submitted(), 1)

	_, err = e.app.AssignStore(ctx, a.ID, "MAD01", "u1")
	assert.True(t, errors.Is(err, ErrInvalidState), "pending activities cannot be reassigned")
}

func TestReprocess(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	ctx := context.Background()

	e.app.HandleDetectedFile(ctx, writeSource(t, "orphan.xlsx", "x"), domain.FileTypeExcel)
	orphan := onlyActivity(t, e)
	_, err := e.app.Reprocess(ctx, orphan.ID, "cli")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.app.AssignStore(ctx, orphan.ID, "MAD01", "u1")
	require.NoError(t, err)
	require.True(t, e.app.UpdateActivityStatus(orphan.ID, domain.StatusProcessing, ""))
	_, err = e.app.Reprocess(ctx, orphan.ID, "cli")
	assert.ErrorIs(t, err, ErrInvalidState, "running activities cannot be reprocessed")

	require.True(t, e.app.UpdateActivityStatus(orphan.ID, domain.StatusProcessed, ""))
	got, err := e.app.Reprocess(ctx, orphan.ID, "cli")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Len(t, e.queue.submitted(), 2)
}
