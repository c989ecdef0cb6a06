package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	gormlogger "gorm.io/gorm/logger"

	"github.com/miquiestampas/Aureo/internal/util"
	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/pkg/queue"
	"github.com/miquiestampas/Aureo/pkg/storage"
	"github.com/miquiestampas/Aureo/pkg/store"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
	full  bool
}

func (q *recordingQueue) Submit(_ context.Context, task queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return queue.ErrQueueFull
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) Start(context.Context, int, queue.Handler) {}

func (q *recordingQueue) Wait() {}

func (q *recordingQueue) submitted() []queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Task(nil), q.tasks...)
}

type testEnv struct {
	app   *App
	store *store.GormStore
	queue *recordingQueue
	clock *time.Time
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnvWithStore(t, nil)
}

// newTestEnvWithStore lets a test wrap the SQLite store the App sees.
func newTestEnvWithStore(t *testing.T, wrap func(*store.GormStore) store.Store) testEnv {
	t.Helper()
	dsn := "file:" + util.NewID() + "?mode=memory&cache=shared"
	st, err := store.NewGormStore(dsn, store.WithLogLevel(gormlogger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	sessions, err := store.NewJWTSessionStore("0123456789abcdef0123456789abcdef", time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	require.NoError(t, err)

	clock := time.Now().UTC()
	q := &recordingQueue{}
	var appStore store.Store = st
	if wrap != nil {
		appStore = wrap(st)
	}
	a, err := New(Config{
		Store:    appStore,
		Sessions: sessions,
		Files:    files,
		Queue:    q,
		Now:      func() time.Time { return clock },
	})
	require.NoError(t, err)
	return testEnv{app: a, store: st, queue: q, clock: &clock}
}

func (e testEnv) seedStore(t *testing.T, code string, ft domain.FileType) {
	t.Helper()
	require.NoError(t, e.store.SaveStore(domain.Store{
		ID:        util.NewID(),
		Code:      code,
		Name:      code,
		Type:      ft,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}))
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeOrdersWorkbook(t *testing.T, name string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	header := []any{"Código", "Pedido", "Fecha", "Cliente", "DNI", "Dirección", "Localidad",
		"Artículo", "Peso", "Metal", "Grabado", "Piedras", "Precio", "Papeleta", "Venta"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
