package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/miquiestampas/Aureo/pkg/ingest"
	"github.com/miquiestampas/Aureo/pkg/queue"
	"github.com/miquiestampas/Aureo/pkg/storage"
	"github.com/miquiestampas/Aureo/pkg/store"
)

// Config holds runtime dependencies for the core application.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Files    *storage.FileStore
	Queue    queue.Queue

	// Archive mirrors saved files into object storage when set.
	Archive       storage.ObjectStore
	PresignExpiry time.Duration

	PDF ingest.PDFExtractor
	// SettleDelay is waited before a detected file is read. Zero disables it.
	SettleDelay time.Duration
	Now         func() time.Time
}

// App wires storage, the processing queue and the ingest libraries.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	files         *storage.FileStore
	queue         queue.Queue
	archive       storage.ObjectStore
	presignExpiry time.Duration
	pdf           ingest.PDFExtractor
	matcher       ingest.Matcher
	settleDelay   time.Duration
	now           func() time.Time
}

// New validates cfg and constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Files == nil {
		return nil, errors.New("file store required")
	}
	if cfg.Queue == nil {
		return nil, errors.New("queue required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	settle := cfg.SettleDelay
	if settle < 0 {
		return nil, fmt.Errorf("settle delay must be >= 0, got %s", settle)
	}
	presign := cfg.PresignExpiry
	if presign <= 0 {
		presign = 15 * time.Minute
	}
	matcher := ingest.NewMatcher()
	matcher.Now = now
	return &App{
		store:         cfg.Store,
		sessions:      cfg.Sessions,
		files:         cfg.Files,
		queue:         cfg.Queue,
		archive:       cfg.Archive,
		presignExpiry: presign,
		pdf:           cfg.PDF,
		matcher:       matcher,
		settleDelay:   settle,
		now:           now,
	}, nil
}
