package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/miquiestampas/Aureo/pkg/domain"
)

var extensions = map[domain.FileType][]string{
	domain.FileTypeExcel: {".xlsx", ".xls", ".xlsm"},
	domain.FileTypePDF:   {".pdf"},
}

// Handler is called once per detected file, on its own goroutine.
type Handler func(ctx context.Context, path string, fileType domain.FileType)

// ConfigStore persists the watching flag and the watched directories.
type ConfigStore interface {
	GetConfig(key string) (string, bool, error)
	SetConfig(key, value, description string) error
}

// Config wires the watcher service.
type Config struct {
	Backend Backend
	Store   ConfigStore
	Handler Handler
	// Default directories; EXCEL_WATCH_DIR and PDF_WATCH_DIR in the
	// system config take precedence when set.
	ExcelDir string
	PDFDir   string
}

// Status is a snapshot of the watcher state.
type Status struct {
	Running  bool   `json:"running"`
	Backend  string `json:"backend"`
	ExcelDir string `json:"excelDir"`
	PDFDir   string `json:"pdfDir"`
}

// Service owns the lifecycle of the directory watches.
type Service struct {
	backend Backend
	store   ConfigStore
	handler Handler
	defDirs map[domain.FileType]string

	mu      sync.Mutex
	running bool
	dirs    map[domain.FileType]string
	stream  Stream
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a stopped watcher service.
func New(cfg Config) (*Service, error) {
	if cfg.Handler == nil {
		return nil, errors.New("watcher handler required")
	}
	if cfg.Store == nil {
		return nil, errors.New("watcher config store required")
	}
	backend := cfg.Backend
	if backend == nil {
		backend = Detect()
	}
	return &Service{
		backend: backend,
		store:   cfg.Store,
		handler: cfg.Handler,
		defDirs: map[domain.FileType]string{
			domain.FileTypeExcel: cfg.ExcelDir,
			domain.FileTypePDF:   cfg.PDFDir,
		},
	}, nil
}

// Start begins watching. It is a no-op when already running. When the
// backend is unavailable FILE_WATCHING_ACTIVE is persisted as false and
// ErrUnavailable is returned.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	dirs, err := s.resolveDirs()
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(dirs))
	seen := map[string]bool{}
	for _, dir := range dirs {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create watch dir: %w", err)
		}
		paths = append(paths, dir)
	}

	stream, err := s.backend.Watch(paths)
	if errors.Is(err, ErrUnavailable) {
		if perr := s.store.SetConfig(domain.ConfigFileWatchingActive, "false", ""); perr != nil {
			slog.Error("watcher_flag_persist_failed", "err", perr)
		}
		slog.Warn("watcher_unavailable", "backend", s.backend.Name(), "err", err)
		return ErrUnavailable
	}
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.dirs = dirs
	s.stream = stream
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(runCtx, stream, dirs)
	slog.Info("watcher_started", "backend", s.backend.Name(), "excel_dir", dirs[domain.FileTypeExcel], "pdf_dir", dirs[domain.FileTypePDF])
	return nil
}

// Stop ends watching and waits for in-flight handlers. It is a no-op when
// not running.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	_ = s.stream.Close()
	s.stream = nil
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("watcher_stopped")
}

// Enable persists FILE_WATCHING_ACTIVE=true and starts watching. The watch
// outlives ctx's cancellation; use Disable or Stop to end it.
func (s *Service) Enable(ctx context.Context) error {
	if err := s.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	return s.store.SetConfig(domain.ConfigFileWatchingActive, "true", "")
}

// Disable persists FILE_WATCHING_ACTIVE=false and stops watching.
func (s *Service) Disable() error {
	s.Stop()
	return s.store.SetConfig(domain.ConfigFileWatchingActive, "false", "")
}

// ShouldRun reports the persisted FILE_WATCHING_ACTIVE flag. A missing flag
// means watching is on.
func (s *Service) ShouldRun() (bool, error) {
	v, ok, err := s.store.GetConfig(domain.ConfigFileWatchingActive)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return !strings.EqualFold(strings.TrimSpace(v), "false"), nil
}

// Status returns the current watcher state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Running: s.running, Backend: s.backend.Name()}
	dirs := s.dirs
	if dirs == nil {
		dirs, _ = s.resolveDirs()
	}
	st.ExcelDir = dirs[domain.FileTypeExcel]
	st.PDFDir = dirs[domain.FileTypePDF]
	return st
}

func (s *Service) resolveDirs() (map[domain.FileType]string, error) {
	out := make(map[domain.FileType]string, 2)
	for ft, key := range map[domain.FileType]string{
		domain.FileTypeExcel: domain.ConfigExcelWatchDir,
		domain.FileTypePDF:   domain.ConfigPDFWatchDir,
	} {
		dir := s.defDirs[ft]
		v, ok, err := s.store.GetConfig(key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if ok && strings.TrimSpace(v) != "" {
			dir = strings.TrimSpace(v)
		}
		if dir == "" {
			return nil, fmt.Errorf("watch directory for %s is not configured", ft)
		}
		out[ft] = filepath.Clean(dir)
	}
	return out, nil
}

func (s *Service) loop(ctx context.Context, stream Stream, dirs map[domain.FileType]string) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-stream.Errors():
			if !ok {
				return
			}
			slog.Warn("watcher_error", "err", err)
		case path, ok := <-stream.Events():
			if !ok {
				return
			}
			ft, ok := classify(path, dirs)
			if !ok {
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handler(ctx, path, ft)
			}()
		}
	}
}

// classify maps a created path to the file type of the watch it belongs to.
// Editor lock files and hidden files are ignored.
func classify(path string, dirs map[domain.FileType]string) (domain.FileType, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(name))
	dir := filepath.Clean(filepath.Dir(path))
	for ft, exts := range extensions {
		if dirs[ft] != dir {
			continue
		}
		for _, e := range exts {
			if e == ext {
				return ft, true
			}
		}
	}
	return "", false
}
