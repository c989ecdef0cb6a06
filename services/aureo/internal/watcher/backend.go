package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrUnavailable reports that no filesystem notification mechanism can be used.
var ErrUnavailable = errors.New("file watching unavailable")

// Backend opens notification streams for a set of directories.
type Backend interface {
	Name() string
	Watch(dirs []string) (Stream, error)
}

// Stream delivers the paths of files created in the watched directories.
// Directories are watched non-recursively.
type Stream interface {
	Events() <-chan string
	Errors() <-chan error
	Close() error
}

// Detect returns the fsnotify backend when the platform supports it and a
// Disabled backend otherwise.
func Detect() Backend {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("fsnotify_unavailable", "err", err)
		return Disabled{Reason: err.Error()}
	}
	_ = w.Close()
	return FSNotify{}
}

// FSNotify watches directories with github.com/fsnotify/fsnotify.
type FSNotify struct{}

func (FSNotify) Name() string { return "fsnotify" }

func (FSNotify) Watch(dirs []string) (Stream, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	s := &fsnotifyStream{
		w:      w,
		events: make(chan string, 64),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

type fsnotifyStream struct {
	w      *fsnotify.Watcher
	events chan string
	done   chan struct{}
	once   sync.Once
}

func (s *fsnotifyStream) pump() {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			select {
			case s.events <- ev.Name:
			case <-s.done:
				return
			}
		}
	}
}

func (s *fsnotifyStream) Events() <-chan string { return s.events }

func (s *fsnotifyStream) Errors() <-chan error { return s.w.Errors }

func (s *fsnotifyStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.w.Close()
	})
	return err
}

// Disabled is the backend used when no notification mechanism exists.
type Disabled struct {
	Reason string
}

func (Disabled) Name() string { return "disabled" }

func (d Disabled) Watch([]string) (Stream, error) {
	if d.Reason == "" {
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, d.Reason)
}
