package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// WorkerPool is an in-process Queue backed by a buffered channel.
type WorkerPool struct {
	tasks chan Task
	wg    sync.WaitGroup
	once  sync.Once
}

// NewWorkerPool returns a pool holding at most capacity waiting tasks.
func NewWorkerPool(capacity int) *WorkerPool {
	if capacity <= 0 {
		capacity = 64
	}
	return &WorkerPool{tasks: make(chan Task, capacity)}
}

// Submit enqueues task without blocking.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	if strings.TrimSpace(task.ActivityID) == "" {
		return errors.New("activity id required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches workers that run until ctx is cancelled. Tasks still
// buffered at that point are dropped. Start only has an effect once.
func (p *WorkerPool) Start(ctx context.Context, workers int, handler Handler) {
	if workers <= 0 {
		workers = 1
	}
	p.once.Do(func() {
		for i := 0; i < workers; i++ {
			p.wg.Add(1)
			go p.work(ctx, handler)
		}
	})
}

func (p *WorkerPool) work(ctx context.Context, handler Handler) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			if err := handler(ctx, task); err != nil {
				slog.Warn("task_failed", "activity_id", task.ActivityID, "file_type", string(task.FileType), "err", err)
			}
		}
	}
}

// Wait blocks until every worker has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Len reports the number of tasks waiting for a worker.
func (p *WorkerPool) Len() int {
	return len(p.tasks)
}
