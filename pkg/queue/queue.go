package queue

import (
	"context"
	"errors"

	"github.com/miquiestampas/Aureo/pkg/domain"
)

// ErrQueueFull is returned by Submit when the queue is at capacity. The
// caller keeps the work item and may retry later.
var ErrQueueFull = errors.New("queue full")

// Task asks a worker to process one file activity.
type Task struct {
	ActivityID string          `json:"activityId"`
	FileType   domain.FileType `json:"fileType"`
}

// Handler processes one task. A non-nil error marks the attempt as failed;
// queues that support retries may redeliver the task.
type Handler func(context.Context, Task) error

// Queue is a bounded task queue drained by a fixed set of workers.
type Queue interface {
	Submit(ctx context.Context, task Task) error
	Start(ctx context.Context, workers int, handler Handler)
	Wait()
}
