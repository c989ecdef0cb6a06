package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/miquiestampas/Aureo/pkg/domain"
)

func TestRedisJobQueueRequeueAndAckSuccess(t *testing.T) {
	q, ctx, msgID, jobID, task := newPendingQueueMessage(t)

	if err := q.requeueAndAck(ctx, msgID, jobID, task); err != nil {
		t.Fatalf("requeue and ack: %v", err)
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages, got %d", pending.Count)
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-2",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    -1,
	}).Result()
	if err != nil {
		t.Fatalf("read requeued message: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one requeued message, got %+v", streams)
	}
	got := streams[0].Messages[0]
	if got.Values["job_id"] != jobID || got.Values["activity_id"] != task.ActivityID {
		t.Fatalf("unexpected requeued payload: %+v", got.Values)
	}
}

func TestRedisJobQueueRequeueAndAckFailureKeepsPendingMessage(t *testing.T) {
	q, ctx, msgID, jobID, task := newPendingQueueMessage(t)

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.requeueAndAck(canceledCtx, msgID, jobID, task); err == nil {
		t.Fatalf("expected requeueAndAck to fail on canceled context")
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected original message to remain pending, got %d", pending.Count)
	}

	streamLen, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if streamLen != 1 {
		t.Fatalf("expected no new message in stream on failure, got len=%d", streamLen)
	}
}

func TestRedisJobQueueRejectsWhenFull(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	q := newTestRedisQueue(t, redisSrv.Addr(), 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Submit(ctx, Task{ActivityID: "a", FileType: domain.FileTypeExcel}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := q.Submit(ctx, Task{ActivityID: "b", FileType: domain.FileTypeExcel}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if err := q.Submit(ctx, Task{}); err == nil {
		t.Fatalf("expected empty activity id to be rejected")
	}
}

func TestRedisJobQueueDeliversAndRetries(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	q := newTestRedisQueue(t, redisSrv.Addr(), 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := q.Enqueue(ctx, Task{ActivityID: "act-1", FileType: domain.FileTypePDF})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{})
	q.Start(ctx, 1, func(_ context.Context, task Task) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if task.ActivityID != "act-1" || task.FileType != domain.FileTypePDF {
			t.Errorf("unexpected task %+v", task)
		}
		if calls == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("task was not redelivered")
	}

	var status JobStatus
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, _, err = q.GetJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if status.Status == StatusDone {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	q.Wait()

	if status.Status != StatusDone || status.Attempts != 2 {
		t.Fatalf("unexpected job status %+v", status)
	}
}

func newTestRedisQueue(t *testing.T, addr string, maxLen int64) *RedisJobQueue {
	t.Helper()
	q, err := NewRedisJobQueue(RedisQueueConfig{
		Addr:       addr,
		Stream:     "test:queue",
		Group:      "test-group",
		Consumer:   "consumer-1",
		RetryDelay: time.Millisecond,
		Block:      50 * time.Millisecond,
		MaxLen:     maxLen,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func newPendingQueueMessage(t *testing.T) (*RedisJobQueue, context.Context, string, string, Task) {
	t.Helper()

	redisSrv := miniredis.RunT(t)
	q := newTestRedisQueue(t, redisSrv.Addr(), 0)

	ctx := context.Background()
	q.ensureGroup(ctx)

	task := Task{ActivityID: "act-1", FileType: domain.FileTypeExcel}
	job, err := q.Enqueue(ctx, task)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    -1,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one pending message, got %+v", streams)
	}

	msg := streams[0].Messages[0]
	return q, ctx, msg.ID, job.ID, task
}
