package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory Store for exercising the dispatch loop.
type memStore struct {
	mu     sync.Mutex
	nextId int64
	tasks  map[int64]*memTask
}

type memTask struct {
	task  Task
	runAt time.Time
}

func newMemStore() *memStore {
	return &memStore{tasks: map[int64]*memTask{}}
}

func (s *memStore) EnqueueTask(ctx context.Context, kind string, payload any, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	s.tasks[s.nextId] = &memTask{
		task:  Task{Id: s.nextId, Kind: kind, Payload: []byte(`{}`)},
		runAt: runAt,
	}
	return nil
}

func (s *memStore) DequeueTask(ctx context.Context, lease time.Duration) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, mt := range s.tasks {
		if !mt.runAt.After(now) {
			mt.task.Attempts++
			mt.runAt = now.Add(lease)
			t := mt.task
			return &t, nil
		}
	}
	return nil, nil
}

func (s *memStore) CompleteTask(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

func (s *memStore) RescheduleTask(ctx context.Context, id int64, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mt, ok := s.tasks[id]; ok {
		mt.runAt = runAt
	}
	return nil
}

func (s *memStore) QueueDepth(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks), nil
}

func (s *memStore) runAtOf(id int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt, ok := s.tasks[id]
	if !ok {
		return time.Time{}, false
	}
	return mt.runAt, true
}

func TestProcessOneCompletesSuccessfulTask(t *testing.T) {
	store := newMemStore()
	q := New(store, time.Millisecond, time.Minute)

	handled := 0
	q.Handle("noop", func(ctx context.Context, task *Task) error {
		handled++
		return nil
	})

	if err := q.Enqueue(context.Background(), "noop", struct{}{}, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	processed, err := q.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("ProcessOne = %v, %v; want true, nil", processed, err)
	}
	if handled != 1 {
		t.Errorf("handler ran %d times, want 1", handled)
	}
	if depth, _ := store.QueueDepth(context.Background()); depth != 0 {
		t.Errorf("queue depth = %d after success, want 0", depth)
	}
}

func TestProcessOneNothingDue(t *testing.T) {
	store := newMemStore()
	q := New(store, time.Millisecond, time.Minute)

	if err := q.Enqueue(context.Background(), "later", struct{}{}, time.Hour); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	processed, err := q.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if processed {
		t.Error("claimed a task that is not due yet")
	}
}

func TestRetryLaterReschedules(t *testing.T) {
	store := newMemStore()
	q := New(store, time.Millisecond, time.Minute)

	q.Handle("waiting", func(ctx context.Context, task *Task) error {
		return RetryLater(2 * time.Second)
	})
	if err := q.Enqueue(context.Background(), "waiting", struct{}{}, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	before := time.Now().UTC()
	processed, err := q.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("ProcessOne = %v, %v", processed, err)
	}

	// The task stays queued, pushed out by the requested delay.
	runAt, ok := store.runAtOf(1)
	if !ok {
		t.Fatal("task was removed instead of rescheduled")
	}
	if runAt.Before(before.Add(time.Second)) {
		t.Errorf("runAt %v not pushed out by the retry delay", runAt)
	}
}

func TestFailedTaskIsKeptForRetry(t *testing.T) {
	store := newMemStore()
	q := New(store, time.Millisecond, time.Minute)

	q.Handle("boom", func(ctx context.Context, task *Task) error {
		return errors.New("transient failure")
	})
	if err := q.Enqueue(context.Background(), "boom", struct{}{}, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	processed, err := q.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("ProcessOne = %v, %v", processed, err)
	}
	if depth, _ := store.QueueDepth(context.Background()); depth != 1 {
		t.Errorf("failed task should stay queued, depth = %d", depth)
	}
}

func TestUnhandledKindIsDropped(t *testing.T) {
	store := newMemStore()
	q := New(store, time.Millisecond, time.Minute)

	if err := q.Enqueue(context.Background(), "nobody-home", struct{}{}, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	processed, err := q.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("ProcessOne = %v, %v", processed, err)
	}
	if depth, _ := store.QueueDepth(context.Background()); depth != 0 {
		t.Errorf("unhandled task should be dropped, depth = %d", depth)
	}
}

func TestWorkersStopOnCancel(t *testing.T) {
	store := newMemStore()
	q := New(store, time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx, 3)
	cancel()

	done := make(chan struct{})
	go func() {
		q.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancellation")
	}
}
