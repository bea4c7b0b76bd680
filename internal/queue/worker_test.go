package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeNotifier struct {
	mu            sync.Mutex
	reveals       []string
	authorReveals []string
	err           error
}

func (f *fakeNotifier) SendRevealNotifications(_ context.Context, collectionID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reveals = append(f.reveals, collectionID)
	return nil
}

func (f *fakeNotifier) SendAuthorRevealNotifications(_ context.Context, collectionID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorReveals = append(f.authorReveals, collectionID)
	return nil
}

func (f *fakeNotifier) revealCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reveals)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("reveal notifications", func(t *testing.T) {
		n := &fakeNotifier{}
		w := NewWorker(nil, n)
		if err := w.Dispatch(ctx, Job{Op: OpRevealNotifications, CollectionID: "col_1"}); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if len(n.reveals) != 1 || n.reveals[0] != "col_1" {
			t.Errorf("reveals = %v", n.reveals)
		}
	})

	t.Run("author reveal notifications", func(t *testing.T) {
		n := &fakeNotifier{}
		w := NewWorker(nil, n)
		if err := w.Dispatch(ctx, Job{Op: OpAuthorRevealNotifications, CollectionID: "col_2"}); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if len(n.authorReveals) != 1 || n.authorReveals[0] != "col_2" {
			t.Errorf("authorReveals = %v", n.authorReveals)
		}
	})

	t.Run("unknown operation is dropped without error", func(t *testing.T) {
		n := &fakeNotifier{}
		w := NewWorker(nil, n)
		if err := w.Dispatch(ctx, Job{Op: "send_everything", CollectionID: "col_3"}); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if len(n.reveals) != 0 || len(n.authorReveals) != 0 {
			t.Error("nothing should have been delivered")
		}
	})
}

func TestRetryReEnqueuesUntilLimit(t *testing.T) {
	q, s := setupTestQueue(t)
	defer q.Close()
	defer s.Close()
	ctx := context.Background()

	w := NewWorker(q, &fakeNotifier{err: errors.New("smtp down")})

	job := Job{Op: OpRevealNotifications, CollectionID: "col_1"}
	w.retry(ctx, job, errors.New("smtp down"))

	got, ok, err := q.Dequeue(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("Dequeue: ok=%v err=%v", ok, err)
	}
	if got.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", got.Attempts)
	}

	// At the limit the job is dropped instead of re-enqueued.
	got.Attempts = maxAttempts - 1
	w.retry(ctx, got, errors.New("smtp down"))
	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Len = %d, want 0 after the final attempt", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q, s := setupTestQueue(t)
	defer q.Close()
	defer s.Close()

	n := &fakeNotifier{}
	w := NewWorker(q, n)

	if err := q.Enqueue(context.Background(), Job{Op: OpRevealNotifications, CollectionID: "col_1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(3 * time.Second)
	for n.revealCount() == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("worker never delivered the job")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
