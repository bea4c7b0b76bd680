package queue

import (
	"context"
	"log"
	"time"
)

// maxAttempts bounds redelivery of a failing job before it is dropped.
const maxAttempts = 5

// Notifier runs the deferred operations a job may name. A failed delivery
// never affects the state mutation that triggered the job; it only causes
// redelivery here.
type Notifier interface {
	SendRevealNotifications(ctx context.Context, collectionID string) error
	SendAuthorRevealNotifications(ctx context.Context, collectionID string) error
}

// Worker consumes jobs and dispatches them to a Notifier.
type Worker struct {
	queue    *RedisQueue
	notifier Notifier
}

func NewWorker(queue *RedisQueue, notifier Notifier) *Worker {
	return &Worker{queue: queue, notifier: notifier}
}

// Run consumes jobs until ctx is cancelled. Errors are logged and the job is
// re-enqueued up to maxAttempts; they never propagate to the producer.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := w.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker: dequeue: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		if err := w.Dispatch(ctx, job); err != nil {
			w.retry(ctx, job, err)
		}
	}
}

// Dispatch runs a single job.
func (w *Worker) Dispatch(ctx context.Context, job Job) error {
	switch job.Op {
	case OpRevealNotifications:
		return w.notifier.SendRevealNotifications(ctx, job.CollectionID)
	case OpAuthorRevealNotifications:
		return w.notifier.SendAuthorRevealNotifications(ctx, job.CollectionID)
	default:
		log.Printf("worker: dropping job with unknown operation %q", job.Op)
		return nil
	}
}

func (w *Worker) retry(ctx context.Context, job Job, cause error) {
	job.Attempts++
	if job.Attempts >= maxAttempts {
		log.Printf("worker: dropping %s for collection %s after %d attempts: %v", job.Op, job.CollectionID, job.Attempts, cause)
		return
	}
	log.Printf("worker: %s for collection %s failed (attempt %d), re-enqueueing: %v", job.Op, job.CollectionID, job.Attempts, cause)
	if err := w.queue.Enqueue(ctx, job); err != nil {
		log.Printf("worker: re-enqueue: %v", err)
	}
}
