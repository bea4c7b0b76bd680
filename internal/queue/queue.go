// Package queue provides the durable work queue for deferred collection
// operations. Jobs name a permitted operation from a closed enum rather than
// an arbitrary method, and are delivered at least once; handlers must be
// idempotent over "notify all currently-approved items".
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Op is a deferred operation a worker may run against a collection.
type Op string

const (
	OpRevealNotifications       Op = "reveal_notifications"
	OpAuthorRevealNotifications Op = "author_reveal_notifications"
)

// Valid reports whether op is one of the permitted deferred operations.
func (op Op) Valid() bool {
	return op == OpRevealNotifications || op == OpAuthorRevealNotifications
}

// Job is one unit of deferred work, addressed by collection identity.
type Job struct {
	Op           Op        `json:"op"`
	CollectionID string    `json:"collection_id"`
	Attempts     int       `json:"attempts"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// RedisQueue is a Redis-list-backed job queue (LPUSH producer, BRPOP consumer).
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue connects to Redis and returns a queue over the given list key.
func NewRedisQueue(redisURL, key string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisQueue{client: client, key: key}, nil
}

// NewRedisQueueWithClient builds a queue from an existing Redis client.
func NewRedisQueueWithClient(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue pushes a job onto the queue.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if !job.Op.Valid() {
		return fmt.Errorf("enqueue: unknown operation %q", job.Op)
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. The second return value is
// false when the timeout elapsed with nothing to do.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, bool, error) {
	values, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("dequeue job: %w", err)
	}

	// BRPOP returns [key, value]
	var job Job
	if err := json.Unmarshal([]byte(values[1]), &job); err != nil {
		return Job{}, false, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, true, nil
}

// Len returns the number of pending jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping checks if Redis is reachable.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
