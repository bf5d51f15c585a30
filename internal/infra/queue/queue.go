// Package queue provides a Redis-list-backed job queue for the pipeline's
// periodic producers (ingestion tick, trend tick) and the per-job fan-out
// chain (fetch -> process article -> embed/cluster -> summarise).
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrEmpty is returned by Dequeue when no job arrives within wait.
var ErrEmpty = errors.New("queue: empty")

// Queue is a Redis-backed FIFO job queue, one Redis list per JobType so
// multiple workers can consume distinct job kinds independently.
type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func listKey(jobType JobType) string {
	return fmt.Sprintf("queue:%s", jobType)
}

// Enqueue appends job to the tail of its type's list.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, listKey(job.Type), data).Err(); err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// Dequeue blocks up to wait for the next job of jobType. It returns ErrEmpty
// if wait elapses with nothing available. A job found past its Deadline is
// dropped silently and Dequeue moves on to the next one rather than
// returning it, since expired jobs are meant to be re-submitted by the next
// periodic tick, not run late.
func (q *Queue) Dequeue(ctx context.Context, jobType JobType, wait time.Duration) (Job, error) {
	for {
		res, err := q.client.BLPop(ctx, wait, listKey(jobType)).Result()
		if errors.Is(err, redis.Nil) {
			return Job{}, ErrEmpty
		}
		if err != nil {
			return Job{}, fmt.Errorf("queue: dequeue: %w", err)
		}

		// res[0] is the list key, res[1] is the popped value.
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return Job{}, fmt.Errorf("queue: unmarshal job: %w", err)
		}

		if job.Expired(time.Now()) {
			continue
		}
		return job, nil
	}
}

// Len reports how many jobs of jobType are currently queued.
func (q *Queue) Len(ctx context.Context, jobType JobType) (int64, error) {
	n, err := q.client.LLen(ctx, listKey(jobType)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: len: %w", err)
	}
	return n, nil
}
