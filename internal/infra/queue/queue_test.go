package queue_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/infra/queue"
)

// skipIfNoRedis requires REDIS_URL to be set and reachable; a FIFO list
// queue cannot be exercised against sqlmock-style fakes.
func skipIfNoRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("could not reach redis: %v", err)
	}
	return client
}

func TestQueue_EnqueueDequeue_Integration(t *testing.T) {
	client := skipIfNoRedis(t)
	defer func() { _ = client.Close() }()

	q := queue.New(client)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := queue.NewJob("job-int-1", queue.JobEmbedCluster, queue.EmbedClusterPayload{ArticleID: 7}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, job))

	n, err := q.Len(ctx, queue.JobEmbedCluster)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	got, err := q.Dequeue(ctx, queue.JobEmbedCluster, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, job.ID, got.ID)

	var payload queue.EmbedClusterPayload
	require.NoError(t, got.Decode(&payload))
	require.Equal(t, int64(7), payload.ArticleID)
}

func TestQueue_Dequeue_EmptyTimesOut_Integration(t *testing.T) {
	client := skipIfNoRedis(t)
	defer func() { _ = client.Close() }()

	q := queue.New(client)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := q.Dequeue(ctx, queue.JobSummarizeCluster, 200*time.Millisecond)
	require.ErrorIs(t, err, queue.ErrEmpty)
}

func TestQueue_Dequeue_DropsExpiredJob_Integration(t *testing.T) {
	client := skipIfNoRedis(t)
	defer func() { _ = client.Close() }()

	q := queue.New(client)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	expired, err := queue.NewJob("job-expired", queue.JobFetchSource, queue.FetchSourcePayload{SourceID: 1}, -time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, expired))

	fresh, err := queue.NewJob("job-fresh", queue.JobFetchSource, queue.FetchSourcePayload{SourceID: 2}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, fresh))

	got, err := q.Dequeue(ctx, queue.JobFetchSource, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, fresh.ID, got.ID)
}
