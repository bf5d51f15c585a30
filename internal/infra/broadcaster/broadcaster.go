// Package broadcaster fans detected trend events out to subscribers over a
// single Redis pub/sub topic, fire-and-forget, no replay.
package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"trendpulse/internal/domain/entity"
)

// Topic is the single pub/sub channel events are published to.
const Topic = "events"

// Message is the wire payload published on Topic, matching the event
// detector's emission contract verbatim.
type Message struct {
	EventID    int64           `json:"event_id"`
	ClusterID  int64           `json:"cluster_id"`
	Severity   entity.Severity `json:"severity"`
	Label      string          `json:"label"`
	Score      float64         `json:"score"`
	DetectedAt time.Time       `json:"detected_at"`
}

// Broadcaster publishes detected events to Topic. Publish is fire-and-forget:
// a failed publish is reported to the caller but never retried, matching the
// event detector's best-effort emission.
type Broadcaster struct {
	client *redis.Client
}

func New(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

// Publish marshals event as a Message and publishes it to Topic.
func (b *Broadcaster) Publish(ctx context.Context, event *entity.Event) error {
	msg := Message{
		EventID:    event.ID,
		ClusterID:  event.ClusterID,
		Severity:   event.Severity,
		Label:      event.Label,
		Score:      event.Score,
		DetectedAt: event.DetectedAt,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broadcaster: marshal: %w", err)
	}

	if err := b.client.Publish(ctx, Topic, payload).Err(); err != nil {
		return fmt.Errorf("broadcaster: publish: %w", err)
	}
	return nil
}

// Subscribe opens a new Subscription to Topic. Messages published before the
// subscription is established are never delivered.
func (b *Broadcaster) Subscribe(ctx context.Context) *Subscription {
	pubsub := b.client.Subscribe(ctx, Topic)
	return &Subscription{pubsub: pubsub}
}
