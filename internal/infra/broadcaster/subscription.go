package broadcaster

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// PollTimeout bounds how long Receive blocks before returning ErrTimeout, so
// a session can check for client disconnect at least once per second.
const PollTimeout = 1 * time.Second

// ErrTimeout is returned by Receive when no message arrived within
// PollTimeout. It is not a failure: callers should check ctx and loop.
var ErrTimeout = errors.New("broadcaster: poll timeout")

// Subscription wraps a single subscriber's Redis pub/sub connection.
type Subscription struct {
	pubsub *redis.PubSub
}

// Receive blocks up to PollTimeout for the next published payload. It
// returns ErrTimeout on timeout so the caller's session loop can re-check
// for disconnect, as required by the 1-second poll contract.
func (s *Subscription) Receive(ctx context.Context) ([]byte, error) {
	recvCtx, cancel := context.WithTimeout(ctx, PollTimeout)
	defer cancel()

	msg, err := s.pubsub.ReceiveMessage(recvCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return []byte(msg.Payload), nil
}

// Close releases the underlying Redis connection. Safe to call more than once.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
