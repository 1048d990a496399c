// Package notifications delivers live admin events over Redis pub/sub and
// websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"inkwell/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// AdminChannel is the Redis channel every instance publishes admin events on.
const AdminChannel = "events:admin"

// Event types pushed to admin dashboards.
const (
	EventCommentCreated = "comment.created"
	EventPostLiked      = "post.liked"
	EventMomentLiked    = "moment.liked"
	EventEmailFailed    = "email.failed"
)

// Event is the JSON envelope sent to websocket clients.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Notifier provides helpers to publish events into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether events can be delivered across instances.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishEvent sends an event to the admin channel. Without Redis it is a no-op.
func (n *Notifier) PublishEvent(ctx context.Context, eventType string, payload any) error {
	if !n.Enabled() {
		return nil
	}
	data, err := json.Marshal(Event{Type: eventType, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, AdminChannel, string(data)).Err()
}

// StartEventSubscriber subscribes to the admin channel and calls onMessage
// for each payload until ctx is cancelled.
func (n *Notifier) StartEventSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, AdminChannel)
	// wait for the subscription so early publishes are not lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", AdminChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in event subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
