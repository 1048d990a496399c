package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_RegisterLimitsAndUnregister(t *testing.T) {
	hub := NewHub()

	clients := make([]*Client, 0, maxConnsPerUser)
	for i := 0; i < maxConnsPerUser; i++ {
		c, err := hub.Register(7, nil)
		require.NoError(t, err)
		clients = append(clients, c)
	}
	_, err := hub.Register(7, nil)
	assert.Error(t, err)
	assert.Equal(t, maxConnsPerUser, hub.Count())

	hub.UnregisterClient(clients[0])
	hub.UnregisterClient(clients[0])
	assert.Equal(t, maxConnsPerUser-1, hub.Count())

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.Count())
	_, err = hub.Register(8, nil)
	assert.Error(t, err)
}

func TestHub_BroadcastAllDropsWhenFull(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.BroadcastAll(`{"type":"post.liked"}`)
	assert.Equal(t, `{"type":"post.liked"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"post.liked"}`, string(<-b.Send))

	for i := 0; i < sendBuffer+5; i++ {
		hub.BroadcastAll("x")
	}
	assert.Len(t, a.Send, sendBuffer)

	// sending to a closed client must not panic
	a.closeSend()
	assert.NotPanics(t, func() { a.TrySend([]byte("late")) })
}

func TestHub_StartWiringForwardsRedisEvents(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	client, err := hub.Register(3, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, notifier))

	require.NoError(t, notifier.PublishEvent(context.Background(), EventCommentCreated, map[string]any{"id": 42}))

	var raw []byte
	require.Eventually(t, func() bool {
		select {
		case raw = <-client.Send:
			return true
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)

	var ev struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, EventCommentCreated, ev.Type)
	assert.EqualValues(t, 42, ev.Payload["id"])
}
