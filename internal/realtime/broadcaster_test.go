package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBroadcasterFixture(t *testing.T) (*RedisBroadcaster, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	subscriber := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { subscriber.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	return NewRedisBroadcaster(client, logger), subscriber
}

func receiveEnvelope(t *testing.T, sub *redis.PubSub) Envelope {
	t.Helper()

	select {
	case msg := <-sub.Channel():
		var envelope Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
		return envelope
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
		return Envelope{}
	}
}

func TestBroadcast(t *testing.T) {
	broadcaster, subscriber := newBroadcasterFixture(t)
	ctx := context.Background()

	sub := subscriber.Subscribe(ctx, EventsChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	err = broadcaster.Broadcast("reservation.approved", map[string]string{"id": "res-1"})
	require.NoError(t, err)

	envelope := receiveEnvelope(t, sub)
	assert.Equal(t, "reservation.approved", envelope.Event)
	assert.False(t, envelope.At.IsZero())

	payload, ok := envelope.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "res-1", payload["id"])
}

func TestSendToRole(t *testing.T) {
	broadcaster, subscriber := newBroadcasterFixture(t)
	ctx := context.Background()

	sub := subscriber.Subscribe(ctx, "role.manager")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	err = broadcaster.SendToRole("manager", "reservation.created", map[string]string{"id": "res-2"})
	require.NoError(t, err)

	envelope := receiveEnvelope(t, sub)
	assert.Equal(t, "reservation.created", envelope.Event)
}

func TestPing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	assert.NoError(t, Ping(context.Background(), client))

	mr.Close()
	assert.Error(t, Ping(context.Background(), client))
}
