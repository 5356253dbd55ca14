package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *SpeakerBroadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSpeakerBroadcaster(rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func receive(t *testing.T, ps *redis.PubSub) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := ps.ReceiveMessage(ctx)
	require.NoError(t, err)

	var e Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &e))
	return e
}

func TestSpeakerBroadcaster_PublishesToAgentChannel(t *testing.T) {
	b := setup(t)
	ctx := context.Background()

	ps := b.Subscribe(ctx, 7)
	defer func() { _ = ps.Close() }()
	_, err := ps.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, b.Speak(ctx, 7, "Good morning."))
	require.NoError(t, b.PossibleResponses(ctx, 7, []string{"Goodbye, Marta.", "Deal."}))
	require.NoError(t, b.CloseChat(ctx, 7, 9))

	e := receive(t, ps)
	assert.Equal(t, EventTypeSpeak, e.Type)
	assert.Equal(t, int64(7), e.AgentID)
	assert.Equal(t, "Good morning.", e.Data["text"])

	e = receive(t, ps)
	assert.Equal(t, EventTypePossibleResponses, e.Type)
	assert.Equal(t, []interface{}{"Goodbye, Marta.", "Deal."}, e.Data["options"])

	e = receive(t, ps)
	assert.Equal(t, EventTypeCloseChat, e.Type)
	assert.Equal(t, int64(9), e.TargetID)
}

func TestSpeakerBroadcaster_OtherAgentsDoNotHear(t *testing.T) {
	b := setup(t)
	ctx := context.Background()

	ps := b.Subscribe(ctx, 1)
	defer func() { _ = ps.Close() }()
	_, err := ps.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Speak(ctx, 2, "not for you"))
	require.NoError(t, b.PublishSummaryCompleted(ctx, 1, 2, "We traded flour."))

	e := receive(t, ps)
	assert.Equal(t, EventTypeSummaryCompleted, e.Type)
	assert.Equal(t, "We traded flour.", e.Data["summary"])
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "speaker:42", Channel(42))
}
