package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/gatekeeper/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAuthEvent(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, Topic(core.EventPasswordResetRequested))
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := core.AuthEvent{
		Type:       core.EventPasswordResetRequested,
		SubjectID:  "user-1",
		Email:      "a@x.com",
		ResetToken: "reset-token",
		At:         at,
	}
	require.NoError(t, NewWatermillPublisher(pubSub).PublishAuthEvent(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, "identity.password_reset_requested", msg.Metadata.Get("type"))
		assert.Equal(t, "user-1", msg.Metadata.Get("subject"))
		assert.Len(t, msg.UUID, 26, "message ids are ULIDs")

		var got core.AuthEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, event.ResetToken, got.ResetToken)
		assert.True(t, got.At.Equal(at))
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "gatekeeper.identity.logged_in", Topic(core.EventLoggedIn))
}
