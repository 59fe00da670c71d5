package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/luisscruza/optiflow-sub005/pkg/channels/gochannel"
	"github.com/luisscruza/optiflow-sub005/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	var (
		mu       sync.Mutex
		received []*events.NodeActivation
	)

	bus.Handle(events.NodeActivationEvent, func(ctx context.Context, event any) error {
		activation, ok := event.(*events.NodeActivation)
		require.True(t, ok)

		mu.Lock()
		received = append(received, activation)
		mu.Unlock()

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	activation := events.NodeActivation{
		BaseEvent: events.BaseEvent{
			ID:           bus.GenerateID(),
			Type:         events.NodeActivationEvent,
			Timestamp:    time.Now().UTC(),
			AutomationID: "auto-1",
		},
		RunID:  "run-1",
		NodeID: "node-1",
	}

	require.NoError(t, bus.Publish(ctx, "run-1", activation))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "run-1", received[0].RunID)
	assert.Equal(t, "node-1", received[0].NodeID)
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered; must not block or panic.
	event := events.RunCompleted{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.RunCompletedEvent},
		RunID:     "run-1",
	}
	require.NoError(t, bus.Publish(ctx, "run-1", event))
}
