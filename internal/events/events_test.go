package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers matching events only", func(t *testing.T) {
		bus := NewBus()
		_, all := bus.Subscribe("posts", "")
		_, creates := bus.Subscribe("posts", EventCreate)
		_, other := bus.Subscribe("users", "")

		bus.Publish(ctx, "posts", EventUpdate, 1)
		bus.Publish(ctx, "posts", EventCreate, 2)

		require.Len(t, all, 2)
		first := <-all
		assert.Equal(t, EventUpdate, first.Event)
		assert.Equal(t, 1, first.Key)

		require.Len(t, creates, 1)
		created := <-creates
		assert.Equal(t, 2, created.Key)
		assert.Empty(t, other)
	})

	t.Run("one message per key with ordered ids", func(t *testing.T) {
		bus := NewBus()
		messages := bus.Publish(ctx, "posts", EventDelete, 1, 2, 3)
		require.Len(t, messages, 3)
		assert.Less(t, messages[0].ID, messages[1].ID)
		assert.Less(t, messages[1].ID, messages[2].ID)
	})

	t.Run("full subscribers drop instead of blocking", func(t *testing.T) {
		bus := NewBus(WithBuffer(1))
		_, ch := bus.Subscribe("posts", "")
		bus.Publish(ctx, "posts", EventCreate, 1, 2)
		assert.Len(t, ch, 1)
	})

	t.Run("unsubscribe closes the channel", func(t *testing.T) {
		bus := NewBus()
		id, ch := bus.Subscribe("posts", "")
		assert.Equal(t, 1, bus.Len())
		bus.Unsubscribe(id)
		bus.Unsubscribe(id)
		_, open := <-ch
		assert.False(t, open)
		assert.Equal(t, 0, bus.Len())
	})

	t.Run("event validation", func(t *testing.T) {
		assert.True(t, Event("").Valid())
		assert.True(t, EventDelete.Valid())
		assert.False(t, Event("upsert").Valid())
	})
}
