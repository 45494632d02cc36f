package channel_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/photon/core/channel"
)

func TestHandlerSet(t *testing.T) {
	t.Parallel()

	t.Run("keeps registration order", func(t *testing.T) {
		t.Parallel()

		set := channel.NewHandlerSet()
		var order []int
		set.Subscribe("c", func(channel.Message) { order = append(order, 1) }, nil)
		set.Subscribe("c", func(channel.Message) { order = append(order, 2) }, nil)
		set.Subscribe("c", func(channel.Message) { order = append(order, 3) }, nil)

		channel.Deliver(context.Background(), nil, channel.Message{}, set.Snapshot()...)
		assert.Equal(t, []int{1, 2, 3}, order)
	})

	t.Run("reports remaining handlers once per subscription", func(t *testing.T) {
		t.Parallel()

		set := channel.NewHandlerSet()
		var remaining []int
		onRemove := func(n int) { remaining = append(remaining, n) }

		sub1 := set.Subscribe("c", func(channel.Message) {}, onRemove)
		sub2 := set.Subscribe("c", func(channel.Message) {}, onRemove)
		require.Equal(t, 2, set.Len())

		sub1.Unsubscribe()
		sub1.Unsubscribe()
		sub2.Unsubscribe()

		assert.Equal(t, []int{1, 0}, remaining)
		assert.Equal(t, 0, set.Len())
	})

	t.Run("close detaches without callbacks", func(t *testing.T) {
		t.Parallel()

		set := channel.NewHandlerSet()
		called := false
		sub := set.Subscribe("c", func(channel.Message) {}, func(int) { called = true })

		set.Close()
		assert.False(t, sub.Active())
		assert.Equal(t, 0, set.Len())

		sub.Unsubscribe()
		assert.False(t, called)
	})
}

func TestDeliver(t *testing.T) {
	t.Parallel()

	var got []string
	failed := channel.Deliver(context.Background(), nil, channel.Message{Event: "e"},
		func(m channel.Message) { got = append(got, "first:"+m.Event) },
		func(channel.Message) { panic("second fails") },
		nil,
		func(m channel.Message) { got = append(got, "third:"+m.Event) },
	)

	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"first:e", "third:e"}, got)
}

func TestSubscription(t *testing.T) {
	t.Parallel()

	t.Run("release runs once", func(t *testing.T) {
		t.Parallel()

		calls := 0
		sub := channel.NewSubscription("c", func() { calls++ })
		assert.True(t, sub.Active())

		sub.Unsubscribe()
		sub.Unsubscribe()
		assert.False(t, sub.Active())
		assert.Equal(t, 1, calls)
	})

	t.Run("nil release", func(t *testing.T) {
		t.Parallel()

		sub := channel.NewSubscription("c", nil)
		assert.NotPanics(t, sub.Unsubscribe)
		assert.False(t, sub.Active())
	})

	t.Run("inactive handle", func(t *testing.T) {
		t.Parallel()

		sub := channel.InactiveSubscription("c")
		assert.False(t, sub.Active())
		assert.Equal(t, "c", sub.Channel())
		assert.NotPanics(t, sub.Unsubscribe)
	})
}

func TestDropReporter(t *testing.T) {
	t.Parallel()

	t.Run("logs only in debug mode", func(t *testing.T) {
		t.Parallel()

		var quiet, loud bytes.Buffer
		channel.NewDropReporter(slog.New(slog.NewTextHandler(&quiet, nil)), nil, false).
			Drop(context.Background(), "invalid json", errors.New("bad"))
		channel.NewDropReporter(slog.New(slog.NewTextHandler(&loud, nil)), nil, true).
			Drop(context.Background(), "invalid json", errors.New("bad"), slog.String("channel", "c"))

		assert.Empty(t, quiet.String())
		assert.Contains(t, loud.String(), "dropped malformed frame")
		assert.Contains(t, loud.String(), "channel=c")
	})

	t.Run("throttles log lines", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := channel.NewDropReporter(slog.New(slog.NewTextHandler(&buf, nil)), nil, true)
		for i := 0; i < 50; i++ {
			r.Drop(context.Background(), "invalid json", nil)
		}
		assert.Less(t, strings.Count(buf.String(), "dropped malformed frame"), 50)
	})

	t.Run("nil reporter", func(t *testing.T) {
		t.Parallel()

		var r *channel.DropReporter
		assert.NotPanics(t, func() { r.Drop(context.Background(), "x", nil) })
	})
}
