package channel_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/photon/core/channel"
)

type recorder struct {
	mu   sync.Mutex
	msgs []channel.Message
}

func (r *recorder) handle(msg channel.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) messages() []channel.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]channel.Message(nil), r.msgs...)
}

func TestMemory_PublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	broker := channel.NewMemory()
	require.NoError(t, broker.Publish(context.Background(), channel.Message{Channel: "nobody"}))
	assert.False(t, broker.IsConnected())
}

func TestMemory_DeliversOncePerPublish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broker := channel.NewMemory()

	rec := &recorder{}
	sub, err := broker.Subscribe(ctx, "board:1", rec.handle)
	require.NoError(t, err)
	assert.True(t, sub.Active())
	assert.True(t, broker.IsConnected())

	for i := 0; i < 5; i++ {
		require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "board:1", Event: "update", Data: i}))
	}
	require.Len(t, rec.messages(), 5)
	for i, msg := range rec.messages() {
		assert.Equal(t, i, msg.Data)
	}

	sub.Unsubscribe()
	assert.False(t, sub.Active())
	assert.False(t, broker.IsConnected())

	require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "board:1"}))
	assert.Len(t, rec.messages(), 5)
}

func TestMemory_FanOutAndIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broker := channel.NewMemory()

	a1, a2, b := &recorder{}, &recorder{}, &recorder{}
	_, err := broker.Subscribe(ctx, "A", a1.handle)
	require.NoError(t, err)
	_, err = broker.Subscribe(ctx, "A", a2.handle)
	require.NoError(t, err)
	_, err = broker.Subscribe(ctx, "B", b.handle)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "A", Event: "x"}))
	require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "A", Event: "y"}))

	assert.Len(t, a1.messages(), 2)
	assert.Len(t, a2.messages(), 2)
	assert.Empty(t, b.messages())
}

func TestMemory_TimestampScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broker := channel.NewMemory(channel.WithMemorySource("test-process"))

	rec := &recorder{}
	_, err := broker.Subscribe(ctx, "board:1", rec.handle)
	require.NoError(t, err)

	before := time.Now().UnixMilli()
	require.NoError(t, broker.Publish(ctx, channel.Message{
		Channel: "board:1",
		Event:   "update",
		Data:    map[string]any{"taskId": "7"},
	}))
	after := time.Now().UnixMilli()

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	assert.GreaterOrEqual(t, msgs[0].Timestamp, before)
	assert.LessOrEqual(t, msgs[0].Timestamp, after)
	assert.Equal(t, "test-process", msgs[0].Source)
	assert.Equal(t, map[string]any{"taskId": "7"}, msgs[0].Data)
}

func TestMemory_Wildcards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broker := channel.NewMemory()

	all, pattern := &recorder{}, &recorder{}
	_, err := broker.Subscribe(ctx, "*", all.handle)
	require.NoError(t, err)
	_, err = broker.Subscribe(ctx, "board:*:updates", pattern.handle)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "board:42:updates"}))
	require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "board:42:sub:updates"}))
	require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "other"}))

	assert.Len(t, all.messages(), 3)
	require.Len(t, pattern.messages(), 1)
	assert.Equal(t, "board:42:updates", pattern.messages()[0].Channel)
}

func TestMemory_UnsubscribeIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broker := channel.NewMemory()

	first, second := &recorder{}, &recorder{}
	sub1, err := broker.Subscribe(ctx, "c", first.handle)
	require.NoError(t, err)
	_, err = broker.Subscribe(ctx, "c", second.handle)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		sub1.Unsubscribe()
		sub1.Unsubscribe()
	})

	require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "c"}))
	assert.Empty(t, first.messages())
	assert.Len(t, second.messages(), 1)
	assert.True(t, broker.IsConnected())
}

func TestMemory_HandlerPanicIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var buf bytes.Buffer
	broker := channel.NewMemory(channel.WithMemoryLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	var after atomic.Int32
	_, err := broker.Subscribe(ctx, "c", func(channel.Message) { panic("boom") })
	require.NoError(t, err)
	_, err = broker.Subscribe(ctx, "c", func(channel.Message) { after.Add(1) })
	require.NoError(t, err)

	require.NotPanics(t, func() {
		require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "c"}))
	})
	assert.Equal(t, int32(1), after.Load())
	assert.Contains(t, buf.String(), "channel handler panicked")
}

func TestMemory_NilHandler(t *testing.T) {
	t.Parallel()

	_, err := channel.NewMemory().Subscribe(context.Background(), "c", nil)
	require.ErrorIs(t, err, channel.ErrNilHandler)
}

func TestMemory_Disconnect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broker := channel.NewMemory()

	rec := &recorder{}
	sub, err := broker.Subscribe(ctx, "c", rec.handle)
	require.NoError(t, err)

	require.NoError(t, broker.Disconnect(ctx))
	assert.False(t, sub.Active())
	assert.False(t, broker.IsConnected())

	require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "c"}))
	assert.Empty(t, rec.messages())

	// usable again after disconnect
	_, err = broker.Subscribe(ctx, "c", rec.handle)
	require.NoError(t, err)
	require.NoError(t, broker.Publish(ctx, channel.Message{Channel: "c"}))
	assert.Len(t, rec.messages(), 1)

	assert.NotPanics(t, sub.Unsubscribe)
	assert.True(t, broker.IsConnected())
}

func TestMemory_ConcurrentPublishSubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broker := channel.NewMemory()

	var received atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := broker.Subscribe(ctx, "c", func(channel.Message) { received.Add(1) })
			if err != nil {
				return
			}
			for j := 0; j < 10; j++ {
				_ = broker.Publish(ctx, channel.Message{Channel: "c"})
			}
			sub.Unsubscribe()
		}()
	}
	wg.Wait()

	assert.Positive(t, received.Load())
	assert.False(t, broker.IsConnected())
}
