package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/core/logger"
	"github.com/dmitrymomot/photon/integration/channel/detect"
	"github.com/dmitrymomot/photon/integration/channel/httpsse"
)

func testApp(reg *channel.Registry) (*app, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &app{out: out, err: io.Discard, logger: logger.Discard(), registry: reg}, out
}

func run(t *testing.T, ctx context.Context, a *app, args ...string) error {
	t.Helper()
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()

	memory := channel.NewMemory()
	reg := channel.NewRegistry(channel.WithConfig(channel.Config{}))
	reg.Set(memory)

	subApp, subOut := testApp(reg)
	done := make(chan error, 1)
	go func() {
		done <- run(t, context.Background(), subApp, "subscribe", "board:1", "--count", "1")
	}()
	require.Eventually(t, memory.IsConnected, 2*time.Second, 10*time.Millisecond)

	pubApp, pubOut := testApp(reg)
	require.NoError(t, run(t, context.Background(), pubApp, "publish", "board:1", `{"id":7}`, "--event", "task-updated"))
	assert.Contains(t, pubOut.String(), "published to board:1 via custom")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not exit")
	}

	var msg channel.Message
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(subOut.Bytes()), &msg))
	assert.Equal(t, "board:1", msg.Channel)
	assert.Equal(t, "task-updated", msg.Event)
	assert.Equal(t, map[string]any{"id": float64(7)}, msg.Data)
}

func TestSubscribeStopsOnCancel(t *testing.T) {
	t.Parallel()

	reg := channel.NewRegistry(channel.WithConfig(channel.Config{}))
	reg.Set(channel.NewMemory())
	a, _ := testApp(reg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, run(t, ctx, a, "subscribe", "c"))
}

func TestSubscribeCountExitsWhileMessagesQueue(t *testing.T) {
	t.Parallel()

	relay := httpsse.NewRelay()
	srv := httptest.NewServer(relay)
	t.Cleanup(srv.Close)

	b, err := httpsse.New(httpsse.WithURL(srv.URL))
	require.NoError(t, err)

	reg := channel.NewRegistry(channel.WithConfig(channel.Config{}))
	reg.Set(b)
	a, out := testApp(reg)

	done := make(chan error, 1)
	go func() {
		done <- run(t, context.Background(), a, "subscribe", "c", "--count", "1")
	}()
	require.Eventually(t, relay.Broker().IsConnected, 2*time.Second, 10*time.Millisecond)

	// More than the command buffers, so the transport's read loop is parked
	// in the handler when the first message has been printed.
	for i := range 40 {
		require.NoError(t, relay.Broker().Publish(context.Background(), channel.Message{Channel: "c", Event: fmt.Sprintf("e%d", i)}))
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe --count 1 did not exit")
	}
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestTypes(t *testing.T) {
	t.Parallel()

	reg := detect.NewRegistry(detect.WithRegistryOptions(
		channel.WithConfig(channel.Config{DaemonEnabled: "false"}),
	))
	a, out := testApp(reg)

	require.NoError(t, run(t, context.Background(), a, "types"))
	assert.Contains(t, out.String(), "* noop\n")
	assert.Contains(t, out.String(), "  memory\n")
	assert.Contains(t, out.String(), "  daemon\n")
}

func TestRelayShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	reg := detect.NewRegistry(detect.WithRegistryOptions(channel.WithConfig(channel.Config{})))
	a, _ := testApp(reg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, run(t, ctx, a, "relay", "--addr", "127.0.0.1:0", "--backend", channel.TypeMemory))
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()

	a := &app{out: io.Discard, err: io.Discard, logLevel: "loud"}
	err := run(t, context.Background(), a, "types")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	a, out := testApp(channel.NewRegistry())
	require.NoError(t, run(t, context.Background(), a, "version"))
	assert.Contains(t, out.String(), "channelctl version dev")
}

func TestParseData(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]any{"a": true}, parseData(`{"a":true}`))
	assert.Equal(t, float64(3), parseData("3"))
	assert.Equal(t, "hello world", parseData("hello world"))
}
