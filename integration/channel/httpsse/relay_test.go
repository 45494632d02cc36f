package httpsse_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/integration/channel/httpsse"
	"github.com/dmitrymomot/photon/pkg/sse"
)

func TestRelay_Publish(t *testing.T) {
	t.Parallel()

	relay := httpsse.NewRelay(httpsse.WithRelayToken("secret"))

	var rec recorder
	_, err := relay.Broker().Subscribe(context.Background(), "c", rec.handle)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		auth   string
		body   string
		status int
	}{
		{name: "accepted", method: http.MethodPost, auth: "Bearer secret", body: `{"channel":"c","event":"e"}`, status: http.StatusAccepted},
		{name: "missing token", method: http.MethodPost, body: `{"channel":"c"}`, status: http.StatusUnauthorized},
		{name: "wrong token", method: http.MethodPost, auth: "Bearer nope", body: `{"channel":"c"}`, status: http.StatusUnauthorized},
		{name: "malformed body", method: http.MethodPost, auth: "Bearer secret", body: `{"channel":`, status: http.StatusBadRequest},
		{name: "empty channel", method: http.MethodPost, auth: "Bearer secret", body: `{"event":"e"}`, status: http.StatusBadRequest},
		{name: "unsupported method", method: http.MethodPut, auth: "Bearer secret", body: `{}`, status: http.StatusMethodNotAllowed},
		{name: "stream without channel", method: http.MethodGet, auth: "Bearer secret", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		rr := httptest.NewRecorder()
		relay.ServeHTTP(rr, req)
		assert.Equal(t, tt.status, rr.Code, tt.name)
	}

	msgs := rec.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "e", msgs[0].Event)
}

func TestRelay_Stream(t *testing.T) {
	t.Parallel()

	relay := httpsse.NewRelay(httpsse.WithRelayKeepAlive(20 * time.Millisecond))
	srv := httptest.NewServer(relay)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?channel=board:1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The relay subscribes before answering, so publishing now is safe.
	require.NoError(t, relay.Broker().Publish(ctx, channel.Message{Channel: "board:2", Event: "skip"}))
	require.NoError(t, relay.Broker().Publish(ctx, channel.Message{Channel: "board:1", Event: "first", Data: "x"}))

	// Let a keep-alive comment through before the next event.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, relay.Broker().Publish(ctx, channel.Message{Channel: "board:1", Event: "second"}))

	dec := sse.NewDecoder(resp.Body)
	for _, want := range []string{"first", "second"} {
		ev, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, "message", ev.Type())

		var msg channel.Message
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &msg))
		assert.Equal(t, "board:1", msg.Channel)
		assert.Equal(t, want, msg.Event)
	}
}

func TestRelay_StreamUnsubscribesOnClose(t *testing.T) {
	t.Parallel()

	relay := httpsse.NewRelay()
	srv := httptest.NewServer(relay)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?channel=c", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, relay.Broker().IsConnected())

	cancel()
	_ = resp.Body.Close()

	require.Eventually(t, func() bool { return !relay.Broker().IsConnected() }, 2*time.Second, 10*time.Millisecond)
}
