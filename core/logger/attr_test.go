package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/photon/core/logger"
)

func TestAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want any
	}{
		{"duration", logger.Duration(5 * time.Second), "duration", 5 * time.Second},
		{"channel", logger.Channel("board:42"), "channel", "board:42"},
		{"pattern", logger.Pattern("board:*:updates"), "pattern", "board:*:updates"},
		{"transport", logger.Transport("redis"), "transport", "redis"},
		{"source", logger.Source("worker-1"), "source", "worker-1"},
		{"event", logger.Event("task.moved"), "event", "task.moved"},
		{"address", logger.Address("/tmp/kanban.sock"), "address", "/tmp/kanban.sock"},
		{"handlers", logger.Handlers(3), "handlers", int64(3)},
		{"status code", logger.StatusCode(502), "status_code", int64(502)},
		{"component", logger.Component("relay"), "component", "relay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.Any())
		})
	}
}

func TestOptionalAttrsAreEmpty(t *testing.T) {
	t.Parallel()

	for name, attr := range map[string]slog.Attr{
		"error":   logger.Error(nil),
		"errors":  logger.Errors(nil, nil),
		"pattern": logger.Pattern(""),
		"source":  logger.Source(""),
		"event":   logger.Event(""),
	} {
		assert.True(t, attr.Equal(slog.Attr{}), name)
	}
}

func TestError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
}

func TestErrorsKeepPositions(t *testing.T) {
	t.Parallel()

	first := errors.New("first")
	third := errors.New("third")

	attr := logger.Errors(first, nil, third)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())

	group := attr.Value.Group()
	require.Len(t, group, 2)
	assert.Equal(t, "0", group[0].Key)
	assert.Equal(t, first, group[0].Value.Any())
	assert.Equal(t, "2", group[1].Key)
	assert.Equal(t, third, group[1].Value.Any())
}
