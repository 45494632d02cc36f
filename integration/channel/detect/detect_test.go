package detect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/integration/channel/daemon"
	"github.com/dmitrymomot/photon/integration/channel/detect"
	"github.com/dmitrymomot/photon/integration/channel/httpsse"
)

func registry(cfg channel.Config) *channel.Registry {
	return detect.NewRegistry(detect.WithRegistryOptions(channel.WithConfig(cfg)))
}

func TestNewRegistry_Types(t *testing.T) {
	t.Parallel()

	want := []string{channel.TypeDaemon, channel.TypeHTTP, channel.TypeMemory, channel.TypeNoOp}
	if detect.RedisEnabled {
		want = append(want, channel.TypeRedis)
	}
	assert.ElementsMatch(t, want, registry(channel.Config{}).Types())
}

func TestNewRegistry_Detect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  channel.Config
		want any
		typ  string
	}{
		{
			name: "daemon by default",
			cfg:  channel.Config{DaemonEnabled: "true", DaemonSocketDir: t.TempDir()},
			want: &daemon.Broker{},
			typ:  channel.TypeDaemon,
		},
		{
			name: "noop when daemon disabled",
			cfg:  channel.Config{DaemonEnabled: "false"},
			want: &channel.NoOp{},
			typ:  channel.TypeNoOp,
		},
		{
			name: "daemon disabled case-insensitively",
			cfg:  channel.Config{DaemonEnabled: "FALSE"},
			want: &channel.NoOp{},
			typ:  channel.TypeNoOp,
		},
		{
			name: "http url",
			cfg:  channel.Config{HTTPURL: "http://localhost:8080/", DaemonEnabled: "false"},
			want: &httpsse.Broker{},
			typ:  channel.TypeHTTP,
		},
		{
			name: "override wins",
			cfg:  channel.Config{Broker: channel.TypeMemory, HTTPURL: "http://localhost:8080/"},
			want: &channel.Memory{},
			typ:  channel.TypeMemory,
		},
		{
			name: "unknown override is skipped",
			cfg:  channel.Config{Broker: "carrier-pigeon", DaemonEnabled: "false"},
			want: &channel.NoOp{},
			typ:  channel.TypeNoOp,
		},
		{
			name: "failing override is skipped",
			cfg:  channel.Config{Broker: channel.TypeHTTP, DaemonEnabled: "false"},
			want: &channel.NoOp{},
			typ:  channel.TypeNoOp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := registry(tt.cfg)
			b := reg.Get()
			require.NotNil(t, b)
			assert.IsType(t, tt.want, b)
			assert.Equal(t, tt.typ, reg.ActiveType())
		})
	}
}

func TestNewRegistry_Create(t *testing.T) {
	t.Parallel()

	reg := registry(channel.Config{})

	b, err := reg.Create(channel.TypeMemory)
	require.NoError(t, err)
	assert.IsType(t, &channel.Memory{}, b)

	_, err = reg.Create(channel.TypeHTTP)
	assert.ErrorIs(t, err, httpsse.ErrMissingURL)

	_, err = reg.Create("nope")
	assert.ErrorIs(t, err, channel.ErrUnknownBroker)
}
