package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/core/health"
	"github.com/dmitrymomot/photon/core/logger"
	"github.com/dmitrymomot/photon/integration/channel/httpsse"
)

func newRelayCmd(a *app) *cobra.Command {
	var (
		addr      string
		path      string
		token     string
		backend   string
		keepAlive time.Duration
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve the HTTP publish and event-stream endpoints",
		Long: `relay accepts POSTed messages and streams them to GET ?channel=<name>
subscribers as Server-Sent Events. Messages stay in memory unless --backend
names a transport to relay through, e.g. redis for several relay instances.
Liveness and readiness probes are served at /health/live and /health/ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []httpsse.RelayOption{
				httpsse.WithRelayToken(token),
				httpsse.WithRelayKeepAlive(keepAlive),
				httpsse.WithRelayLogger(a.logger),
			}
			if backend != "" {
				b, err := a.registry.Create(backend)
				if err != nil {
					return err
				}
				defer b.Disconnect(context.Background())
				opts = append(opts, httpsse.WithRelayBroker(b))
			}
			relay := httpsse.NewRelay(opts...)

			mux := http.NewServeMux()
			health.Register(mux, a.logger, relay.Broker().Connect)
			mux.Handle(path, relay)

			srv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(cmd.Context(), a, srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&path, "path", "/", "Path serving the publish and stream endpoints")
	cmd.Flags().StringVar(&token, "token", os.Getenv("PHOTON_CHANNEL_AUTH_TOKEN"), "Bearer token required from clients")
	cmd.Flags().StringVar(&backend, "backend", "", fmt.Sprintf("Transport to relay through (default %s)", channel.TypeMemory))
	cmd.Flags().DurationVar(&keepAlive, "keep-alive", httpsse.DefaultRelayKeepAlive, "Interval of keep-alive comments")

	return cmd
}

func serve(ctx context.Context, a *app, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("relay listening", logger.Address(srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.logger.Info("relay shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown relay: %w", err)
	}
	return nil
}
