package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/core/config"
	"github.com/dmitrymomot/photon/core/logger"
	"github.com/dmitrymomot/photon/integration/channel/detect"
)

var version = "dev"

// cliConfig holds environment defaults for the global flags.
type cliConfig struct {
	LogLevel  string `env:"PHOTON_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PHOTON_LOG_FORMAT" envDefault:"text"`
}

// app is the composition root shared by every command. It owns the broker
// registry for the lifetime of the process.
type app struct {
	out io.Writer
	err io.Writer

	broker    string
	logLevel  string
	logFormat string

	logger   *slog.Logger
	registry *channel.Registry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg cliConfig
	if err := config.Load(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	a := &app{out: os.Stdout, err: os.Stderr, logLevel: cfg.LogLevel, logFormat: cfg.LogFormat}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "channelctl",
		Short: "Publish, subscribe and relay messages on photon channels",
		Long: `channelctl talks to whichever channel transport the environment selects
(redis, http, daemon or noop) or the one forced with --broker.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.err)

	rootCmd.PersistentFlags().StringVar(&a.broker, "broker", "", "Transport type to use instead of auto-detection")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", a.logLevel, "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", a.logFormat, "Log format: text or json")

	rootCmd.AddCommand(
		newPublishCmd(a),
		newSubscribeCmd(a),
		newRelayCmd(a),
		newTypesCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

// init builds the logger and registry unless a test already provided them.
func (a *app) init() error {
	if a.logger == nil {
		level, err := parseLevel(a.logLevel)
		if err != nil {
			return err
		}
		opts := []logger.Option{logger.WithOutput(a.err), logger.WithLevel(level)}
		if strings.EqualFold(a.logFormat, "json") {
			opts = append(opts, logger.WithJSONFormatter())
		}
		a.logger = logger.New(opts...)
	}

	if a.registry == nil {
		override := a.broker
		a.registry = detect.NewRegistry(
			detect.WithLogger(a.logger),
			detect.WithRegistryOptions(channel.WithConfigLoader(func() (channel.Config, error) {
				cfg, err := channel.LoadConfig()
				if override != "" {
					cfg.Broker = override
				}
				return cfg, err
			})),
		)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
