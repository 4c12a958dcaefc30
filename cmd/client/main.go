package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	applog "github.com/vovakirdan/wirechat-client/internal/log"
)

type flags struct {
	configPath string
	server     string
	api        string
	user       string
	token      string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "wirechat-client",
		Short: "Terminal client for a wirechat relay",
		Long: "wirechat-client connects to a wirechat relay, joins channels and relays chat.\n" +
			"Type /join <channel>, /quit <channel>, /users <channel> or /channels; anything else is sent as chat.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "path to client.yaml")
	cmd.Flags().StringVar(&f.server, "server", "", "relay WebSocket URL")
	cmd.Flags().StringVar(&f.api, "api", "", "relay HTTP base URL")
	cmd.Flags().StringVar(&f.user, "user", "", "username to send as")
	cmd.Flags().StringVar(&f.token, "token", "", "bearer token")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error, off)")

	return cmd
}

func run(parent context.Context, f flags) error {
	bootLogger := applog.New(f.logLevel)

	cfg, cfgPath, err := config.Load(bootLogger, f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(config.Config{
		ServerURL: f.server,
		APIURL:    f.api,
		Username:  f.user,
		Token:     f.token,
		LogLevel:  f.logLevel,
	})

	logger := applog.New(cfg.LogLevel)
	logger.Debug().Str("config_path", cfgPath).Msg("config loaded")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newTerminal(os.Stdout)
	application, err := app.New(ctx, cfg, core.NotifierFunc(out.notice), logger)
	if err != nil {
		return err
	}
	unsubscribe := application.Subscribe(out.event)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- application.Run(ctx) }()
	<-application.Ready()

	out.printf("Connected to %s as %s\n", cfg.ServerURL, application.Client().Identity.Sender())
	out.printf("Type messages and press Enter to send. Ctrl+C to exit.\n")

	go func() {
		readLines(ctx, os.Stdin, func(line string) {
			if err := handleLine(ctx, application.Client(), out, line); err != nil {
				out.printf("! %v\n", err)
			}
		})
		cancel()
	}()

	if err := <-runErr; err != nil {
		logger.Error().Err(err).Msg("client exited with error")
		return err
	}
	logger.Info().Msg("client stopped")
	return nil
}
