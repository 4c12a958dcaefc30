package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	applog "github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

// App wires together the relay connection, the HTTP collaborator and the core.
type App struct {
	cfg    config.Config
	conn   *ws.Conn
	api    *api.Client
	client *core.Client
	ready  chan struct{}
	log    *zerolog.Logger
}

// New dials the relay and builds the client. notifier receives user-facing
// notices and may be nil.
func New(ctx context.Context, cfg config.Config, notifier core.Notifier, logger *zerolog.Logger) (*App, error) {
	var apiClient *api.Client
	var registrar core.ChannelRegistrar
	if cfg.APIURL != "" {
		c, err := api.NewClient(cfg.APIURL, cfg.Token, cfg.RequestTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("init api client: %w", err)
		}
		apiClient = c
		registrar = c
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	conn, err := ws.Dial(dialCtx, cfg.ServerURL, ws.DialOptions{
		Token:     cfg.Token,
		ReadLimit: cfg.MaxFrameBytes,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect relay: %w", err)
	}

	sessionLog := applog.ForSession(logger, conn.SessionID())
	sessionLog.Info().Str("server", cfg.ServerURL).Msg("connected to relay")

	client := core.NewClient(conn, core.Options{
		JoinTimeout:   cfg.JoinTimeout,
		SweepInterval: cfg.SweepInterval,
		Registrar:     registrar,
		Notifier:      notifier,
	}, sessionLog)
	client.Identity.SetProfile(cfg.UserID, cfg.Username)

	return &App{
		cfg:    cfg,
		conn:   conn,
		api:    apiClient,
		client: client,
		ready:  make(chan struct{}),
		log:    sessionLog,
	}, nil
}

// Client returns the chat state driven by this app.
func (a *App) Client() *core.Client {
	return a.client
}

// Subscribe registers a front-end handler for every inbound event.
func (a *App) Subscribe(h core.Handler) (unsubscribe func()) {
	return a.conn.Subscribe(h)
}

// Ready is closed once Run has attached the client to the connection.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Run keeps the client mounted until ctx is cancelled or the relay goes away,
// then closes the connection.
func (a *App) Run(ctx context.Context) error {
	unmount := a.client.Mount(ctx)
	close(a.ready)

	profileCtx, cancelProfile := context.WithCancel(ctx)
	profileDone := make(chan struct{})
	go func() {
		defer close(profileDone)
		a.resolveProfile(profileCtx)
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down client")
	case <-a.conn.Done():
		a.log.Warn().Msg("relay connection ended")
	}

	cancelProfile()
	<-profileDone
	unmount()

	if err := a.conn.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close relay connection")
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := a.conn.Err(); err != nil {
		return fmt.Errorf("relay connection: %w", err)
	}
	return nil
}

// resolveProfile fills in the identity from GET /profile when the
// configuration did not provide it.
func (a *App) resolveProfile(ctx context.Context) {
	if a.api == nil || (a.client.Identity.Username() != "" && a.client.Identity.UserID() != "") {
		return
	}

	profile, err := a.api.Profile(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Warn().Err(err).Msg("profile lookup failed")
		}
		return
	}

	a.client.Identity.SetProfile(profile.UserID, profile.Username)
	a.log.Info().Str("username", profile.Username).Str("user_id", profile.UserID).Msg("profile resolved")
}
