package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/lobbychat/internal/config"
	"github.com/vovakirdan/lobbychat/internal/console"
	"github.com/vovakirdan/lobbychat/internal/core"
	"github.com/vovakirdan/lobbychat/internal/store"
	transporthttp "github.com/vovakirdan/lobbychat/internal/transport/http"
)

// App wires together store, core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	console         *console.Console
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
// The store is connected and migrated before New returns.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	var input io.Reader
	if cfg.Chat.Stdin {
		input = os.Stdin
	}
	return newApp(ctx, cfg, openDriver, input, logger)
}

func newApp(ctx context.Context, cfg config.Config, open opener, input io.Reader, logger *zerolog.Logger) (*App, error) {
	st, err := openWithRetry(ctx, cfg.Store, open, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	if err := st.Migrate(ctx, logger); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("schema ready")

	guarded := store.WithTimeout(st, cfg.Store.Timeout)

	hub := core.NewHub(guarded, core.HubConfig{
		ChatID:       cfg.Chat.RoomID,
		HistoryOrder: core.HistoryOrder(cfg.Chat.HistoryOrder),
	}, logger)

	a := &App{
		server:          transporthttp.NewServer(hub, guarded, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           guarded,
		log:             logger,
	}
	if input != nil {
		a.console = console.New(hub, input, cfg.Chat.ServerIdentity, logger).
			WithMaxLineBytes(int(cfg.WS.MaxMessageBytes))
	}
	return a, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var workers sync.WaitGroup
	serverErr := make(chan error, 1)

	workers.Add(1)
	go func() {
		defer workers.Done()
		a.hub.Run(ctx)
	}()

	if a.console != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := a.console.Run(ctx); err != nil {
				a.log.Warn().Err(err).Msg("console input stopped")
			}
		}()
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancelShutdown()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
	}

	cancel()
	workers.Wait()
	a.cleanup()
	return runErr
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
