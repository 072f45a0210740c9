package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/queuesync/internal/client"
	"github.com/vovakirdan/queuesync/internal/config"
	"github.com/vovakirdan/queuesync/internal/identity"
	"github.com/vovakirdan/queuesync/internal/queueapi"
	transporthttp "github.com/vovakirdan/queuesync/internal/transport/http"
)

// App wires sessions, identity storage and the local bridge API.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *client.Registry
	identities      *identity.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	ids, err := identity.New(cfg.IdentityDB)
	if err != nil {
		return nil, fmt.Errorf("init identity store: %w", err)
	}
	logger.Info().Str("db_path", cfg.IdentityDB).Msg("identity store initialized")

	registry := client.NewRegistry(SessionFactory(cfg, ids, logger), logger)
	server := transporthttp.NewServer(registry, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        registry,
		identities:      ids,
		log:             logger,
	}, nil
}

// SessionFactory builds sessions from cfg, resolving the participant id of
// each session from ids.
func SessionFactory(cfg *config.Config, ids *identity.Store, logger *zerolog.Logger) client.SessionFactory {
	snapshots := queueapi.NewClient(cfg.ServerURL, cfg.SnapshotPath, cfg.SnapshotTimeout)
	dialer := client.WSDialer{ReadLimit: cfg.ReadLimit}
	backoff := client.Backoff{
		Base:        cfg.ReconnectBaseDelay,
		Max:         cfg.ReconnectMaxDelay,
		MaxAttempts: cfg.ReconnectMaxAttempts,
	}

	return func(ctx context.Context, handle string) (*client.Session, error) {
		participant, err := ids.ParticipantID(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("participant id: %w", err)
		}
		return client.NewSession(client.Options{
			Handle:          handle,
			ParticipantID:   participant,
			ServerURL:       cfg.ServerURL,
			Dialer:          dialer,
			Snapshots:       snapshots,
			Backoff:         backoff,
			SendRate:        cfg.SendRate,
			SendBurst:       cfg.SendBurst,
			WriteTimeout:    cfg.WriteTimeout,
			SnapshotTimeout: cfg.SnapshotTimeout,
			NoticeDuration:  cfg.NoticeDuration,
			Logger:          logger,
		})
	}
}

// Run joins the given sessions, serves the bridge API and logs session
// events. It blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context, handles []string) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	for _, h := range handles {
		s, _, err := a.registry.Join(gctx, h)
		if err != nil {
			return err
		}
		g.Go(func() error {
			a.watch(gctx, s)
			return nil
		})
	}

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("bridge api listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// watch logs status transitions, queue changes and notices of one session.
func (a *App) watch(ctx context.Context, s *client.Session) {
	log := a.log.With().Str("session", s.Handle()).Logger()

	status, cancelStatus := s.Status().Subscribe()
	defer cancelStatus()
	changes, cancelChanges := s.Changes()
	defer cancelChanges()
	notices, cancelNotices := s.Notices().Subscribe()
	defer cancelNotices()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-status:
			if !ok {
				return
			}
			log.Info().Stringer("status", st).Msg("connection status")
		case ch, ok := <-changes:
			if !ok {
				return
			}
			log.Info().Str("kind", string(ch.Kind)).Int64("entry_id", ch.EntryID).Int("entries", len(s.Entries())).Msg("queue changed")
		case n, ok := <-notices:
			if !ok {
				return
			}
			log.Info().Str("category", string(n.Category)).Str("title", n.Title).Msg(n.Message)
		}
	}
}

// cleanup leaves every session and closes the identity store.
func (a *App) cleanup() {
	a.registry.Close()
	if err := a.identities.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close identity store")
	} else {
		a.log.Info().Msg("identity store closed")
	}
}
