package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrsteele09/school-portal/apiclient"
	"github.com/jrsteele09/school-portal/internal/config"
	"github.com/jrsteele09/school-portal/portal"
	"github.com/jrsteele09/school-portal/sessions"
	"github.com/jrsteele09/school-portal/sessions/filerepo"
	"github.com/jrsteele09/school-portal/sessions/redisrepo"
	fakesessionrepo "github.com/jrsteele09/school-portal/sessions/repofakes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app holds the wired components one command invocation works with.
type app struct {
	cfg      config.Config
	store    *sessions.Store
	client   *apiclient.Client
	service  *portal.Service
	registry *prometheus.Registry

	// watch is nil when the configured session store cannot report changes.
	watch   func(ctx context.Context, onChange func()) error
	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
	}

	repo, err := a.sessionRepo(ctx)
	if err != nil {
		return nil, err
	}
	a.store = sessions.NewStore(ctx, repo,
		sessions.WithLogger(log.Logger),
		sessions.WithPersistTimeout(cfg.GetPersistTimeout()),
	)

	a.client, err = apiclient.New(cfg.GetAPIBaseURL(), a.store,
		apiclient.WithTimeout(cfg.GetRequestTimeout()),
		apiclient.WithRefreshPath(cfg.GetRefreshPath()),
		apiclient.WithUserAgent(cfg.GetUserAgent()),
		apiclient.WithLogger(log.Logger),
		apiclient.WithMetrics(apiclient.NewMetrics(a.registry)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = portal.NewService(a.client, a.store)
	return a, nil
}

func (a *app) sessionRepo(ctx context.Context) (sessions.Repo, error) {
	switch a.cfg.GetSessionStore() {
	case config.StoreRedis:
		client, err := redisrepo.Dial(ctx, a.cfg.GetRedisURL())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return redisrepo.New(client, redisrepo.WithPrefix(a.cfg.GetRedisPrefix())), nil

	case config.StoreMemory:
		return fakesessionrepo.NewFakeSessionRepo(), nil

	default:
		path := a.cfg.GetSessionFile()
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create session folder: %w", err)
		}
		repo := filerepo.New(path, filerepo.WithSecret(a.cfg.GetSessionSecret()))
		a.watch = repo.Watch
		return repo, nil
	}
}

// Close releases connections held by the session repo.
func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Err(err).Msg("Failed to close session repo")
		}
	}
	a.closers = nil
}

// setupLogging configures the global zerolog logger. Logs go to stderr so
// command output on stdout stays clean.
func setupLogging(cfg config.EnvConfig, stderr io.Writer) {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = stderr
	if cfg.GetLogFormat() == "console" {
		out = zerolog.ConsoleWriter{Out: stderr}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("app", cfg.GetAppName()).Logger()
}
