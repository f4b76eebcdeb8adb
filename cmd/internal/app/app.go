// Package app wires the quizlive client runtime: config, logging, the token
// manager, the session command client, the stream consumer, and the cache.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"quizlive/cmd/internal/auth"
	"quizlive/cmd/internal/cache"
	"quizlive/cmd/internal/live"
	"quizlive/cmd/internal/metrics"
	"quizlive/cmd/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App owns the wired client runtime and the lifecycle of its parts.
type App struct {
	cfg Config
	log Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	records *store.Store
	auth    *auth.Manager
	cache   *cache.Cache
	client  *live.Client
	stream  *live.Stream
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogPretty)
	}

	records, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	tokens := auth.New(auth.Config{
		BaseURL: cfg.AuthBaseURL,
		Timeout: cfg.HTTPTimeout,
	}, log, records, httpClient, m)

	sessions := cache.New(log, records)

	client := live.NewClient(live.ClientConfig{
		BaseURL: cfg.LiveBaseURL,
		Timeout: cfg.HTTPTimeout,
	}, log, tokens, httpClient, m)

	stream := live.NewStream(live.StreamConfig{
		BaseURL:     cfg.LiveBaseURL,
		DialTimeout: cfg.StreamDialTimeout,
		MaxRedials:  cfg.StreamMaxRedials,
		RedialBase:  cfg.StreamRedialBase,
		RedialCap:   cfg.StreamRedialCap,
	}, log, tokens, m)

	return &App{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  m,
		records:  records,
		auth:     tokens,
		cache:    sessions,
		client:   client,
		stream:   stream,
	}, nil
}

// Run establishes credentials, attaches to a live session per config, and
// blocks until context cancellation, a fatal ops-server error, or loss of the
// session stream past its redial budget.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.records.Close(); err != nil {
			a.log.Error("store.close.fail", "err", err)
		}
	}()

	var opsSrv *http.Server
	opsErr := make(chan error, 1)

	if a.cfg.OpsAddr != "" {
		mux := http.NewServeMux()
		registerOps(mux, a.log, a.registry, a.cache)

		opsSrv = &http.Server{
			Addr:              a.cfg.OpsAddr,
			Handler:           WithRequestLogging(mux, a.log),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				opsErr <- err
			}
		}()

		a.log.Info("ops.start", "addr", a.cfg.OpsAddr)
	}

	if _, err := a.auth.EnsureAnonymous(ctx); err != nil {
		return err
	}

	if a.cfg.Login != "" {
		if err := a.auth.SignIn(ctx, a.cfg.Login, a.cfg.Code, a.cfg.Password); err != nil {
			return err
		}
		a.log.Info("auth.signed_in", "login", a.cfg.Login)
	}

	l, err := a.bootstrapSession(ctx)
	if err != nil {
		return err
	}

	streamErr := make(chan error, 1)

	if !l.IsZero() {
		if err := a.cache.Set(ctx, l); err != nil {
			a.log.Warn("session.cache.fail", "live", l.Key, "err", err)
		}

		onSnapshot := func(snap live.Live) {
			if err := a.cache.Set(context.Background(), snap); err != nil {
				a.log.Warn("session.cache.fail", "live", snap.Key, "err", err)
			}
		}
		onError := func(err error) {
			select {
			case streamErr <- err:
			default:
			}
		}

		if err := a.stream.Open(ctx, l.Key, onSnapshot, onError); err != nil {
			return err
		}
		defer a.stream.Close()

		a.log.Info("session.attached", "live", l.Key, "status", string(l.Status))
	} else {
		a.log.Info("session.none")
	}

	select {
	case <-ctx.Done():
		a.log.Info("client.stop", "reason", "context_done")
	case err := <-opsErr:
		a.log.Error("ops.fail", "err", err)
		return err
	case err := <-streamErr:
		a.log.Error("session.stream.lost", "err", err)
		return err
	}

	if opsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := opsSrv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("ops.shutdown.fail", "err", err)
			return err
		}
	}

	a.log.Info("client.stopped")
	return nil
}

// bootstrapSession picks the session this run attaches to. A stale cached
// session that the server no longer knows is dropped, not fatal.
func (a *App) bootstrapSession(ctx context.Context) (live.Live, error) {
	switch {
	case a.cfg.QuizKey != "":
		l, err := a.client.Create(ctx, a.cfg.QuizKey)
		if err != nil {
			return live.Live{}, err
		}
		a.log.Info("session.created", "live", l.Key, "quiz", a.cfg.QuizKey)
		return l, nil

	case a.cfg.LiveKey != "":
		l, err := a.client.AddPupil(ctx, a.cfg.LiveKey)
		if err != nil {
			return live.Live{}, err
		}
		a.log.Info("session.joined", "live", l.Key)
		return l, nil

	default:
		cached, ok := a.cache.Get()
		if !ok {
			return live.Live{}, nil
		}

		l, err := a.client.Get(ctx, cached.Key)
		if err != nil {
			a.log.Warn("session.resume.fail", "live", cached.Key, "err", err)
			if clearErr := a.cache.Clear(ctx); clearErr != nil {
				a.log.Warn("session.cache.fail", "live", cached.Key, "err", clearErr)
			}
			return live.Live{}, nil
		}

		a.log.Info("session.resumed", "live", l.Key)
		return l, nil
	}
}
