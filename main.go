package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (yaml, json or toml)")
	mode := flag.String("mode", "", "server or bot (overrides config)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err == nil && *mode != "" {
		cfg.Mode = *mode
		err = cfg.Validate()
	}
	log := NewLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	settings := DefaultSettings()
	if cfg.SettingsFile != "" {
		if settings, err = LoadSettings(cfg.SettingsFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.SettingsFile).Msg("settings")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, err := NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("metrics")
	}

	switch cfg.Mode {
	case "bot":
		err = runBot(ctx, cfg, settings, log, metrics)
	default:
		err = runServer(ctx, cfg, settings, log, metrics)
	}
	if err != nil {
		log.Error().Err(err).Msg("exited with error")
		os.Exit(1)
	}
	log.Info().Msg("shut down")
}

func runServer(ctx context.Context, cfg Config, settings Settings, log zerolog.Logger, metrics *Metrics) error {
	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	analytics := NewAnalytics(db, log)
	defer analytics.Stop()

	hub := NewHub(HubConfig{
		MaxConnsPerIP: cfg.MaxConnsPerIP,
		MaxTotalConns: cfg.MaxTotalConns,
		Analytics:     analytics,
		Sessions: SessionManagerConfig{
			MaxSessions: cfg.MaxSessions,
			IdleTimeout: cfg.SessionIdleTimeout,
			Settings:    settings,
			TickRate:    cfg.TickRate,
			Log:         log,
			Metrics:     metrics,
			Events:      analytics,
			Auth:        NewAuth(db, cfg.TokenSecret, log),
			DB:          db,
		},
	})
	server := &http.Server{Addr: cfg.Addr, Handler: SetupRoutes(hub)}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Int("tick_rate", cfg.TickRate).Msg("server starting")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runBot(ctx context.Context, cfg Config, settings Settings, log zerolog.Logger, metrics *Metrics) error {
	replica := NewReplica(ReplicaConfig{
		Settings:  settings,
		SessionID: cfg.Bot.Session,
		Log:       log,
		FX:        LogPresenter{Log: log},
		Metrics:   metrics,
	})
	pilot := NewBotPilot(replica, cfg.Bot.Seed)
	pilot.CheatAmount = cfg.Bot.Cheat
	replica.SetInput(pilot)

	rc, err := DialSession(ctx, JoinParams{
		Server:  cfg.Bot.Server,
		Session: cfg.Bot.Session,
		Name:    cfg.Bot.Name,
		Pass:    cfg.Bot.Pass,
	}, replica, log, metrics)
	if err != nil {
		return err
	}
	log.Info().Str("server", cfg.Bot.Server).Str("session", cfg.Bot.Session).Msg("bot connected")
	return rc.Run(ctx, cfg.TickRate)
}
