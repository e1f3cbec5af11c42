package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/lox/trickster/internal/config"
	"github.com/lox/trickster/internal/randutil"
	"github.com/lox/trickster/internal/room"
	"github.com/lox/trickster/internal/server"
	"github.com/lox/trickster/internal/session"
	"github.com/lox/trickster/internal/voice"
	"golang.org/x/sync/errgroup"
)

// ServerCmd runs the WebSocket game server.
type ServerCmd struct {
	Config   string `short:"c" default:"trickster.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Address to listen on as host:port (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Seed     *int64 `help:"Deterministic RNG seed for deals (overrides config)"`
}

// apply folds command line overrides into cfg.
func (c *ServerCmd) apply(cfg *config.Config) error {
	if c.Addr != "" {
		host, port, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", c.Addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port in %q", c.Addr)
		}
		cfg.Server.Address, cfg.Server.Port = host, p
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Seed != nil {
		cfg.Game.Seed = *c.Seed
	}
	return cfg.Validate()
}

func (c *ServerCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := c.apply(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(os.Stderr, cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	rng, seed := randutil.FromConfig(cfg.Game.Seed)
	logger.Info("Using RNG seed", "seed", seed)

	var issuer *voice.Issuer
	if cfg.VoiceEnabled() {
		issuer = voice.NewIssuer(voice.Config{
			AppID:  cfg.Voice.AppID,
			Secret: cfg.Voice.Secret,
			Issuer: cfg.Voice.Issuer,
			TTL:    cfg.Voice.TokenTTL,
		}, nil)
	}

	srv := server.NewServer(cfg.ListenAddress(), logger, server.Options{
		Rooms: []room.Option{room.WithGrace(cfg.Game.ReconnectGrace)},
		Sessions: []session.Option{
			session.WithRand(rng),
			session.WithConfig(session.Config{
				TurnTimeout: cfg.Game.TurnTimeout,
				TrickDelay:  cfg.Game.TrickDelay,
			}),
		},
		Voice:      issuer,
		MaxPlayers: cfg.Game.MaxPlayers,
	})

	logger.Info("Starting trickster server",
		"addr", cfg.ListenAddress(),
		"turnTimeout", cfg.Game.TurnTimeout,
		"trickDelay", cfg.Game.TrickDelay,
		"reconnectGrace", cfg.Game.ReconnectGrace,
		"maxPlayers", cfg.Game.MaxPlayers,
		"voice", issuer.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		return nil
	})
	return g.Wait()
}
