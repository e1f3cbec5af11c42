package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lox/trickster/internal/client"
	"github.com/lox/trickster/internal/tui"
)

// ClientCmd runs the interactive terminal client.
type ClientCmd struct {
	Config   string `short:"c" default:"trickster-client.hcl" help:"Path to HCL configuration file"`
	Server   string `short:"s" help:"Server URL to connect to (overrides config)"`
	Name     string `short:"n" help:"Display name (overrides config, defaults to $USER)"`
	PlayerID string `name:"player-id" help:"Durable player id to request (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
}

func (c *ClientCmd) Run() error {
	cfg, err := client.LoadClientConfig(c.Config)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// Apply command line overrides
	if c.Server != "" {
		cfg.Server.URL = c.Server
	}
	if c.Name != "" {
		cfg.Player.Name = strings.TrimSpace(c.Name)
	}
	if cfg.Player.Name == "" {
		cfg.Player.Name = os.Getenv("USER")
	}
	if c.PlayerID != "" {
		cfg.Player.ID = c.PlayerID
	}
	if c.LogLevel != "" {
		cfg.UI.LogLevel = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.UI.LogFile = c.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The terminal belongs to the TUI, so logs go to a file (overwritten each run)
	logFile, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	logger, err := newLogger(logFile, cfg.UI.LogLevel)
	if err != nil {
		return err
	}

	wsClient := client.NewClient(cfg.Server.URL, cfg.Player.ID, logger)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ConnectTimeout)*time.Second)
	defer cancel()
	if err := wsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer wsClient.Close()

	model := tui.NewTUIModel(logger, wsClient, cfg.Player.Name)
	model.AddLogEntry(fmt.Sprintf("Connected to %s as %s. Type 'help' for commands.", cfg.Server.URL, cfg.Player.Name))

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}
