// Package config loads the server's HCL configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration with defaults applied.
type Config struct {
	Server ServerSettings
	Game   GameSettings
	Voice  VoiceSettings
}

// ServerSettings controls the listener and logging.
type ServerSettings struct {
	Address  string
	Port     int
	LogLevel string
}

// GameSettings controls game timing and room capacity.
type GameSettings struct {
	TurnTimeout    time.Duration
	TrickDelay     time.Duration
	ReconnectGrace time.Duration
	MaxPlayers     int
	Seed           int64 // 0 picks a random seed
}

// VoiceSettings holds voice token credentials. Voice is disabled without a
// secret.
type VoiceSettings struct {
	AppID    string
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// file mirrors the HCL layout. Every block is optional.
type file struct {
	Server *serverBlock `hcl:"server,block"`
	Game   *gameBlock   `hcl:"game,block"`
	Voice  *voiceBlock  `hcl:"voice,block"`
}

type serverBlock struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

type gameBlock struct {
	TurnTimeout    string `hcl:"turn_timeout,optional"`
	TrickDelay     string `hcl:"trick_delay,optional"`
	ReconnectGrace string `hcl:"reconnect_grace,optional"`
	MaxPlayers     int    `hcl:"max_players,optional"`
	Seed           int64  `hcl:"seed,optional"`
}

type voiceBlock struct {
	AppID    string `hcl:"app_id,optional"`
	Secret   string `hcl:"secret,optional"`
	Issuer   string `hcl:"issuer,optional"`
	TokenTTL string `hcl:"token_ttl,optional"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: GameSettings{
			TurnTimeout:    60 * time.Second,
			TrickDelay:     2 * time.Second,
			ReconnectGrace: 60 * time.Second,
			MaxPlayers:     4,
		},
		Voice: VoiceSettings{
			Issuer:   "trickster",
			TokenTTL: time.Hour,
		},
	}
}

// Load reads filename. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	src, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(src, filename)
}

// Parse decodes HCL source and applies defaults for anything left unset.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw file
	diags = gohcl.DecodeBody(f.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config := Default()
	if s := raw.Server; s != nil {
		if s.Address != "" {
			config.Server.Address = s.Address
		}
		if s.Port != 0 {
			config.Server.Port = s.Port
		}
		if s.LogLevel != "" {
			config.Server.LogLevel = s.LogLevel
		}
	}
	if g := raw.Game; g != nil {
		if err := parseDuration("game.turn_timeout", g.TurnTimeout, &config.Game.TurnTimeout); err != nil {
			return nil, err
		}
		if err := parseDuration("game.trick_delay", g.TrickDelay, &config.Game.TrickDelay); err != nil {
			return nil, err
		}
		if err := parseDuration("game.reconnect_grace", g.ReconnectGrace, &config.Game.ReconnectGrace); err != nil {
			return nil, err
		}
		if g.MaxPlayers != 0 {
			config.Game.MaxPlayers = g.MaxPlayers
		}
		config.Game.Seed = g.Seed
	}
	if v := raw.Voice; v != nil {
		config.Voice.AppID = v.AppID
		config.Voice.Secret = v.Secret
		if v.Issuer != "" {
			config.Voice.Issuer = v.Issuer
		}
		if err := parseDuration("voice.token_ttl", v.TokenTTL, &config.Voice.TokenTTL); err != nil {
			return nil, err
		}
	}
	return config, nil
}

func parseDuration(name, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	if c.Game.TurnTimeout <= 0 {
		return fmt.Errorf("game.turn_timeout must be positive")
	}
	if c.Game.TrickDelay < 0 {
		return fmt.Errorf("game.trick_delay cannot be negative")
	}
	if c.Game.ReconnectGrace <= 0 {
		return fmt.Errorf("game.reconnect_grace must be positive")
	}
	if c.Game.MaxPlayers < 2 || c.Game.MaxPlayers > 4 {
		return fmt.Errorf("game.max_players must be between 2 and 4")
	}
	if c.Voice.Secret != "" && c.Voice.AppID == "" {
		return fmt.Errorf("voice.app_id is required when a secret is set")
	}
	if c.Voice.TokenTTL <= 0 {
		return fmt.Errorf("voice.token_ttl must be positive")
	}
	return nil
}

// ListenAddress returns host:port for the HTTP listener.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// VoiceEnabled reports whether voice tokens can be issued.
func (c *Config) VoiceEnabled() bool {
	return c.Voice.Secret != ""
}
