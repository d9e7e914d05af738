package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "rocket-arena.db", cfg.DBPath)
	assert.Equal(t, DefaultTickRate, cfg.TickRate)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100, cfg.MaxSessions)
	assert.Equal(t, 5, cfg.MaxConnsPerIP)
	assert.Equal(t, 1000, cfg.MaxTotalConns)
	assert.Equal(t, "ws://localhost:8080", cfg.Bot.Server)
	assert.Equal(t, "bot", cfg.Bot.Name)
	assert.Equal(t, int64(1), cfg.Bot.Seed)
	assert.Equal(t, 0, cfg.Bot.Cheat)
	assert.Equal(t, DefaultSessionIdleTimeout, cfg.SessionIdleTimeout)
}

func TestLoadConfig_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rocket.json")
	data := `{
		"mode": "bot",
		"tickRate": 30,
		"logLevel": "debug",
		"sessionIdleTimeout": "30s",
		"bot": { "server": "http://arena:9000", "session": "abc", "seed": 42, "cheat": 5 }
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bot", cfg.Mode)
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://arena:9000", cfg.Bot.Server)
	assert.Equal(t, "abc", cfg.Bot.Session)
	assert.Equal(t, int64(42), cfg.Bot.Seed)
	assert.Equal(t, 5, cfg.Bot.Cheat)
	assert.Equal(t, 30*time.Second, cfg.SessionIdleTimeout)
	assert.Equal(t, ":8080", cfg.Addr, "unset keys keep their defaults")
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ROCKET_TICKRATE", "120")
	t.Setenv("ROCKET_ADDR", ":9999")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.TickRate)
	assert.Equal(t, ":9999", cfg.Addr)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/rocket.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfigValidate(t *testing.T) {
	base := Config{Mode: "server", TickRate: 60}
	assert.NoError(t, base.Validate())

	bad := base
	bad.Mode = "spectator"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Mode = "bot"
	assert.Error(t, bad.Validate(), "bot mode without a session")
	bad.Bot.Session = "s"
	assert.NoError(t, bad.Validate())

	bad = base
	bad.TickRate = 0
	assert.Error(t, bad.Validate())
	bad.TickRate = 500
	assert.Error(t, bad.Validate())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}
