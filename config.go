package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ROCKET"

// Config holds process-level settings. Gameplay tuning lives in Settings.
type Config struct {
	Mode          string `mapstructure:"mode"`
	Addr          string `mapstructure:"addr"`
	DBPath        string `mapstructure:"dbPath"`
	TickRate      int    `mapstructure:"tickRate"`
	TokenSecret   string `mapstructure:"tokenSecret"`
	SettingsFile  string `mapstructure:"settingsFile"`
	LogLevel      string `mapstructure:"logLevel"`
	PrettyLogs    bool   `mapstructure:"prettyLogs"`
	MaxSessions   int    `mapstructure:"maxSessions"`
	MaxConnsPerIP int    `mapstructure:"maxConnsPerIP"`
	MaxTotalConns int    `mapstructure:"maxTotalConns"`

	SessionIdleTimeout time.Duration `mapstructure:"sessionIdleTimeout"`

	Bot BotConfig `mapstructure:"bot"`
}

// BotConfig is used by -mode bot
type BotConfig struct {
	Server  string `mapstructure:"server"`
	Session string `mapstructure:"session"`
	Name    string `mapstructure:"name"`
	Pass    string `mapstructure:"pass"`
	Seed    int64  `mapstructure:"seed"`
	Cheat   int    `mapstructure:"cheat"` // rockets to request when empty; needs allow_cheats on the server
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "server")
	v.SetDefault("addr", ":8080")
	v.SetDefault("dbPath", "rocket-arena.db")
	v.SetDefault("tickRate", DefaultTickRate)
	v.SetDefault("tokenSecret", "")
	v.SetDefault("settingsFile", "")
	v.SetDefault("logLevel", "info")
	v.SetDefault("prettyLogs", false)
	v.SetDefault("maxSessions", 100)
	v.SetDefault("maxConnsPerIP", 5)
	v.SetDefault("maxTotalConns", 1000)
	v.SetDefault("sessionIdleTimeout", DefaultSessionIdleTimeout.String())

	v.SetDefault("bot.server", "ws://localhost:8080")
	v.SetDefault("bot.session", "")
	v.SetDefault("bot.name", "bot")
	v.SetDefault("bot.pass", "")
	v.SetDefault("bot.seed", 1)
	v.SetDefault("bot.cheat", 0)
}

// LoadConfig reads defaults, then the optional config file, then ROCKET_* environment
// overrides (ROCKET_TICKRATE, ROCKET_BOT_SESSION, ...). A missing file is an error only
// when a path was given.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with
func (c Config) Validate() error {
	switch c.Mode {
	case "server":
	case "bot":
		if c.Bot.Session == "" {
			return errors.New("config: bot mode needs bot.session")
		}
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.TickRate <= 0 || c.TickRate > 240 {
		return fmt.Errorf("config: tickRate %d out of range", c.TickRate)
	}
	return nil
}
