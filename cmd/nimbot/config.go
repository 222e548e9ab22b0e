package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/nimctl/internal/bot"
	"github.com/danmuck/nimctl/internal/logging"
	"github.com/rs/zerolog"
)

type fileConfig struct {
	Addr     string `toml:"addr"`
	Name     string `toml:"name"`
	Strategy string `toml:"strategy"`
	Games    int    `toml:"games"`
	ThinkMS  int64  `toml:"think_ms"`
	LogLevel string `toml:"log_level"`
	Timeouts struct {
		ConnectMS int64 `toml:"connect_ms"`
		TurnMS    int64 `toml:"turn_ms"`
		WriteMS   int64 `toml:"write_ms"`
	} `toml:"timeouts"`
	Retry struct {
		MaxAttempts    int     `toml:"max_attempts"`
		InitialDelayMS int64   `toml:"initial_delay_ms"`
		MaxDelayMS     int64   `toml:"max_delay_ms"`
		Multiplier     float64 `toml:"multiplier"`
		Jitter         bool    `toml:"jitter"`
	} `toml:"retry"`
	TLS struct {
		Enabled            bool   `toml:"enabled"`
		CAFile             string `toml:"ca_file"`
		ServerName         string `toml:"server_name"`
		InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	} `toml:"tls"`
}

type runConfig struct {
	Bot      bot.Config
	LogLevel zerolog.Level
}

func defaultRunConfig() runConfig {
	return runConfig{Bot: bot.DefaultConfig(), LogLevel: zerolog.InfoLevel}
}

// loadRunConfig overlays only the keys present in path onto the defaults.
func loadRunConfig(path string) (runConfig, error) {
	out := defaultRunConfig()
	cfg := &out.Bot

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load bot config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return runConfig{}, fmt.Errorf("load bot config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("addr") {
		cfg.Address = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("strategy") {
		strategy, err := bot.ParseStrategy(raw.Strategy)
		if err != nil {
			return runConfig{}, err
		}
		cfg.Strategy = strategy
	}
	if meta.IsDefined("games") {
		cfg.Games = raw.Games
	}
	if meta.IsDefined("think_ms") {
		cfg.Think = millis(raw.ThinkMS)
	}
	if meta.IsDefined("log_level") {
		level, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return runConfig{}, fmt.Errorf("parse log_level: %q", raw.LogLevel)
		}
		out.LogLevel = level
	}

	if meta.IsDefined("timeouts", "connect_ms") {
		cfg.Session.ConnectTimeout = millis(raw.Timeouts.ConnectMS)
	}
	if meta.IsDefined("timeouts", "turn_ms") {
		cfg.Session.TurnTimeout = millis(raw.Timeouts.TurnMS)
	}
	if meta.IsDefined("timeouts", "write_ms") {
		cfg.Session.WriteTimeout = millis(raw.Timeouts.WriteMS)
	}

	if meta.IsDefined("retry", "max_attempts") {
		cfg.MaxConnectAttempts = raw.Retry.MaxAttempts
	}
	if meta.IsDefined("retry", "initial_delay_ms") {
		cfg.Session.Backoff.InitialDelay = millis(raw.Retry.InitialDelayMS)
	}
	if meta.IsDefined("retry", "max_delay_ms") {
		cfg.Session.Backoff.MaxDelay = millis(raw.Retry.MaxDelayMS)
	}
	if meta.IsDefined("retry", "multiplier") {
		cfg.Session.Backoff.Multiplier = raw.Retry.Multiplier
	}
	if meta.IsDefined("retry", "jitter") {
		cfg.Session.Backoff.Jitter = raw.Retry.Jitter
	}

	if meta.IsDefined("tls", "enabled") {
		cfg.Session.TLS.Enabled = raw.TLS.Enabled
	}
	if meta.IsDefined("tls", "ca_file") {
		cfg.Session.TLS.CAFile = strings.TrimSpace(raw.TLS.CAFile)
	}
	if meta.IsDefined("tls", "server_name") {
		cfg.Session.TLS.ServerName = strings.TrimSpace(raw.TLS.ServerName)
	}
	if meta.IsDefined("tls", "insecure_skip_verify") {
		cfg.Session.TLS.InsecureSkipVerify = raw.TLS.InsecureSkipVerify
	}
	return out, nil
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
