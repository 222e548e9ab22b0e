package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parse %q got=%v ok=%v want=%v", raw, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("unknown level should not parse")
	}
}

func TestApplyWritesStructuredLines(t *testing.T) {
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var out bytes.Buffer
	Apply(Config{Level: zerolog.InfoLevel, NoColor: true, Out: &out})
	log.Debug().Msg("hidden")
	log.Info().Str("session_id", "s-1").Msg("visible")
	text := out.String()
	if strings.Contains(text, "hidden") {
		t.Fatalf("debug line should be filtered: %q", text)
	}
	if !strings.Contains(text, "visible") || !strings.Contains(text, "session_id=s-1") {
		t.Fatalf("unexpected log output: %q", text)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogTimestamp, "nope")
	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.WarnLevel || !cfg.NoColor || !cfg.Timestamp {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
