package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/nimctl/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nimd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestServerTemplateLoadsAndConverts(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "nimd.toml")
	if err := WriteTemplate(path, "server", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.AdminAddr != "127.0.0.1:9092" || cfg.Timeouts.Turn != "2m" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	svc, err := cfg.ServiceConfig()
	if err != nil {
		t.Fatalf("service config: %v", err)
	}
	if svc.WebsocketListenAddr != ":9091" || svc.WebsocketPath != "/ngp" || svc.HandshakeAttempts != 3 {
		t.Fatalf("unexpected service config %+v", svc)
	}
	if svc.Session.TurnTimeout != 2*time.Minute || svc.Session.HandshakeTimeout != 30*time.Second {
		t.Fatalf("unexpected session timeouts %+v", svc.Session)
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "name = \"x\"\n")
	if err := WriteTemplate(path, "server", false); err == nil {
		t.Fatalf("expected existing file error")
	}
	if err := WriteTemplate(path, "bot", true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), `strategy = "optimal"`) {
		t.Fatalf("bot template not written: %v", err)
	}
	if _, err := Template("referee"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadServerConfigAppliesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadServerConfig(writeFile(t, "listen_addr = \"127.0.0.1:7000\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "nimd" || cfg.ListenAddr != "127.0.0.1:7000" || cfg.Timeouts.Write != "10s" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestValidateServerConfig(t *testing.T) {
	testlog.Start(t)
	cases := map[string]func(*ServerConfig){
		"missing listen":    func(c *ServerConfig) { c.ListenAddr = " " },
		"bad ws path":       func(c *ServerConfig) { c.WebsocketPath = "ngp" },
		"negative rate":     func(c *ServerConfig) { c.AcceptRate = -1 },
		"bad log level":     func(c *ServerConfig) { c.LogLevel = "loud" },
		"bad turn duration": func(c *ServerConfig) { c.Timeouts.Turn = "forever" },
		"negative duration": func(c *ServerConfig) { c.Timeouts.Write = "-1s" },
		"tls without cert":  func(c *ServerConfig) { c.TLS.Enabled = true },
	}
	for name, mutate := range cases {
		cfg := DefaultServerConfig()
		mutate(&cfg)
		if err := ValidateServerConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := ValidateServerConfig(DefaultServerConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadServerConfigParseError(t *testing.T) {
	testlog.Start(t)
	if _, err := LoadServerConfig(writeFile(t, "listen_addr = [")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected load error")
	}
}
