package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/nimctl/internal/logging"
	"github.com/pelletier/go-toml/v2"
)

// ServerConfig is the nimd TOML file shape. Durations are Go duration strings.
type ServerConfig struct {
	Name              string        `toml:"name"`
	ListenAddr        string        `toml:"listen_addr"`
	WebsocketAddr     string        `toml:"websocket_addr"`
	WebsocketPath     string        `toml:"websocket_path"`
	AdminAddr         string        `toml:"admin_addr"`
	AdminToken        string        `toml:"admin_token"`
	CorsOrigins       []string      `toml:"cors_origins"`
	LogLevel          string        `toml:"log_level"`
	AcceptRate        float64       `toml:"accept_rate"`
	AcceptBurst       int           `toml:"accept_burst"`
	HandshakeAttempts int           `toml:"handshake_attempts"`
	Timeouts          TimeoutConfig `toml:"timeouts"`
	TLS               TLSConfig     `toml:"tls"`
}

type TimeoutConfig struct {
	Handshake string `toml:"handshake"`
	Turn      string `toml:"turn"`
	Write     string `toml:"write"`
}

type TLSConfig struct {
	Enabled  bool   `toml:"enabled"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:              "nimd",
		ListenAddr:        ":9090",
		WebsocketPath:     "/ngp",
		LogLevel:          "info",
		AcceptRate:        50,
		AcceptBurst:       20,
		HandshakeAttempts: 3,
		Timeouts: TimeoutConfig{
			Handshake: "30s",
			Turn:      "2m",
			Write:     "10s",
		},
	}
}

func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("server config missing listen_addr")
	}
	if path := strings.TrimSpace(cfg.WebsocketPath); path != "" && !strings.HasPrefix(path, "/") {
		return fmt.Errorf("websocket_path must start with /: %q", cfg.WebsocketPath)
	}
	if cfg.AcceptRate < 0 {
		return fmt.Errorf("accept_rate must be >= 0")
	}
	if cfg.AcceptBurst < 0 {
		return fmt.Errorf("accept_burst must be >= 0")
	}
	if cfg.HandshakeAttempts < 0 {
		return fmt.Errorf("handshake_attempts must be >= 0")
	}
	if raw := strings.TrimSpace(cfg.LogLevel); raw != "" {
		if _, ok := logging.ParseLevel(raw); !ok {
			return fmt.Errorf("log_level invalid: %q", cfg.LogLevel)
		}
	}
	for key, raw := range map[string]string{
		"timeouts.handshake": cfg.Timeouts.Handshake,
		"timeouts.turn":      cfg.Timeouts.Turn,
		"timeouts.write":     cfg.Timeouts.Write,
	} {
		if _, err := parseDuration(raw); err != nil {
			return fmt.Errorf("%s invalid: %w", key, err)
		}
	}
	if cfg.TLS.Enabled {
		if strings.TrimSpace(cfg.TLS.CertFile) == "" {
			return fmt.Errorf("tls.cert_file required when tls is enabled")
		}
		if strings.TrimSpace(cfg.TLS.KeyFile) == "" {
			return fmt.Errorf("tls.key_file required when tls is enabled")
		}
	}
	return nil
}

// parseDuration treats an empty string as unset.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}
