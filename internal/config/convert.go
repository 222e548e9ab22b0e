package config

import (
	"strings"
	"time"

	"github.com/danmuck/nimctl/internal/lobby"
	"github.com/danmuck/nimctl/internal/protocol/session"
)

// ServiceConfig maps a validated file config onto the lobby runtime config.
// Unset values keep the lobby defaults.
func (c ServerConfig) ServiceConfig() (lobby.ServiceConfig, error) {
	out := lobby.DefaultServiceConfig()
	out.ListenAddr = strings.TrimSpace(c.ListenAddr)
	out.WebsocketListenAddr = strings.TrimSpace(c.WebsocketAddr)
	out.AdminListenAddr = strings.TrimSpace(c.AdminAddr)
	out.AdminToken = strings.TrimSpace(c.AdminToken)
	out.CORSOrigins = c.CorsOrigins
	out.AcceptRate = c.AcceptRate
	if c.AcceptBurst > 0 {
		out.AcceptBurst = c.AcceptBurst
	}
	if c.HandshakeAttempts > 0 {
		out.HandshakeAttempts = c.HandshakeAttempts
	}
	if path := strings.TrimSpace(c.WebsocketPath); path != "" {
		out.WebsocketPath = path
	}

	var err error
	if out.Session.HandshakeTimeout, err = durationOr(c.Timeouts.Handshake, out.Session.HandshakeTimeout); err != nil {
		return lobby.ServiceConfig{}, err
	}
	if out.Session.TurnTimeout, err = durationOr(c.Timeouts.Turn, out.Session.TurnTimeout); err != nil {
		return lobby.ServiceConfig{}, err
	}
	if out.Session.WriteTimeout, err = durationOr(c.Timeouts.Write, out.Session.WriteTimeout); err != nil {
		return lobby.ServiceConfig{}, err
	}
	out.Session.TLS = session.TLSConfig{
		Enabled:  c.TLS.Enabled,
		CertFile: strings.TrimSpace(c.TLS.CertFile),
		KeyFile:  strings.TrimSpace(c.TLS.KeyFile),
	}
	return out, nil
}

func durationOr(raw string, fallback time.Duration) (time.Duration, error) {
	d, err := parseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return fallback, nil
	}
	return d, nil
}
