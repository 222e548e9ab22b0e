package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server", "nimd":
		return serverTemplate, nil
	case "bot", "nimbot":
		return botTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `name = "nimd"
listen_addr = ":9090"
websocket_addr = ":9091"
websocket_path = "/ngp"
admin_addr = "127.0.0.1:9092"
admin_token = ""
cors_origins = ["http://localhost:3000"]
log_level = "info"
accept_rate = 50.0
accept_burst = 20
handshake_attempts = 3

[timeouts]
handshake = "30s"
turn = "2m"
write = "10s"

[tls]
enabled = false
cert_file = ""
key_file = ""
`

const botTemplate = `addr = "127.0.0.1:9090"
name = "nimbot"
strategy = "optimal"
games = 1
think_ms = 0
log_level = "info"

[timeouts]
connect_ms = 5000
turn_ms = 120000
write_ms = 10000

[retry]
max_attempts = 5
initial_delay_ms = 250
max_delay_ms = 5000
multiplier = 2.0
jitter = true

[tls]
enabled = false
ca_file = ""
server_name = ""
insecure_skip_verify = false
`
