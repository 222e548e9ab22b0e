package lobby

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/nimctl/internal/observability"
	"github.com/gorilla/websocket"
)

// wsStream carries NGP bytes in websocket binary messages. Message
// boundaries carry no meaning; frames may span or share messages.
type wsStream struct {
	conn   *websocket.Conn
	reader io.Reader

	closeOnce sync.Once
	closeErr  error
}

func newWSStream(conn *websocket.Conn) *wsStream {
	return &wsStream{conn: conn}
}

func (w *wsStream) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			kind, r, err := w.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.BinaryMessage && kind != websocket.TextMessage {
				continue
			}
			w.reader = r
		}
		n, err := w.reader.Read(p)
		if err == io.EOF {
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsStream) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsStream) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

func (w *wsStream) SetWriteDeadline(t time.Time) error {
	return w.conn.SetWriteDeadline(t)
}

func (w *wsStream) Close() error {
	w.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}

// WebsocketHandler upgrades requests on the configured path and hands the
// resulting stream to the same handshake and pairing path as TCP players.
func (s *Service) WebsocketHandler(ctx context.Context) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WebsocketPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("lobby.ws_upgrade_failed")
			return
		}
		stream := newWSStream(conn)
		if !s.trackConn(stream) {
			_ = stream.Close()
			return
		}
		observability.RecordConnection("ws")
		s.handleStream(ctx, stream, r.RemoteAddr)
	})
	return mux
}

// checkOrigin allows same-host requests, requests without an Origin header
// and any origin listed in CORSOrigins.
func (s *Service) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
