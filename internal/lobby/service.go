package lobby

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/nimctl/internal/match"
	"github.com/danmuck/nimctl/internal/observability"
	"github.com/danmuck/nimctl/internal/protocol"
	"github.com/danmuck/nimctl/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var ErrNameTaken = errors.New("lobby: name already waiting or playing")

// ServiceConfig is the lobby listener and pairing configuration.
type ServiceConfig struct {
	ListenAddr          string
	WebsocketListenAddr string
	WebsocketPath       string
	AdminListenAddr     string
	AdminToken          string
	CORSOrigins         []string
	AcceptRate          float64
	AcceptBurst         int
	HandshakeAttempts   int
	Session             session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:        ":9090",
		WebsocketPath:     "/ngp",
		AcceptRate:        50,
		AcceptBurst:       20,
		HandshakeAttempts: 3,
		Session:           session.DefaultConfig(),
	}
}

// LobbySnapshot is the pairing state exposed on the admin API.
type LobbySnapshot struct {
	Waiting     string   `json:"waiting,omitempty"`
	ActiveNames []string `json:"active_names"`
	Connections int      `json:"connections"`
	Sessions    int      `json:"sessions"`
}

type Service struct {
	cfg     ServiceConfig
	limiter *rate.Limiter
	log     zerolog.Logger
	started time.Time

	connsMu sync.Mutex
	conns   map[io.Closer]struct{}

	mu       sync.Mutex
	waiting  *waiter
	names    map[string]struct{}
	sessions map[string]*match.Session
	results  []match.Result

	games sync.WaitGroup
}

// waiter is the parked player and the handle that stops its idle reader.
type waiter struct {
	player *session.Player
	stop   context.CancelFunc
	done   chan struct{}
}

// maxResults bounds the finished-game history kept for the admin API.
const maxResults = 64

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if strings.TrimSpace(cfg.WebsocketPath) == "" {
		cfg.WebsocketPath = def.WebsocketPath
	}
	if cfg.HandshakeAttempts <= 0 {
		cfg.HandshakeAttempts = def.HandshakeAttempts
	}
	cfg.Session = cfg.Session.WithDefaults()

	limit := rate.Inf
	if cfg.AcceptRate > 0 {
		limit = rate.Limit(cfg.AcceptRate)
	}
	burst := cfg.AcceptBurst
	if burst <= 0 {
		burst = 1
	}
	return &Service{
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		log:      log.With().Str("component", "lobby").Logger(),
		started:  time.Now(),
		conns:    make(map[io.Closer]struct{}),
		names:    make(map[string]struct{}),
		sessions: make(map[string]*match.Session),
	}
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Run listens on every configured address and blocks until ctx is done or
// a listener fails. Running games are waited for before returning.
func (s *Service) Run(ctx context.Context) error {
	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Bool("tls", s.cfg.Session.TLS.Enabled).Msg("lobby.listening")

	errs := make(chan error, 3)
	running := 1
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		running++
		go func() {
			errs <- s.serveHTTP(ctx, addr, s.AdminHandler(), "admin")
		}()
	}
	if addr := strings.TrimSpace(s.cfg.WebsocketListenAddr); addr != "" {
		running++
		go func() {
			errs <- s.serveHTTP(ctx, addr, s.WebsocketHandler(ctx), "websocket")
		}()
	}
	go func() {
		errs <- s.Serve(ctx, ln)
	}()

	err = <-errs
	cancel()
	for i := 1; i < running; i++ {
		if more := <-errs; more != nil && err == nil {
			err = more
		}
	}
	s.games.Wait()
	return err
}

func (s *Service) listen() (net.Listener, error) {
	if !s.cfg.Session.TLS.Enabled {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}
	tlsCfg, err := s.cfg.Session.ServerTLSConfig()
	if err != nil {
		return nil, err
	}
	return tls.Listen("tcp", s.cfg.ListenAddr, tlsCfg)
}

// Serve runs the rate-limited accept loop on ln until ctx is done. Every
// tracked connection is closed on shutdown.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return err
	}
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() {
		s.closeAllConns()
		_ = ln.Close()
	})
	defer stop()

	transport := "tcp"
	if s.cfg.Session.TLS.Enabled {
		transport = "tls"
	}
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !s.trackConn(conn) {
			_ = conn.Close()
			return nil
		}
		observability.RecordConnection(transport)
		go s.handleStream(ctx, conn, conn.RemoteAddr().String())
	}
}

// handleStream owns one connection until it is handed to a game or dropped.
func (s *Service) handleStream(ctx context.Context, stream session.Stream, remote string) {
	p := session.NewPlayer(stream, remote, s.cfg.Session)
	p.Logger().Info().Msg("lobby.connected")

	if err := s.handshake(ctx, p); err != nil {
		p.Logger().Info().Err(err).Msg("lobby.handshake_failed")
		s.drop(p)
		return
	}

	opponent, err := s.enqueue(ctx, p)
	if err != nil {
		p.Logger().Info().Err(err).Msg("lobby.rejected")
		_ = p.SendFail(protocol.CodeAlreadyPlaying)
		s.drop(p)
		return
	}
	if opponent == nil {
		p.Logger().Info().Msg("lobby.waiting")
		return
	}
	opponent.stop()
	<-opponent.done
	s.startMatch(ctx, opponent.player, p)
}

// handshake retries OPEN after a FAIL, discarding whatever the peer had
// buffered, until it succeeds or HandshakeAttempts is used up.
func (s *Service) handshake(ctx context.Context, p *session.Player) error {
	var err error
	for attempt := 1; attempt <= s.cfg.HandshakeAttempts; attempt++ {
		err = session.Handshake(ctx, p)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, session.ErrDisconnected) {
			return err
		}
		p.Buffer().Reset()
	}
	return fmt.Errorf("lobby: handshake gave up after %d attempts: %w", s.cfg.HandshakeAttempts, err)
}

// enqueue claims p's name and either parks p as the waiting player or
// returns the waiter it should be paired with. The caller must stop the
// returned waiter and wait for it before using its player.
func (s *Service) enqueue(ctx context.Context, p *session.Player) (*waiter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.names[p.Name()]; taken {
		return nil, fmt.Errorf("%w: %q", ErrNameTaken, p.Name())
	}
	s.names[p.Name()] = struct{}{}
	if s.waiting == nil {
		parkCtx, stop := context.WithCancel(ctx)
		w := &waiter{player: p, stop: stop, done: make(chan struct{})}
		s.waiting = w
		go s.park(parkCtx, w)
		return nil, nil
	}
	opponent := s.waiting
	s.waiting = nil
	return opponent, nil
}

// park watches the waiting player's stream until it is paired or the peer
// goes away. A departed player releases its name and its slot.
func (s *Service) park(ctx context.Context, w *waiter) {
	defer close(w.done)
	err := w.player.Park(ctx)

	s.mu.Lock()
	if s.waiting != w {
		s.mu.Unlock()
		return
	}
	s.waiting = nil
	delete(s.names, w.player.Name())
	s.mu.Unlock()
	w.stop()

	w.player.Logger().Info().Err(err).Msg("lobby.waiting_left")
	s.drop(w.player)
}

func (s *Service) startMatch(ctx context.Context, p1, p2 *session.Player) {
	id := uuid.NewString()
	game, err := match.New(id, p1, p2, s.cfg.Session)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("lobby.match_refused")
		s.mu.Lock()
		delete(s.names, p1.Name())
		delete(s.names, p2.Name())
		s.mu.Unlock()
		s.drop(p1)
		s.drop(p2)
		return
	}

	s.mu.Lock()
	s.sessions[id] = game
	s.mu.Unlock()

	s.games.Add(1)
	go func() {
		defer s.games.Done()
		res, err := game.Run(ctx)
		if err != nil {
			s.log.Info().Err(err).Str("session_id", id).Msg("lobby.match_interrupted")
		}

		s.mu.Lock()
		delete(s.sessions, id)
		delete(s.names, p1.Name())
		delete(s.names, p2.Name())
		if err == nil {
			s.results = append(s.results, res)
			if len(s.results) > maxResults {
				s.results = s.results[len(s.results)-maxResults:]
			}
		}
		s.mu.Unlock()
		s.untrackConn(p1.Stream())
		s.untrackConn(p2.Stream())
	}()
}

// drop closes a player that never reached a game.
func (s *Service) drop(p *session.Player) {
	_ = p.Close()
	s.untrackConn(p.Stream())
}

// Sessions lists the running games ordered by start time.
func (s *Service) Sessions() []match.Info {
	s.mu.Lock()
	games := make([]*match.Session, 0, len(s.sessions))
	for _, g := range s.sessions {
		games = append(games, g)
	}
	s.mu.Unlock()

	out := make([]match.Info, 0, len(games))
	for _, g := range games {
		out = append(out, g.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Results returns the most recent finished games, oldest first.
func (s *Service) Results() []match.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]match.Result(nil), s.results...)
}

// Waiting returns the name of the player waiting for an opponent.
func (s *Service) Waiting() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting == nil {
		return "", false
	}
	return s.waiting.player.Name(), true
}

// ActiveNames returns every name currently waiting or playing, sorted.
func (s *Service) ActiveNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) Snapshot() LobbySnapshot {
	waiting, _ := s.Waiting()
	snap := LobbySnapshot{
		Waiting:     waiting,
		ActiveNames: s.ActiveNames(),
		Connections: s.connectionCount(),
	}
	s.mu.Lock()
	snap.Sessions = len(s.sessions)
	s.mu.Unlock()
	return snap
}

// trackConn reports false once shutdown has closed the tracking set.
func (s *Service) trackConn(c io.Closer) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Service) untrackConn(c io.Closer) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.conns != nil {
		delete(s.conns, c)
	}
}

func (s *Service) connectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	conns := s.conns
	s.conns = nil
	s.connsMu.Unlock()
	for c := range conns {
		_ = c.Close()
	}
}
