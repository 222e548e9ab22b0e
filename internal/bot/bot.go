// Package bot is an NGP client that plays Nim against a nimd server.
package bot

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/danmuck/nimctl/internal/nim"
	"github.com/danmuck/nimctl/internal/protocol"
	"github.com/danmuck/nimctl/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrAddressRequired  = errors.New("bot: address required")
	ErrNameRequired     = errors.New("bot: name required")
	ErrUnknownStrategy  = errors.New("bot: unknown strategy")
	ErrRejected         = errors.New("bot: server rejected player")
	ErrUnexpectedFrame  = errors.New("bot: unexpected frame")
	ErrTooManyFailures  = errors.New("bot: too many rejected moves")
	ErrConnectExhausted = errors.New("bot: connect attempts exhausted")
)

// maxMoveFailures bounds consecutive FAIL replies to our own moves.
const maxMoveFailures = 3

type Strategy string

const (
	StrategyOptimal Strategy = "optimal"
	StrategyFirst   Strategy = "first"
)

func ParseStrategy(raw string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(raw))); s {
	case StrategyOptimal, StrategyFirst:
		return s, nil
	case "":
		return StrategyOptimal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, raw)
	}
}

// Choose picks the next move for b.
func (s Strategy) Choose(b nim.Board) (pile, count int, err error) {
	if s == StrategyFirst {
		return b.FirstMove()
	}
	return b.WinningMove()
}

type Config struct {
	Address            string
	Name               string
	Strategy           Strategy
	Games              int
	Think              time.Duration
	MaxConnectAttempts int
	Session            session.Config
}

func DefaultConfig() Config {
	return Config{
		Address:            "127.0.0.1:9090",
		Name:               "nimbot",
		Strategy:           StrategyOptimal,
		Games:              1,
		MaxConnectAttempts: 5,
		Session:            session.DefaultConfig(),
	}
}

// Outcome is one finished game from the bot's seat.
type Outcome struct {
	Player   int
	Opponent string
	Winner   int
	Won      bool
	Forfeit  bool
	Board    nim.Board
	Moves    int
	Fails    []protocol.ErrorCode
}

type Client struct {
	cfg Config
	rng *rand.Rand
	log zerolog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, ErrNameRequired
	}
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	cfg.Strategy = strategy
	if cfg.Games <= 0 {
		cfg.Games = 1
	}
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Session.ValidateClientTransport(); err != nil {
		return nil, err
	}
	return &Client{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: log.With().Str("component", "bot").Str("name", cfg.Name).Logger(),
	}, nil
}

// Run plays cfg.Games games back to back over fresh connections.
func (c *Client) Run(ctx context.Context) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, c.cfg.Games)
	for i := 0; i < c.cfg.Games; i++ {
		out, err := c.Play(ctx)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// Play connects, opens and plays a single game to its OVER frame.
func (c *Client) Play(ctx context.Context) (Outcome, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return Outcome{}, err
	}
	p := session.NewPlayer(conn, c.cfg.Address, c.cfg.Session)
	defer p.Close()
	stop := context.AfterFunc(ctx, func() { _ = p.Close() })
	defer stop()

	if err := c.open(ctx, p); err != nil {
		return Outcome{}, err
	}
	return c.play(ctx, p)
}

func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt).Str("addr", c.cfg.Address).Msg("bot.dial_failed")
		if c.cfg.MaxConnectAttempts > 0 && attempt >= c.cfg.MaxConnectAttempts {
			return nil, fmt.Errorf("%w: %v", ErrConnectExhausted, lastErr)
		}
		if err := c.cfg.Session.Backoff.Wait(ctx, attempt, c.rng); err != nil {
			return nil, err
		}
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.Session.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, err
	}
	tlsCfg, err := c.cfg.Session.ClientTLSConfig()
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	if tlsCfg == nil {
		return rawConn, nil
	}
	if tlsCfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(c.cfg.Address); err == nil {
			tlsCfg.ServerName = host
		}
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, c.cfg.Session.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

// open sends OPEN and waits for WAIT.
func (c *Client) open(ctx context.Context, p *session.Player) error {
	if err := p.Send(protocol.Open(c.cfg.Name)); err != nil {
		return err
	}
	msg, err := p.Next(ctx, time.Now().Add(c.cfg.Session.HandshakeTimeout))
	if err != nil {
		return c.ctxErr(ctx, err)
	}
	switch msg.Type {
	case protocol.TypeWait:
		c.log.Info().Msg("bot.waiting")
		return nil
	case protocol.TypeFail:
		code, _ := msg.FailCode()
		return fmt.Errorf("%w: %w", ErrRejected, code)
	default:
		return fmt.Errorf("%w: %s during handshake", ErrUnexpectedFrame, msg.Type)
	}
}

func (c *Client) play(ctx context.Context, p *session.Player) (Outcome, error) {
	var (
		out      Outcome
		board    nim.Board
		myTurn   bool
		failures int
	)
	for {
		// No read deadline: waiting for an opponent has no upper bound.
		msg, err := p.Next(ctx, time.Time{})
		if err != nil {
			return out, c.ctxErr(ctx, err)
		}

		switch msg.Type {
		case protocol.TypeName:
			n, err := msg.Player()
			if err != nil {
				return out, fmt.Errorf("%w: NAME %q", ErrUnexpectedFrame, msg.Fields)
			}
			out.Player = n
			out.Opponent = msg.Field(1)
			c.log.Info().Int("player", n).Str("opponent", out.Opponent).Msg("bot.paired")

		case protocol.TypePlay:
			turn, err := msg.Player()
			if err != nil {
				return out, fmt.Errorf("%w: PLAY %q", ErrUnexpectedFrame, msg.Fields)
			}
			if board, err = nim.ParseBoard(msg.Field(1)); err != nil {
				return out, err
			}
			failures = 0
			myTurn = turn == out.Player
			if myTurn {
				if err := c.move(ctx, p, board, c.cfg.Strategy); err != nil {
					return out, err
				}
				out.Moves++
			}

		case protocol.TypeFail:
			code, _ := msg.FailCode()
			out.Fails = append(out.Fails, code)
			c.log.Warn().Int("code", int(code)).Msg("bot.fail")
			if !myTurn {
				return out, fmt.Errorf("%w: %w", ErrRejected, code)
			}
			failures++
			if failures >= maxMoveFailures {
				return out, ErrTooManyFailures
			}
			// Fall back to the simplest legal move on the last known board.
			if err := c.move(ctx, p, board, StrategyFirst); err != nil {
				return out, err
			}

		case protocol.TypeOver:
			winner, err := msg.Player()
			if err != nil {
				return out, fmt.Errorf("%w: OVER %q", ErrUnexpectedFrame, msg.Fields)
			}
			out.Winner = winner
			out.Won = winner == out.Player
			out.Forfeit = msg.Forfeit()
			out.Board, _ = nim.ParseBoard(msg.Field(1))
			c.log.Info().
				Int("winner", winner).
				Bool("won", out.Won).
				Bool("forfeit", out.Forfeit).
				Int("moves", out.Moves).
				Msg("bot.over")
			return out, nil

		default:
			return out, fmt.Errorf("%w: %s", ErrUnexpectedFrame, msg.Type)
		}
	}
}

func (c *Client) move(ctx context.Context, p *session.Player, board nim.Board, strategy Strategy) error {
	pile, count, err := strategy.Choose(board)
	if err != nil {
		return err
	}
	if c.cfg.Think > 0 {
		timer := time.NewTimer(c.cfg.Think)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.log.Debug().Int("pile", pile).Int("count", count).Str("board", board.String()).Msg("bot.move")
	return p.Send(protocol.Move(pile, count))
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
