package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/nimctl/internal/nim"
	"github.com/danmuck/nimctl/internal/observability"
	"github.com/danmuck/nimctl/internal/protocol"
	"github.com/danmuck/nimctl/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotOpened  = errors.New("match: player has not completed OPEN")
	ErrPlayerBusy = errors.New("match: player already in a session")
	ErrSamePlayer = errors.New("match: player paired with itself")
)

const (
	OutcomeWin       = "win"
	OutcomeForfeit   = "forfeit"
	OutcomeCancelled = "cancelled"
)

var tracer = otel.Tracer("github.com/danmuck/nimctl/internal/match")

// Result describes how a session ended. Winner is 0 when the session was
// cancelled before a winner was decided.
type Result struct {
	SessionID  string
	Winner     int
	WinnerName string
	Forfeit    bool
	Board      nim.Board
	Moves      int
	Duration   time.Duration
	Cause      error
}

// Info is a point-in-time view of a running session.
type Info struct {
	ID        string    `json:"id"`
	Players   [2]string `json:"players"`
	Board     string    `json:"board"`
	Turn      int       `json:"turn"`
	Moves     int       `json:"moves"`
	StartedAt time.Time `json:"started_at"`
}

type Session struct {
	id      string
	players [2]*session.Player
	cfg     session.Config
	log     zerolog.Logger

	game    nim.Game
	moves   int
	started time.Time

	mu   sync.Mutex
	info Info
}

// New seats p1 as player 1 and p2 as player 2. Both must be opened and idle.
// Identical names are refused with FAIL 22 sent to both players.
func New(id string, p1, p2 *session.Player, cfg session.Config) (*Session, error) {
	if p1 == p2 {
		return nil, ErrSamePlayer
	}
	for _, p := range []*session.Player{p1, p2} {
		if !p.Opened() || p.Name() == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotOpened, p.Remote())
		}
		if p.Playing() {
			return nil, fmt.Errorf("%w: %s", ErrPlayerBusy, p.Name())
		}
	}
	if p1.Name() == p2.Name() {
		_ = p1.SendFail(protocol.CodeAlreadyPlaying)
		_ = p2.SendFail(protocol.CodeAlreadyPlaying)
		return nil, fmt.Errorf("%w: both players named %q", protocol.ErrAlreadyPlaying, p1.Name())
	}

	p1.SetNumber(1)
	p2.SetNumber(2)
	p1.SetPlaying(true)
	p2.SetPlaying(true)

	s := &Session{
		id:      id,
		players: [2]*session.Player{p1, p2},
		cfg:     cfg.WithDefaults(),
		log: log.With().
			Str("session_id", id).
			Str("player1", p1.Name()).
			Str("player2", p2.Name()).
			Logger(),
		game: nim.NewGame(),
	}
	s.info = Info{
		ID:      id,
		Players: [2]string{p1.Name(), p2.Name()},
		Board:   s.game.Piles.String(),
		Turn:    s.game.Turn,
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Info returns the latest published state. Safe from any goroutine.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *Session) publish() {
	s.mu.Lock()
	s.info.Board = s.game.Piles.String()
	s.info.Turn = s.game.Turn
	s.info.Moves = s.moves
	s.info.StartedAt = s.started
	s.mu.Unlock()
}

func (s *Session) player(n int) *session.Player {
	return s.players[n-1]
}

// Run plays the game to completion. Both streams are closed on return.
// A forfeit or a win returns a nil error; cancellation returns ctx.Err().
func (s *Session) Run(ctx context.Context) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "ngp.session", trace.WithAttributes(
		attribute.String("ngp.session_id", s.id),
		attribute.String("ngp.player1", s.players[0].Name()),
		attribute.String("ngp.player2", s.players[1].Name()),
	))
	s.started = time.Now()
	s.publish()
	observability.SessionStarted()
	s.log.Info().Msg("match.start")

	stop := context.AfterFunc(ctx, s.closeStreams)
	defer func() {
		stop()
		s.closeStreams()
		for _, p := range s.players {
			p.SetPlaying(false)
		}

		res.SessionID = s.id
		res.Board = s.game.Piles
		res.Moves = s.moves
		res.Duration = time.Since(s.started)
		if res.Winner != 0 {
			res.WinnerName = s.player(res.Winner).Name()
		}

		outcome := OutcomeWin
		switch {
		case err != nil:
			outcome = OutcomeCancelled
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res.Forfeit:
			outcome = OutcomeForfeit
		}
		observability.SessionEnded(outcome, res.Duration)
		span.SetAttributes(
			attribute.String("ngp.outcome", outcome),
			attribute.Int("ngp.winner", res.Winner),
			attribute.Int("ngp.moves", res.Moves),
		)
		span.End()

		event := s.log.Info()
		if res.Cause != nil {
			event = event.AnErr("cause", res.Cause)
		}
		event.
			Str("outcome", outcome).
			Int("winner", res.Winner).
			Str("board", res.Board.String()).
			Int("moves", res.Moves).
			Dur("duration", res.Duration).
			Msg("match.end")
	}()

	if loser, err := s.start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return s.forfeit(loser, err), nil
	}

	for !s.game.IsOver() {
		current := s.player(s.game.Turn)
		msg, err := current.Next(ctx, s.turnDeadline())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			if !errors.Is(err, session.ErrDisconnected) {
				observability.RecordMove("invalid")
				_ = current.SendFail(protocol.CodeOf(err))
			}
			return s.forfeit(current.Number(), err), nil
		}

		if loser, err := s.handle(current, msg); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			return s.forfeit(loser, err), nil
		}
	}

	winner := nim.Opponent(s.game.Turn)
	s.broadcastOver(protocol.Over(winner, s.game.Piles.String(), false))
	return Result{Winner: winner}, nil
}

// start sends NAME to each player, then the opening PLAY to both. On a
// failed write it returns the number of the player that could not be reached.
func (s *Session) start() (int, error) {
	for _, p := range s.players {
		opponent := s.player(nim.Opponent(p.Number()))
		if err := p.Send(protocol.Name(p.Number(), opponent.Name())); err != nil {
			return p.Number(), err
		}
	}
	return s.broadcast(protocol.Play(s.game.Turn, s.game.Piles.String()))
}

// handle applies one frame from the current player. Recoverable mistakes are
// answered with FAIL and leave the turn unchanged. A non-nil error means the
// returned player number could not be written to.
func (s *Session) handle(current *session.Player, msg protocol.Message) (int, error) {
	if msg.Type != protocol.TypeMove {
		observability.RecordMove("invalid")
		current.Logger().Info().Str("type", msg.Type.String()).Msg("match.unexpected_frame")
		return s.reject(current, protocol.CodeInvalid)
	}
	pile, count, err := msg.MoveArgs()
	if err != nil {
		observability.RecordMove("invalid")
		return s.reject(current, protocol.CodeInvalid)
	}
	if err := s.game.ApplyMove(pile, count); err != nil {
		observability.RecordMove("rejected")
		current.Logger().Info().Err(err).Int("pile", pile).Int("count", count).Msg("match.move_rejected")
		return s.reject(current, engineCode(err))
	}

	s.moves++
	s.publish()
	observability.RecordMove("accepted")
	current.Logger().Debug().
		Int("pile", pile).
		Int("count", count).
		Str("board", s.game.Piles.String()).
		Msg("match.move")

	if s.game.IsOver() {
		return 0, nil
	}
	return s.broadcast(protocol.Play(s.game.Turn, s.game.Piles.String()))
}

func (s *Session) reject(p *session.Player, code protocol.ErrorCode) (int, error) {
	if err := p.SendFail(code); err != nil {
		return p.Number(), err
	}
	return 0, nil
}

// forfeit ends the game in favour of loser's opponent.
func (s *Session) forfeit(loser int, cause error) Result {
	winner := nim.Opponent(loser)
	s.log.Info().Int("loser", loser).Err(cause).Msg("match.forfeit")
	s.broadcastOver(protocol.Over(winner, s.game.Piles.String(), true))
	return Result{Winner: winner, Forfeit: true, Cause: cause}
}

func (s *Session) broadcast(msg protocol.Message) (int, error) {
	for _, p := range s.players {
		if err := p.Send(msg); err != nil {
			return p.Number(), err
		}
	}
	return 0, nil
}

// broadcastOver writes msg to both players, ignoring peers that are gone.
func (s *Session) broadcastOver(msg protocol.Message) {
	for _, p := range s.players {
		if err := p.Send(msg); err != nil {
			p.Logger().Debug().Err(err).Msg("match.over_undelivered")
		}
	}
}

func (s *Session) turnDeadline() time.Time {
	if s.cfg.TurnTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.cfg.TurnTimeout)
}

func (s *Session) closeStreams() {
	for _, p := range s.players {
		_ = p.Close()
	}
}

func engineCode(err error) protocol.ErrorCode {
	switch {
	case errors.Is(err, nim.ErrPileIndex):
		return protocol.CodePileIndex
	case errors.Is(err, nim.ErrQuantity):
		return protocol.CodeQuantity
	default:
		return protocol.CodeInvalid
	}
}
