package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/nimctl/internal/observability"
	"github.com/danmuck/nimctl/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrDisconnected = errors.New("session: peer disconnected")

// Stream is the byte transport of one connection. net.Conn satisfies it.
type Stream interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Player is one connection's NGP state.
type Player struct {
	id      string
	remote  string
	stream  Stream
	cfg     Config
	buf     *protocol.Buffer
	log     zerolog.Logger
	name    string
	opened  bool
	number  int
	playing bool

	// inflight is a read started by Park that has not been consumed yet.
	inflight chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// NewPlayer wraps stream. remote is used for logging only.
func NewPlayer(stream Stream, remote string, cfg Config) *Player {
	cfg = cfg.WithDefaults()
	id := uuid.NewString()
	return &Player{
		id:     id,
		remote: remote,
		stream: stream,
		cfg:    cfg,
		buf:    protocol.NewBuffer(cfg.MaxBuffered),
		log:    log.With().Str("player_id", id).Str("remote", remote).Logger(),
	}
}

// Accessors. Like the rest of Player they are not safe for concurrent use.

func (p *Player) ID() string { return p.id }
func (p *Player) Remote() string { return p.remote }
func (p *Player) Name() string { return p.name }
func (p *Player) Opened() bool { return p.opened }
func (p *Player) Number() int { return p.number }
func (p *Player) Playing() bool { return p.playing }
func (p *Player) Buffer() *protocol.Buffer { return p.buf }
func (p *Player) Stream() Stream { return p.stream }
func (p *Player) Logger() *zerolog.Logger { return &p.log }
func (p *Player) Config() Config { return p.cfg }
func (p *Player) SetPlaying(playing bool) { p.playing = playing }

// SetNumber assigns the seat (1 or 2) for the coming game.
func (p *Player) SetNumber(n int) {
	p.number = n
	p.log = p.log.With().Int("player", n).Logger()
}

// Send encodes and writes msg under the write timeout.
func (p *Player) Send(msg protocol.Message) error {
	_ = p.stream.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
	if err := protocol.WriteMessage(p.stream, msg); err != nil {
		if errors.Is(err, protocol.ErrUnknownType) || errors.Is(err, protocol.ErrFieldCount) ||
			errors.Is(err, protocol.ErrContentTooLong) || errors.Is(err, protocol.ErrDelimiterInField) {
			return err
		}
		return fmt.Errorf("%w: write %s: %v", ErrDisconnected, msg.Type, err)
	}
	p.log.Debug().Str("type", msg.Type.String()).Strs("fields", msg.Fields).Msg("session.send")
	return nil
}

// SendFail reports code to the peer.
func (p *Player) SendFail(code protocol.ErrorCode) error {
	observability.RecordFailFrame(int(code))
	p.log.Info().Int("code", int(code)).Msg("session.fail")
	return p.Send(protocol.Fail(code))
}

// Next returns the next complete frame, reading from the stream only when
// the buffer holds no complete frame. A zero deadline disables the read
// timeout. Decode failures carry a protocol.ErrorCode; transport failures
// wrap ErrDisconnected.
func (p *Player) Next(ctx context.Context, deadline time.Time) (protocol.Message, error) {
	for {
		msg, ok, err := p.buf.Next()
		if err != nil {
			return protocol.Message{}, err
		}
		if ok {
			p.log.Debug().Str("type", msg.Type.String()).Strs("fields", msg.Fields).Msg("session.recv")
			return msg, nil
		}
		if err := ctx.Err(); err != nil {
			return protocol.Message{}, err
		}
		_ = p.stream.SetReadDeadline(deadline)
		n, err := p.read()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return protocol.Message{}, ctxErr
			}
			if errors.Is(err, protocol.ErrBufferOverflow) {
				return protocol.Message{}, fmt.Errorf("%w: %v", protocol.ErrInvalid, err)
			}
			if n == 0 || !errors.Is(err, io.EOF) {
				return protocol.Message{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
			}
		}
	}
}

// read appends one chunk to the buffer, finishing a read left in flight by
// Park before touching the stream again.
func (p *Player) read() (int, error) {
	if p.inflight == nil {
		return p.buf.ReadFrom(p.stream, p.cfg.ReadChunk)
	}
	r := <-p.inflight
	p.inflight = nil
	if err := p.buf.Feed(r.data); err != nil {
		return 0, err
	}
	return len(r.data), r.err
}

// Park keeps reading while the player has no game, so a peer that goes
// away is noticed. Received bytes stay buffered for the next Next call. It
// returns nil once ctx is done, leaving any pending read for Next to finish,
// and a wrapped ErrDisconnected when the peer closes or the stream fails.
func (p *Player) Park(ctx context.Context) error {
	_ = p.stream.SetReadDeadline(time.Time{})
	for {
		if p.inflight == nil {
			ch := make(chan readResult, 1)
			p.inflight = ch
			go func() {
				data := make([]byte, p.cfg.ReadChunk)
				n, err := p.stream.Read(data)
				ch <- readResult{data: data[:n], err: err}
			}()
		}
		select {
		case <-ctx.Done():
			return nil
		case r := <-p.inflight:
			p.inflight = nil
			if err := p.buf.Feed(r.data); err != nil {
				return fmt.Errorf("%w: %v", ErrDisconnected, err)
			}
			if r.err != nil {
				return fmt.Errorf("%w: %v", ErrDisconnected, r.err)
			}
		}
	}
}

// Close releases the stream.
func (p *Player) Close() error {
	return p.stream.Close()
}

// Interrupt unblocks a pending read. Used on cancellation.
func (p *Player) Interrupt() {
	_ = p.stream.SetReadDeadline(time.Now())
}
