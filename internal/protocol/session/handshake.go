package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/nimctl/internal/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/danmuck/nimctl/internal/protocol/session")

// HandleOpen applies one decoded frame to an unopened player. On success the
// name is stored, the player becomes opened and WAIT is sent. Errors carry
// the wire code to report; sending the FAIL is left to the caller.
func (p *Player) HandleOpen(msg protocol.Message) error {
	if msg.Type != protocol.TypeOpen {
		return fmt.Errorf("%w: expected OPEN, got %s", protocol.ErrInvalid, msg.Type)
	}
	if p.opened {
		return protocol.ErrAlreadyOpen
	}
	name := msg.Field(0)
	if name == "" {
		return fmt.Errorf("%w: empty name", protocol.ErrInvalid)
	}
	if len(name) > protocol.MaxNameLen {
		return fmt.Errorf("%w: %d bytes", protocol.ErrLongName, len(name))
	}
	p.name = name
	p.opened = true
	p.log = p.log.With().Str("name", name).Logger()
	p.log.Info().Msg("session.opened")
	return p.Send(protocol.Wait())
}

// Handshake reads frames until one decodes, then runs HandleOpen on it.
// Every protocol failure is answered with FAIL before returning. Bytes
// pipelined after the OPEN stay buffered for the game.
func Handshake(ctx context.Context, p *Player) (err error) {
	ctx, span := tracer.Start(ctx, "ngp.handshake")
	span.SetAttributes(attribute.String("ngp.player_id", p.id), attribute.String("ngp.remote", p.remote))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("ngp.name", p.name))
		}
		span.End()
	}()

	stop := context.AfterFunc(ctx, p.Interrupt)
	defer stop()

	msg, err := p.Next(ctx, time.Now().Add(p.cfg.HandshakeTimeout))
	if err != nil {
		if errors.Is(err, ErrDisconnected) || ctx.Err() != nil {
			return err
		}
		_ = p.SendFail(protocol.CodeOf(err))
		return err
	}
	if err := p.HandleOpen(msg); err != nil {
		if errors.Is(err, ErrDisconnected) {
			return err
		}
		_ = p.SendFail(protocol.CodeOf(err))
		return err
	}
	_ = p.stream.SetReadDeadline(time.Time{})
	return nil
}
