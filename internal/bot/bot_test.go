package bot

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/nimctl/internal/lobby"
	"github.com/danmuck/nimctl/internal/nim"
	"github.com/danmuck/nimctl/internal/protocol"
	"github.com/danmuck/nimctl/internal/testutil/testlog"
)

func startLobby(t *testing.T) (*lobby.Service, string) {
	t.Helper()
	cfg := lobby.DefaultServiceConfig()
	cfg.AcceptRate = 0
	cfg.Session.TurnTimeout = 5 * time.Second
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	svc := lobby.NewServiceWithConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return svc, ln.Addr().String()
}

func testConfig(addr, name string, strategy Strategy) Config {
	cfg := DefaultConfig()
	cfg.Address = addr
	cfg.Name = name
	cfg.Strategy = strategy
	cfg.Session.HandshakeTimeout = 3 * time.Second
	cfg.Session.Backoff.InitialDelay = 10 * time.Millisecond
	cfg.Session.Backoff.MaxDelay = 20 * time.Millisecond
	cfg.Session.Backoff.Jitter = false
	return cfg
}

type playResult struct {
	out Outcome
	err error
}

func playAsync(t *testing.T, ctx context.Context, cfg Config) <-chan playResult {
	t.Helper()
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	done := make(chan playResult, 1)
	go func() {
		out, err := client.Play(ctx)
		done <- playResult{out: out, err: err}
	}()
	return done
}

func waitWaiting(t *testing.T, svc *lobby.Service, name string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := svc.Waiting(); ok && got == name {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s never reached the lobby", name)
}

func TestOptimalBotBeatsFirstBot(t *testing.T) {
	testlog.Start(t)
	svc, addr := startLobby(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	optimal := playAsync(t, ctx, testConfig(addr, "optimal", StrategyOptimal))
	waitWaiting(t, svc, "optimal")
	first := playAsync(t, ctx, testConfig(addr, "first", StrategyFirst))

	a := <-optimal
	b := <-first
	if a.err != nil || b.err != nil {
		t.Fatalf("play errors: optimal=%v first=%v", a.err, b.err)
	}
	if a.out.Player != 1 || b.out.Player != 2 || a.out.Opponent != "first" || b.out.Opponent != "optimal" {
		t.Fatalf("unexpected seating %+v %+v", a.out, b.out)
	}
	if !a.out.Won || b.out.Won || a.out.Winner != 1 || b.out.Winner != 1 {
		t.Fatalf("optimal player 1 must win: %+v %+v", a.out, b.out)
	}
	if a.out.Forfeit || !a.out.Board.Empty() || len(a.out.Fails) != 0 {
		t.Fatalf("unexpected final state %+v", a.out)
	}
}

func TestBotRejectedForActiveName(t *testing.T) {
	testlog.Start(t)
	svc, addr := startLobby(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = playAsync(t, ctx, testConfig(addr, "twin", StrategyFirst))
	waitWaiting(t, svc, "twin")
	r := <-playAsync(t, ctx, testConfig(addr, "twin", StrategyFirst))
	if !errors.Is(r.err, ErrRejected) || !errors.Is(r.err, protocol.ErrAlreadyPlaying) {
		t.Fatalf("expected already playing rejection, got %v", r.err)
	}
}

func TestConnectAttemptsExhausted(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := testConfig(addr, "lonely", StrategyOptimal)
	cfg.MaxConnectAttempts = 2
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Play(context.Background()); !errors.Is(err, ErrConnectExhausted) {
		t.Fatalf("expected ErrConnectExhausted, got %v", err)
	}
}

func TestPlayCancelledWhileWaiting(t *testing.T) {
	testlog.Start(t)
	svc, addr := startLobby(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := playAsync(t, ctx, testConfig(addr, "patient", StrategyOptimal))
	waitWaiting(t, svc, "patient")
	cancel()
	select {
	case r := <-done:
		if !errors.Is(r.err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", r.err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("play did not stop on cancel")
	}
}

func TestNewClientValidation(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Address = ""
	if _, err := NewClient(cfg); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.Name = " "
	if _, err := NewClient(cfg); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.Strategy = "random"
	if _, err := NewClient(cfg); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestStrategies(t *testing.T) {
	board := nim.InitialBoard()
	pile, count, err := StrategyOptimal.Choose(board)
	if err != nil {
		t.Fatalf("optimal: %v", err)
	}
	if err := (&nim.Game{Piles: board, Turn: 1}).ApplyMove(pile, count); err != nil {
		t.Fatalf("optimal move illegal: %v", err)
	}
	board[pile] -= count
	if board.NimSum() != 0 {
		t.Fatalf("optimal move left nim-sum %d", board.NimSum())
	}

	pile, count, err = StrategyFirst.Choose(nim.Board{0, 0, 4, 0, 1})
	if err != nil || pile != 2 || count != 1 {
		t.Fatalf("first strategy got (%d,%d,%v)", pile, count, err)
	}
	if _, _, err := StrategyFirst.Choose(nim.Board{}); !errors.Is(err, nim.ErrNoMove) {
		t.Fatalf("expected ErrNoMove, got %v", err)
	}
	if s, err := ParseStrategy(" FIRST "); err != nil || s != StrategyFirst {
		t.Fatalf("parse strategy got %q %v", s, err)
	}
}
