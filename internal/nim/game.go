// Package nim owns the stone pile state machine. It performs no I/O.
package nim

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const PileCount = 5

var (
	ErrPileIndex = errors.New("nim: pile index out of range")
	ErrQuantity  = errors.New("nim: invalid quantity")
	ErrBadBoard  = errors.New("nim: malformed board")
	ErrNoMove    = errors.New("nim: no stones left")
)

// Board holds the five pile counts.
type Board [PileCount]int

// InitialBoard is 1,3,5,7,9: 25 stones.
func InitialBoard() Board {
	var b Board
	for i := range b {
		b[i] = i*2 + 1
	}
	return b
}

// String renders the wire form, e.g. "1 3 5 7 9".
func (b Board) String() string {
	parts := make([]string, PileCount)
	for i, n := range b {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

// ParseBoard reads the wire form produced by String.
func ParseBoard(s string) (Board, error) {
	parts := strings.Fields(s)
	if len(parts) != PileCount {
		return Board{}, fmt.Errorf("%w: %q", ErrBadBoard, s)
	}
	var b Board
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Board{}, fmt.Errorf("%w: %q", ErrBadBoard, s)
		}
		b[i] = n
	}
	return b, nil
}

// Total is the number of stones left.
func (b Board) Total() int {
	total := 0
	for _, n := range b {
		total += n
	}
	return total
}

// Empty reports whether every pile is zero.
func (b Board) Empty() bool {
	for _, n := range b {
		if n != 0 {
			return false
		}
	}
	return true
}

// NimSum is the xor of all piles. The player to move loses under optimal play when it is zero.
func (b Board) NimSum() int {
	sum := 0
	for _, n := range b {
		sum ^= n
	}
	return sum
}

// WinningMove returns a move that leaves a zero nim-sum. When no such move
// exists it takes one stone from the largest pile.
func (b Board) WinningMove() (pile, count int, err error) {
	if b.Empty() {
		return 0, 0, ErrNoMove
	}
	if sum := b.NimSum(); sum != 0 {
		for i, n := range b {
			if target := n ^ sum; target < n {
				return i, n - target, nil
			}
		}
	}
	largest := 0
	for i, n := range b {
		if n > b[largest] {
			largest = i
		}
	}
	return largest, 1, nil
}

// FirstMove takes one stone from the first non-empty pile.
func (b Board) FirstMove() (pile, count int, err error) {
	for i, n := range b {
		if n > 0 {
			return i, 1, nil
		}
	}
	return 0, 0, ErrNoMove
}

// Opponent returns the other player number.
func Opponent(player int) int {
	if player == 1 {
		return 2
	}
	return 1
}

// Game is the board plus whose turn it is (1 or 2).
type Game struct {
	Piles Board
	Turn  int
}

// NewGame returns the starting position with player 1 to move.
func NewGame() Game {
	return Game{Piles: InitialBoard(), Turn: 1}
}

// ApplyMove removes count stones from pile and passes the turn. On error the
// game is left untouched.
func (g *Game) ApplyMove(pile, count int) error {
	if pile < 0 || pile >= PileCount {
		return fmt.Errorf("%w: %d", ErrPileIndex, pile)
	}
	if count <= 0 || count > g.Piles[pile] {
		return fmt.Errorf("%w: %d from pile %d holding %d", ErrQuantity, count, pile, g.Piles[pile])
	}
	g.Piles[pile] -= count
	g.Turn = Opponent(g.Turn)
	return nil
}

// IsOver reports whether every pile is empty.
func (g Game) IsOver() bool {
	return g.Piles.Empty()
}
