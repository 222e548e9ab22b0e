package protocol

import "strconv"

// Message is one decoded or to-be-encoded NGP frame. Fields are owned strings;
// nothing in a Message aliases a receive buffer.
type Message struct {
	Version int
	Length  int
	Type    MessageType
	Fields  []string
}

// Field returns field i or "" when absent.
func (m Message) Field(i int) string {
	if i < 0 || i >= len(m.Fields) {
		return ""
	}
	return m.Fields[i]
}

// ContentLength is the LL value this message encodes to.
func (m Message) ContentLength() int {
	n := TypeLen + 1
	for _, f := range m.Fields {
		n += len(f) + 1
	}
	return n
}

func newMessage(t MessageType, fields ...string) Message {
	m := Message{Type: t, Fields: fields}
	m.Length = m.ContentLength()
	return m
}

// Open announces a player's display name.
func Open(name string) Message {
	return newMessage(TypeOpen, name)
}

// Wait acknowledges a successful OPEN.
func Wait() Message {
	return newMessage(TypeWait)
}

// Name tells a player its own number and the opponent's name.
func Name(player int, opponent string) Message {
	return newMessage(TypeName, strconv.Itoa(player), opponent)
}

// Play carries whose turn it is and the board in wire form.
func Play(turn int, board string) Message {
	return newMessage(TypePlay, strconv.Itoa(turn), board)
}

// Move removes count stones from pile.
func Move(pile, count int) Message {
	return newMessage(TypeMove, strconv.Itoa(pile), strconv.Itoa(count))
}

// Over ends the game.
func Over(winner int, board string, forfeit bool) Message {
	marker := ""
	if forfeit {
		marker = ForfeitMarker
	}
	return newMessage(TypeOver, strconv.Itoa(winner), board, marker)
}

// Fail reports code to the peer.
func Fail(code ErrorCode) Message {
	return newMessage(TypeFail, code.Text())
}

// MoveArgs parses the pile index and count of a MOVE message.
func (m Message) MoveArgs() (pile, count int, err error) {
	if m.Type != TypeMove || len(m.Fields) != 2 {
		return 0, 0, ErrInvalid
	}
	pile, err = strconv.Atoi(m.Fields[0])
	if err != nil {
		return 0, 0, ErrInvalid
	}
	count, err = strconv.Atoi(m.Fields[1])
	if err != nil {
		return 0, 0, ErrInvalid
	}
	return pile, count, nil
}

// Player parses the leading player number of NAME, PLAY and OVER messages.
func (m Message) Player() (int, error) {
	switch m.Type {
	case TypeName, TypePlay, TypeOver:
	default:
		return 0, ErrInvalid
	}
	n, err := strconv.Atoi(m.Field(0))
	if err != nil || (n != 1 && n != 2) {
		return 0, ErrInvalid
	}
	return n, nil
}

// Forfeit reports whether an OVER message carries the forfeit marker.
func (m Message) Forfeit() bool {
	return m.Type == TypeOver && m.Field(2) == ForfeitMarker
}

// FailCode parses the error code carried by a FAIL message.
func (m Message) FailCode() (ErrorCode, error) {
	if m.Type != TypeFail {
		return CodeNone, ErrInvalid
	}
	return ParseFailText(m.Field(0))
}
