package protocol

// Wire constants.
const (
	Version       byte = '0'
	Delimiter     byte = '|'
	HeaderLen          = 5
	TypeLen            = 4
	MinContentLen      = 5
	MaxContentLen      = 99
	MaxFrameLen        = HeaderLen + MaxContentLen
	MaxFields          = 3
	MaxNameLen         = 72
)

// MessageType is the 4-character type code of a frame.
type MessageType string

const (
	TypeOpen MessageType = "OPEN"
	TypeWait MessageType = "WAIT"
	TypeName MessageType = "NAME"
	TypePlay MessageType = "PLAY"
	TypeMove MessageType = "MOVE"
	TypeOver MessageType = "OVER"
	TypeFail MessageType = "FAIL"
)

// ForfeitMarker is the third OVER field when the game ended by disconnect.
const ForfeitMarker = "Forfeit"

var fieldCounts = map[MessageType]int{
	TypeOpen: 1,
	TypeWait: 0,
	TypeName: 2,
	TypePlay: 2,
	TypeMove: 2,
	TypeOver: 3,
	TypeFail: 1,
}

// FieldCount returns the fixed arity of t and whether t is a known type.
func FieldCount(t MessageType) (int, bool) {
	n, ok := fieldCounts[t]
	return n, ok
}

// Known reports whether t is one of the seven NGP message types.
func (t MessageType) Known() bool {
	_, ok := fieldCounts[t]
	return ok
}

func (t MessageType) String() string {
	return string(t)
}
