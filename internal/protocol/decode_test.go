package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeWait(t *testing.T) {
	n, msg, err := Decode([]byte("0|05|WAIT|"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 10 || msg.Type != TypeWait || len(msg.Fields) != 0 || msg.Length != 5 {
		t.Fatalf("unexpected decode n=%d msg=%+v", n, msg)
	}
}

func TestDecodeOpen(t *testing.T) {
	n, msg, err := Decode([]byte("0|11|OPEN|Alice|"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 16 || msg.Type != TypeOpen || msg.Field(0) != "Alice" {
		t.Fatalf("unexpected decode n=%d msg=%+v", n, msg)
	}
}

func TestDecodeValidTypes(t *testing.T) {
	cases := []struct {
		in     string
		typ    MessageType
		fields []string
	}{
		{"0|13|NAME|1|Alice|", TypeName, []string{"1", "Alice"}},
		{"0|17|PLAY|1|1 3 5 7 9|", TypePlay, []string{"1", "1 3 5 7 9"}},
		{"0|09|MOVE|3|4|", TypeMove, []string{"3", "4"}},
		{"0|18|OVER|1|0 0 0 0 0||", TypeOver, []string{"1", "0 0 0 0 0", ""}},
		{"0|25|OVER|2|0 0 0 0 0|Forfeit|", TypeOver, []string{"2", "0 0 0 0 0", "Forfeit"}},
		{"0|16|FAIL|10 Invalid|", TypeFail, []string{"10 Invalid"}},
		{"0|06|OPEN||", TypeOpen, []string{""}},
		{"0|08|PLAY|1||", TypePlay, []string{"1", ""}},
		{"0|16|OPEN|A@#$%^&*()|", TypeOpen, []string{"A@#$%^&*()"}},
		{"0|16|OPEN|Player One|", TypeOpen, []string{"Player One"}},
	}
	for _, tc := range cases {
		n, msg, err := Decode([]byte(tc.in))
		if err != nil {
			t.Fatalf("decode %q: %v", tc.in, err)
		}
		if n != len(tc.in) {
			t.Fatalf("decode %q consumed %d want %d", tc.in, n, len(tc.in))
		}
		if msg.Type != tc.typ || len(msg.Fields) != len(tc.fields) {
			t.Fatalf("decode %q unexpected msg=%+v", tc.in, msg)
		}
		for i := range tc.fields {
			if msg.Fields[i] != tc.fields[i] {
				t.Fatalf("decode %q field[%d]=%q want %q", tc.in, i, msg.Fields[i], tc.fields[i])
			}
		}
	}
}

func TestDecodeIncomplete(t *testing.T) {
	for _, in := range []string{"", "0", "0|1", "0|11", "0|11|", "0|11|OPEN|Al", "0|11|OPEN|Alice", "0|50|WAIT|"} {
		n, msg, err := Decode([]byte(in))
		if err != nil || n != 0 {
			t.Fatalf("decode %q expected incomplete, got n=%d msg=%+v err=%v", in, n, msg, err)
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, in := range []string{
		"1|05|WAIT|",
		"A|05|WAIT|",
		"0-05|WAIT|",
		"0|5|WAIT|",
		"0|ab|WAIT|",
		"0|04|WAIT|",
		"0|03|WAIT|",
		"0|05-WAIT|",
		"0|05|BLAH|",
		"0|05|WAITX",
		"0|05|WAI||",
		"0|10|OPEN|Alice",
		"0|09|OPEN|Alice",
		"0|11|OPEN|Al|ce|",
		"0|07|MOVE|3|",
		"0|11|MOVE|1|2|3|",
		"0|08|MOVE|1||",
		"0|09|MOVE|-|4|",
		"0|10|MOVE|+1|4|",
		"0|10|MOVE| 1|4|",
		"0|09|MOVE|a|4|",
	} {
		n, _, err := Decode([]byte(in))
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("decode %q expected ErrInvalid, got n=%d err=%v", in, n, err)
		}
		if CodeOf(err) != CodeInvalid {
			t.Fatalf("decode %q unexpected code %d", in, CodeOf(err))
		}
	}
}

func TestDecodeNameLength(t *testing.T) {
	name72 := strings.Repeat("A", 72)
	n, msg, err := Decode([]byte("0|78|OPEN|" + name72 + "|"))
	if err != nil {
		t.Fatalf("decode 72-byte name: %v", err)
	}
	if n != 83 || msg.Field(0) != name72 {
		t.Fatalf("unexpected decode n=%d", n)
	}

	_, _, err = Decode([]byte("0|79|OPEN|" + strings.Repeat("B", 73) + "|"))
	if !errors.Is(err, ErrLongName) {
		t.Fatalf("expected ErrLongName, got %v", err)
	}
	if CodeOf(err) != CodeLongName || CodeOf(err) != 21 {
		t.Fatalf("unexpected code %d", CodeOf(err))
	}
}

func TestDecodeMultipleFrames(t *testing.T) {
	buf := []byte("0|05|WAIT|0|11|OPEN|Alice|")
	n1, m1, err := Decode(buf)
	if err != nil || n1 != 10 || m1.Type != TypeWait {
		t.Fatalf("first frame n=%d msg=%+v err=%v", n1, m1, err)
	}
	n2, m2, err := Decode(buf[n1:])
	if err != nil || n2 != 16 || m2.Type != TypeOpen || m2.Field(0) != "Alice" {
		t.Fatalf("second frame n=%d msg=%+v err=%v", n2, m2, err)
	}
}

func TestDecodeFieldsDoNotAliasInput(t *testing.T) {
	buf := []byte("0|11|OPEN|Alice|")
	_, msg, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	copy(buf[10:], "XXXXX")
	if msg.Field(0) != "Alice" {
		t.Fatalf("field aliased input buffer: %q", msg.Field(0))
	}
}

func TestDecodeVerdictDependsOnAvailableBytes(t *testing.T) {
	for length := MinContentLen; length <= MaxContentLen; length++ {
		frame := make([]byte, HeaderLen+length)
		frame[0], frame[1] = '0', '|'
		frame[2], frame[3] = '0'+byte(length/10), '0'+byte(length%10)
		frame[4] = '|'
		for i := HeaderLen; i < len(frame); i++ {
			frame[i] = 'x'
		}
		for avail := HeaderLen; avail <= len(frame); avail++ {
			n, _, err := Decode(frame[:avail])
			incomplete := n == 0 && err == nil
			if avail < HeaderLen+length && !incomplete {
				t.Fatalf("L=%d avail=%d expected incomplete, got n=%d err=%v", length, avail, n, err)
			}
			if avail == HeaderLen+length && incomplete {
				t.Fatalf("L=%d avail=%d expected a verdict", length, avail)
			}
		}
	}
}

func TestDecodeStreamingSplit(t *testing.T) {
	frames := []Message{
		Wait(),
		Open("Alice"),
		Name(2, "Bob"),
		Play(1, "1 3 5 7 9"),
		Move(4, 9),
		Over(1, "0 0 0 0 0", false),
		Over(2, "1 0 0 0 0", true),
		Fail(CodeQuantity),
	}
	for _, m := range frames {
		wire, err := Encode(m)
		if err != nil {
			t.Fatalf("encode %s: %v", m.Type, err)
		}
		wantN, want, err := Decode(wire)
		if err != nil {
			t.Fatalf("single shot %s: %v", m.Type, err)
		}
		for split := 0; split < len(wire); split++ {
			buf := NewBuffer(0)
			if err := buf.Feed(wire[:split]); err != nil {
				t.Fatalf("feed: %v", err)
			}
			if _, ok, err := buf.Next(); ok || err != nil {
				t.Fatalf("%s split=%d expected incomplete, ok=%v err=%v", m.Type, split, ok, err)
			}
			if buf.Len() != split {
				t.Fatalf("%s split=%d incomplete decode consumed bytes", m.Type, split)
			}
			if err := buf.Feed(wire[split:]); err != nil {
				t.Fatalf("feed: %v", err)
			}
			got, ok, err := buf.Next()
			if !ok || err != nil {
				t.Fatalf("%s split=%d expected frame, ok=%v err=%v", m.Type, split, ok, err)
			}
			if got.Type != want.Type || got.Length != want.Length || !equalFields(got.Fields, want.Fields) {
				t.Fatalf("%s split=%d got=%+v want=%+v", m.Type, split, got, want)
			}
			if buf.Len() != 0 || wantN != len(wire) {
				t.Fatalf("%s split=%d leftover=%d", m.Type, split, buf.Len())
			}
		}
	}
}

func equalFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
