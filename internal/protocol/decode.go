package protocol

import (
	"bytes"
	"fmt"
)

// Decode parses one frame from the front of buf.
//
// It returns the number of bytes consumed and the decoded message on
// success. A zero count with a nil error means buf holds an incomplete
// prefix: the caller must append more bytes and retry over the same data.
// Any error is terminal for the frame and carries an ErrorCode.
func Decode(buf []byte) (int, Message, error) {
	if len(buf) < HeaderLen {
		return 0, Message{}, nil
	}
	if buf[0] != Version || buf[1] != Delimiter {
		return 0, Message{}, fmt.Errorf("%w: bad version header", ErrInvalid)
	}
	if !isDigit(buf[2]) || !isDigit(buf[3]) || buf[4] != Delimiter {
		return 0, Message{}, fmt.Errorf("%w: bad length header", ErrInvalid)
	}
	length := int(buf[2]-'0')*10 + int(buf[3]-'0')
	if length < MinContentLen || length > MaxContentLen {
		return 0, Message{}, fmt.Errorf("%w: length %d out of range", ErrInvalid, length)
	}
	end := HeaderLen + length
	if end > len(buf) {
		return 0, Message{}, nil
	}

	msgType := MessageType(buf[HeaderLen : HeaderLen+TypeLen])
	fieldCount, ok := FieldCount(msgType)
	if !ok {
		return 0, Message{}, fmt.Errorf("%w: unknown type %q", ErrInvalid, string(msgType))
	}
	if buf[HeaderLen+TypeLen] != Delimiter {
		return 0, Message{}, fmt.Errorf("%w: type not terminated", ErrInvalid)
	}

	fields := make([]string, 0, fieldCount)
	cursor := HeaderLen + TypeLen + 1
	for i := 0; i < fieldCount; i++ {
		idx := bytes.IndexByte(buf[cursor:end], Delimiter)
		if idx < 0 {
			return 0, Message{}, fmt.Errorf("%w: %s expects %d fields, found %d", ErrInvalid, msgType, fieldCount, i)
		}
		fields = append(fields, string(buf[cursor:cursor+idx]))
		cursor += idx + 1
	}
	if cursor != end {
		return 0, Message{}, fmt.Errorf("%w: %d trailing bytes after %s fields", ErrInvalid, end-cursor, msgType)
	}

	switch msgType {
	case TypeOpen:
		if len(fields[0]) > MaxNameLen {
			return 0, Message{}, fmt.Errorf("%w: %d bytes", ErrLongName, len(fields[0]))
		}
	case TypeMove:
		for _, f := range fields {
			if !allDigits(f) {
				return 0, Message{}, fmt.Errorf("%w: move field %q is not a number", ErrInvalid, f)
			}
		}
	}

	return end, Message{
		Version: 0,
		Length:  length,
		Type:    msgType,
		Fields:  fields,
	}, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
