package protocol

import (
	"io"
	"strings"
)

// Encode renders msg as one frame.
func Encode(msg Message) ([]byte, error) {
	size, err := frameSize(msg)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := EncodeTo(buf, msg); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeTo renders msg into dst and returns the number of bytes written.
func EncodeTo(dst []byte, msg Message) (int, error) {
	size, err := frameSize(msg)
	if err != nil {
		return 0, err
	}
	if len(dst) < size {
		return 0, ErrShortBuffer
	}
	content := size - HeaderLen
	dst[0] = Version
	dst[1] = Delimiter
	dst[2] = '0' + byte(content/10)
	dst[3] = '0' + byte(content%10)
	dst[4] = Delimiter
	pos := HeaderLen
	pos += copy(dst[pos:], msg.Type)
	dst[pos] = Delimiter
	pos++
	for _, f := range msg.Fields {
		pos += copy(dst[pos:], f)
		dst[pos] = Delimiter
		pos++
	}
	return pos, nil
}

// EncodeFail renders a FAIL frame for code.
func EncodeFail(code ErrorCode) ([]byte, error) {
	return Encode(Fail(code))
}

// WriteMessage encodes msg and writes it to w in one call.
func WriteMessage(w io.Writer, msg Message) error {
	buf, err := Encode(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func frameSize(msg Message) (int, error) {
	want, ok := FieldCount(msg.Type)
	if !ok || len(msg.Type) != TypeLen {
		return 0, ErrUnknownType
	}
	if len(msg.Fields) != want {
		return 0, ErrFieldCount
	}
	for _, f := range msg.Fields {
		if strings.IndexByte(f, Delimiter) >= 0 {
			return 0, ErrDelimiterInField
		}
	}
	content := msg.ContentLength()
	if content > MaxContentLen {
		return 0, ErrContentTooLong
	}
	return HeaderLen + content, nil
}
