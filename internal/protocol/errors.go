package protocol

import (
	"errors"
	"strconv"
)

// ErrorCode is one entry of the closed NGP error table. It is carried as the
// text of FAIL frames and doubles as a Go error value.
type ErrorCode int

const (
	CodeNone           ErrorCode = 0
	CodeInvalid        ErrorCode = 10
	CodeLongName       ErrorCode = 21
	CodeAlreadyPlaying ErrorCode = 22
	CodeAlreadyOpen    ErrorCode = 23
	CodeNotPlaying     ErrorCode = 24
	CodeImpatient      ErrorCode = 31
	CodePileIndex      ErrorCode = 32
	CodeQuantity       ErrorCode = 33
)

var codeText = map[ErrorCode]string{
	CodeNone:           "No error",
	CodeInvalid:        "Invalid",
	CodeLongName:       "Long Name",
	CodeAlreadyPlaying: "Already Playing",
	CodeAlreadyOpen:    "Already Open",
	CodeNotPlaying:     "Not Playing",
	CodeImpatient:      "Impatient",
	CodePileIndex:      "Pile Index",
	CodeQuantity:       "Quantity",
}

// Sentinel wire errors. Wrapped forms still match with errors.Is.
var (
	ErrInvalid        error = CodeInvalid
	ErrLongName       error = CodeLongName
	ErrAlreadyPlaying error = CodeAlreadyPlaying
	ErrAlreadyOpen    error = CodeAlreadyOpen
	ErrNotPlaying     error = CodeNotPlaying
	ErrImpatient      error = CodeImpatient
	ErrPileIndex      error = CodePileIndex
	ErrQuantity       error = CodeQuantity
)

// Encoder errors. These never reach the wire.
var (
	ErrUnknownType       = errors.New("protocol: unknown message type")
	ErrFieldCount        = errors.New("protocol: field count does not match type")
	ErrContentTooLong    = errors.New("protocol: content length exceeds 99")
	ErrDelimiterInField  = errors.New("protocol: field contains delimiter")
	ErrShortBuffer       = errors.New("protocol: destination buffer too small")
	ErrBufferOverflow    = errors.New("protocol: receive buffer overflow")
	ErrUnknownFailReason = errors.New("protocol: unknown fail reason")
)

// Known reports whether c is part of the error table.
func (c ErrorCode) Known() bool {
	_, ok := codeText[c]
	return ok
}

// Text is the FAIL field form, e.g. "10 Invalid". CodeNone has no number.
func (c ErrorCode) Text() string {
	text, ok := codeText[c]
	if !ok {
		return "Unknown error"
	}
	if c == CodeNone {
		return text
	}
	return strconv.Itoa(int(c)) + " " + text
}

func (c ErrorCode) Error() string {
	return "protocol: " + c.Text()
}

// CodeOf extracts the wire code carried by err. Errors without a code map to
// CodeInvalid; nil maps to CodeNone.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeNone
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return CodeInvalid
}

// ParseFailText recovers the code from a FAIL field such as "33 Quantity".
func ParseFailText(text string) (ErrorCode, error) {
	end := 0
	for end < len(text) && isDigit(text[end]) {
		end++
	}
	if end == 0 {
		return CodeNone, ErrUnknownFailReason
	}
	n, err := strconv.Atoi(text[:end])
	if err != nil {
		return CodeNone, ErrUnknownFailReason
	}
	code := ErrorCode(n)
	if !code.Known() {
		return CodeNone, ErrUnknownFailReason
	}
	return code, nil
}
