// Package protocol owns the NGP wire contract and parsing primitives.
//
// Ownership boundary:
// - frame header and field grammar
// - per-type message constructors
// - error code table
// - streaming receive buffer
//
// Frame grammar (version 0 only):
//
//	"0" "|" LL "|" TTTT ( "|" field )* "|"
//
// LL is the zero padded content length (05-99) of everything after the
// 5-byte header.
package protocol
