// Package lobby accepts NGP players, runs their OPEN handshake and pairs
// them into games.
//
// Players are paired in arrival order: the first opened player waits and
// the next one joins it as player 2. Each game runs in its own goroutine.
// Display names are unique across waiting and playing players.
package lobby
