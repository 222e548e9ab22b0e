// Package match runs one two-player Nim game over NGP.
//
// A Session owns both players' streams and the game state for its whole
// lifetime. Only the player whose turn it is gets read; the idle player's
// bytes wait in its stream until its turn comes.
package match
