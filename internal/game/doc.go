// Package game implements the rules of a four-suit, follow-suit, no-trump
// trick-taking game.
//
// The main type is State, the authoritative record of one game in progress.
// Everything in this package is a pure computation over State: it never
// blocks, never arms timers and never talks to the network. Sequencing
// (whose turn it is, when a completed trick is cleared, what happens on a
// timeout) lives in the session package, which serialises every call into
// this package behind a per-game lock.
//
// # Basic Usage
//
//	s, err := game.NewGame(id, roomID, participants, hostID, 4, rng)
//	if res := game.ValidateMove(s, playerID, card); !res.Valid {
//	    return res.Err()
//	}
//	_ = game.ApplyMove(s, playerID, card)
//	if len(s.CurrentTrick) == len(s.TurnOrder) {
//	    winner := game.TrickWinner(s.CurrentTrick, *s.LeadSuit)
//	    game.ProcessTrickWin(s, winner)
//	}
//
// # Hidden information
//
// Hands are owner-exclusive. SanitizeFor projects a State for one recipient,
// replacing every other hand with placeholder cards of the same length.
package game
