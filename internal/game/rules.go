package game

import (
	"fmt"

	"github.com/lox/trickster/internal/deck"
)

// RejectReason is the machine-readable cause of an illegal play.
type RejectReason string

const (
	ReasonGameNotActive  RejectReason = "game_not_active"
	ReasonUnknownPlayer  RejectReason = "unknown_player"
	ReasonNotYourTurn    RejectReason = "not_your_turn"
	ReasonCardNotInHand  RejectReason = "card_not_in_hand"
	ReasonMustFollowSuit RejectReason = "must_follow_suit"
)

// MoveResult is the outcome of ValidateMove.
type MoveResult struct {
	Valid   bool
	Reason  RejectReason
	Message string
}

// Err returns nil for a valid move and a *RejectError otherwise.
func (r MoveResult) Err() error {
	if r.Valid {
		return nil
	}
	return &RejectError{Reason: r.Reason, Message: r.Message}
}

// RejectError is returned for plays that break the rules. The state is
// untouched and the client may retry with a legal card.
type RejectError struct {
	Reason  RejectReason
	Message string
}

func (e *RejectError) Error() string {
	return e.Message
}

func reject(reason RejectReason, format string, args ...any) MoveResult {
	return MoveResult{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ValidateMove decides whether playerID may play card right now. It has no
// side effects.
func ValidateMove(s *State, playerID string, card deck.Card) MoveResult {
	if s.Status != StatusPlaying {
		return reject(ReasonGameNotActive, "The game is not in progress")
	}
	p := s.Player(playerID)
	if p == nil {
		return reject(ReasonUnknownPlayer, "Player not found in this game")
	}
	if s.CurrentPlayerID != playerID {
		return reject(ReasonNotYourTurn, "It's not your turn")
	}
	if !deck.Contains(p.Hand, card) {
		return reject(ReasonCardNotInHand, "You don't have %s in your hand", card)
	}
	if s.LeadSuit != nil && card.Suit != *s.LeadSuit && deck.HasSuit(p.Hand, *s.LeadSuit) {
		return reject(ReasonMustFollowSuit, "You must follow suit (%s)", *s.LeadSuit)
	}
	return MoveResult{Valid: true}
}

// ApplyMove validates and performs a play: the card moves from the hand to
// the current trick, setting the lead suit when it is the first card. Turn
// advancement is left to the caller.
func ApplyMove(s *State, playerID string, card deck.Card) error {
	if err := ValidateMove(s, playerID, card).Err(); err != nil {
		return err
	}
	p := s.Player(playerID)
	p.Hand, _ = deck.Remove(p.Hand, card)
	if len(s.CurrentTrick) == 0 {
		suit := card.Suit
		s.LeadSuit = &suit
	}
	s.CurrentTrick = append(s.CurrentTrick, TrickCard{PlayerID: playerID, Card: card})
	return nil
}

// StructuralViolation is the panic value raised when trick bookkeeping is
// broken beyond repair. It is never a user-facing condition.
type StructuralViolation struct {
	Msg string
}

func (v StructuralViolation) Error() string {
	return "structural violation: " + v.Msg
}

// TrickWinner returns the player who played the highest card of the lead
// suit. Off-suit cards never win. It panics with a StructuralViolation if no
// card of the lead suit is present.
func TrickWinner(trick []TrickCard, leadSuit deck.Suit) string {
	winner := -1
	for i, tc := range trick {
		if tc.Card.Suit != leadSuit {
			continue
		}
		if winner < 0 || tc.Card.Value() > trick[winner].Card.Value() {
			winner = i
		}
	}
	if winner < 0 {
		panic(StructuralViolation{Msg: fmt.Sprintf("no %s card in trick of %d", leadSuit, len(trick))})
	}
	return trick[winner].PlayerID
}

// ProcessTrickWin credits the winner, clears the table and hands the lead to
// the winner. The game is finished once every hand is empty.
func ProcessTrickWin(s *State, winnerID string) {
	if p := s.Player(winnerID); p != nil {
		p.TricksWon++
	}
	s.LastTrick = s.CurrentTrick
	s.CurrentTrick = nil
	s.LeadSuit = nil
	s.CurrentPlayerID = winnerID
	s.TrickNumber++
	if s.AllHandsEmpty() {
		s.Status = StatusFinished
	}
}
