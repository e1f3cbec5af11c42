package game

import "github.com/lox/trickster/internal/deck"

// SanitizeFor returns the state as recipientID may see it. Other players'
// hands become placeholder cards of the same length; the recipient's own hand
// is untouched. Cards on the table are public and kept as is. The result
// shares no memory with s.
func SanitizeFor(s *State, recipientID string) *State {
	view := s.Clone()
	view.Deck = []deck.Card{}
	for _, p := range view.Players {
		if p.ID != recipientID {
			p.Hand = deck.Concealed(len(p.Hand))
		}
	}
	return view
}
