package deck

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Suit represents a card suit. The declaration order is the presentation
// order used when sorting hands.
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades

	// Hidden is the suit of the placeholder card shown in place of
	// concealed cards.
	Hidden Suit = -1
)

// Suits lists the four playable suits in presentation order.
var Suits = [...]Suit{Hearts, Diamonds, Clubs, Spades}

// String returns the wire name of a suit
func (s Suit) String() string {
	switch s {
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	case Spades:
		return "spades"
	case Hidden:
		return "hidden"
	default:
		return "?"
	}
}

// Symbol returns the unicode glyph for the suit
func (s Suit) Symbol() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// MarshalText implements encoding.TextMarshaler.
func (s Suit) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Suit) UnmarshalText(b []byte) error {
	parsed, err := ParseSuit(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSuit accepts a wire name ("hearts"), a single letter ("h") or a glyph.
func ParseSuit(s string) (Suit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hearts", "h", "♥":
		return Hearts, nil
	case "diamonds", "d", "♦":
		return Diamonds, nil
	case "clubs", "c", "♣":
		return Clubs, nil
	case "spades", "s", "♠":
		return Spades, nil
	case "hidden":
		return Hidden, nil
	}
	return 0, fmt.Errorf("invalid suit: %q", s)
}

// Rank represents a card rank
type Rank int

const (
	// HiddenRank is the rank of the placeholder card.
	HiddenRank Rank = 0

	Two Rank = iota + 1
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the string representation of a rank
func (r Rank) String() string {
	switch {
	case r >= Two && r <= Ten:
		return fmt.Sprintf("%d", int(r))
	case r == Jack:
		return "J"
	case r == Queen:
		return "Q"
	case r == King:
		return "K"
	case r == Ace:
		return "A"
	default:
		return "?"
	}
}

// ParseRank accepts "2".."10", "T" and the face letters.
func ParseRank(s string) (Rank, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "2":
		return Two, nil
	case "3":
		return Three, nil
	case "4":
		return Four, nil
	case "5":
		return Five, nil
	case "6":
		return Six, nil
	case "7":
		return Seven, nil
	case "8":
		return Eight, nil
	case "9":
		return Nine, nil
	case "10", "T":
		return Ten, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	case "A":
		return Ace, nil
	case "?":
		return HiddenRank, nil
	}
	return 0, fmt.Errorf("invalid rank: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rank) UnmarshalText(b []byte) error {
	parsed, err := ParseRank(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Card represents a playing card. Cards are comparable values.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// Placeholder stands in for every card the recipient is not allowed to see.
var Placeholder = Card{Suit: Hidden, Rank: HiddenRank}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// String returns the short form of a card (e.g., "K♥")
func (c Card) String() string {
	if c.IsPlaceholder() {
		return "??"
	}
	return c.Rank.String() + c.Suit.Symbol()
}

// Value returns the numeric value used for comparison: 2=2 ... A=14.
func (c Card) Value() int {
	return int(c.Rank)
}

// IsPlaceholder reports whether the card is the concealment placeholder.
func (c Card) IsPlaceholder() bool {
	return c == Placeholder
}

// Valid reports whether the card is one of the 52 real cards.
func (c Card) Valid() bool {
	return c.Suit >= Hearts && c.Suit <= Spades && c.Rank >= Two && c.Rank <= Ace
}

// UnmarshalJSON rejects cards outside the 52-card deck so malformed
// requests never reach the engine.
func (c *Card) UnmarshalJSON(b []byte) error {
	type wire Card
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	card := Card(w)
	if !card.Valid() && !card.IsPlaceholder() {
		return fmt.Errorf("invalid card: %s of %s", card.Rank, card.Suit)
	}
	*c = card
	return nil
}

// ParseCard parses the short notation "Kh", "10d", "Ts" or "9♠".
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) < 2 {
		return Card{}, fmt.Errorf("invalid card: %q", s)
	}
	suit, err := ParseSuit(string(runes[len(runes)-1]))
	if err != nil || suit == Hidden {
		return Card{}, fmt.Errorf("invalid card %q: bad suit", s)
	}
	rank, err := ParseRank(string(runes[:len(runes)-1]))
	if err != nil || rank == HiddenRank {
		return Card{}, fmt.Errorf("invalid card %q: bad rank", s)
	}
	return NewCard(suit, rank), nil
}

// ParseCards parses a whitespace or comma separated list of cards.
func ParseCards(s string) ([]Card, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// MustParseCards is ParseCards for tests and fixtures; it panics on error.
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}
