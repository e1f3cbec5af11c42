package deck

import (
	rand "math/rand/v2"
	"slices"
)

// Size is the number of cards in a full deck.
const Size = 52

// NewDeck returns all 52 cards in a uniformly shuffled order.
func NewDeck(rng *rand.Rand) []Card {
	cards := make([]Card, 0, Size)
	for _, suit := range Suits {
		for rank := Two; rank <= Ace; rank++ {
			cards = append(cards, NewCard(suit, rank))
		}
	}
	Shuffle(cards, rng)
	return cards
}

// Shuffle randomizes cards in place (Fisher-Yates).
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// Deal splits cards round-robin into n sorted hands. Only
// floor(len(cards)/n)*n cards are dealt; the remainder is discarded.
func Deal(cards []Card, n int) [][]Card {
	if n <= 0 {
		return nil
	}
	perHand := len(cards) / n
	hands := make([][]Card, n)
	for i := range hands {
		hands[i] = make([]Card, 0, perHand)
	}
	for i := 0; i < perHand*n; i++ {
		hands[i%n] = append(hands[i%n], cards[i])
	}
	for _, h := range hands {
		SortHand(h)
	}
	return hands
}

// SortHand orders a hand by suit (hearts, diamonds, clubs, spades) and then by
// descending rank. Presentation only.
func SortHand(hand []Card) {
	slices.SortFunc(hand, func(a, b Card) int {
		if a.Suit != b.Suit {
			return int(a.Suit) - int(b.Suit)
		}
		return int(b.Rank) - int(a.Rank)
	})
}

// Contains reports whether hand holds card.
func Contains(hand []Card, card Card) bool {
	return slices.Contains(hand, card)
}

// Remove returns hand without the first occurrence of card.
func Remove(hand []Card, card Card) ([]Card, bool) {
	i := slices.Index(hand, card)
	if i < 0 {
		return hand, false
	}
	return slices.Delete(hand, i, i+1), true
}

// OfSuit returns the cards in hand of the given suit, preserving order.
func OfSuit(hand []Card, suit Suit) []Card {
	var out []Card
	for _, c := range hand {
		if c.Suit == suit {
			out = append(out, c)
		}
	}
	return out
}

// HasSuit reports whether hand holds at least one card of suit.
func HasSuit(hand []Card, suit Suit) bool {
	return slices.ContainsFunc(hand, func(c Card) bool { return c.Suit == suit })
}

// Concealed returns n placeholder cards.
func Concealed(n int) []Card {
	out := make([]Card, n)
	for i := range out {
		out[i] = Placeholder
	}
	return out
}
