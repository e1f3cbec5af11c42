package game

import (
	rand "math/rand/v2"

	"github.com/lox/trickster/internal/deck"
)

// ChooseAutoplayCard picks a card for a player whose turn timed out.
//
//   - Following with cards of the lead suit: the lowest card that beats the
//     best lead-suit card on the table, otherwise the lowest lead-suit card.
//   - Void in the lead suit: the lowest card of the longest suit held, ties
//     between suits broken uniformly at random.
//   - Leading: the highest card in hand.
//
// The second return value is false only for an empty hand.
func ChooseAutoplayCard(hand []deck.Card, trick []TrickCard, leadSuit *deck.Suit, rng *rand.Rand) (deck.Card, bool) {
	if len(hand) == 0 {
		return deck.Card{}, false
	}

	if leadSuit == nil {
		return highest(hand), true
	}

	if following := deck.OfSuit(hand, *leadSuit); len(following) > 0 {
		best := 0
		for _, tc := range trick {
			if tc.Card.Suit == *leadSuit && tc.Card.Value() > best {
				best = tc.Card.Value()
			}
		}
		var beaters []deck.Card
		for _, c := range following {
			if c.Value() > best {
				beaters = append(beaters, c)
			}
		}
		if len(beaters) > 0 {
			return lowest(beaters), true
		}
		return lowest(following), true
	}

	return lowest(deck.OfSuit(hand, longestSuit(hand, rng))), true
}

func longestSuit(hand []deck.Card, rng *rand.Rand) deck.Suit {
	counts := make(map[deck.Suit]int, len(deck.Suits))
	for _, c := range hand {
		counts[c.Suit]++
	}
	most := 0
	var tied []deck.Suit
	for _, suit := range deck.Suits {
		switch n := counts[suit]; {
		case n > most:
			most = n
			tied = []deck.Suit{suit}
		case n == most && n > 0:
			tied = append(tied, suit)
		}
	}
	if len(tied) == 1 || rng == nil {
		return tied[0]
	}
	return tied[rng.IntN(len(tied))]
}

func lowest(cards []deck.Card) deck.Card {
	low := cards[0]
	for _, c := range cards[1:] {
		if c.Value() < low.Value() {
			low = c
		}
	}
	return low
}

func highest(cards []deck.Card) deck.Card {
	high := cards[0]
	for _, c := range cards[1:] {
		if c.Value() > high.Value() {
			high = c
		}
	}
	return high
}
