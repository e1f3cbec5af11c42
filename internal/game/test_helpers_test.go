package game

import (
	rand "math/rand/v2"
	"testing"

	"github.com/lox/trickster/internal/deck"
)

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

// newTestState builds a playing state from explicit hands, in turn order.
func newTestState(t *testing.T, hands map[string]string, order ...string) *State {
	t.Helper()
	s := &State{
		ID:          "game-1",
		RoomID:      "room-1",
		Round:       1,
		TrickNumber: 1,
		Status:      StatusPlaying,
		HostID:      order[0],
		MaxPlayers:  4,
		TurnOrder:   order,
	}
	for _, id := range order {
		s.Players = append(s.Players, &Player{
			ID:        id,
			Name:      id,
			Hand:      deck.MustParseCards(hands[id]),
			Connected: true,
		})
	}
	s.CurrentPlayerID = order[0]
	return s
}

func card(s string) deck.Card {
	c, err := deck.ParseCard(s)
	if err != nil {
		panic(err)
	}
	return c
}

func suitPtr(s deck.Suit) *deck.Suit {
	return &s
}
