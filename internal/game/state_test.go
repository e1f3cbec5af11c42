package game

import (
	"fmt"
	"testing"

	"github.com/lox/trickster/internal/deck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participants(n int) []Participant {
	out := make([]Participant, n)
	for i := range out {
		out[i] = Participant{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("Player %d", i+1), VoiceSlot: 100 + i, Connected: true}
	}
	return out
}

func TestNewGame(t *testing.T) {
	for n := 2; n <= 4; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			s, err := NewGame("g", "r", participants(n), "p1", 4, testRNG(uint64(n)))
			require.NoError(t, err)

			assert.Equal(t, StatusPlaying, s.Status)
			assert.Equal(t, 1, s.Round)
			assert.Equal(t, 1, s.TrickNumber)
			assert.Empty(t, s.Deck)
			assert.Empty(t, s.CurrentTrick)
			assert.Nil(t, s.LeadSuit)
			require.Len(t, s.Players, n)
			require.Len(t, s.TurnOrder, n)

			seen := make(map[deck.Card]bool)
			for i, p := range s.Players {
				assert.Len(t, p.Hand, deck.Size/n)
				assert.Zero(t, p.TricksWon)
				assert.Equal(t, 100+i, p.VoiceSlot)
				for _, c := range p.Hand {
					require.False(t, seen[c], "card %v dealt twice", c)
					seen[c] = true
				}
			}

			// The turn order is a rotation of the seating order starting at the leader
			assert.Equal(t, s.CurrentPlayerID, s.TurnOrder[0])
			assert.ElementsMatch(t, []string{"p1", "p2", "p3", "p4"}[:n], s.TurnOrder)

			if seen[StartingCard] {
				assert.True(t, deck.Contains(s.Player(s.CurrentPlayerID).Hand, StartingCard),
					"holder of the two of clubs must lead")
			} else {
				assert.Equal(t, "p1", s.CurrentPlayerID, "host leads when the two of clubs was not dealt")
			}
		})
	}
}

func TestNewGameRejectsBadPlayerCounts(t *testing.T) {
	_, err := NewGame("g", "r", participants(1), "p1", 4, testRNG(1))
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	_, err = NewGame("g", "r", participants(4), "p1", 3, testRNG(1))
	assert.ErrorIs(t, err, ErrTooManyPlayers)

	_, err = NewGame("g", "r", participants(2), "p1", 5, testRNG(1))
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestNextPlayerCycles(t *testing.T) {
	s := newTestState(t, nil, "a", "b", "c", "d")

	start := s.TurnOrder[0]
	current := start
	visited := make(map[string]bool)
	for i := 0; i < len(s.TurnOrder); i++ {
		visited[current] = true
		current = s.NextPlayer(current)
	}
	assert.Equal(t, start, current, "must return to the start after len(turnOrder) steps")
	assert.Len(t, visited, len(s.TurnOrder))
}

func TestSetStatusOnlyMovesForward(t *testing.T) {
	s := newTestState(t, nil, "a", "b")
	require.NoError(t, s.SetStatus(StatusFinished))
	assert.ErrorIs(t, s.SetStatus(StatusPlaying), ErrStatusRegression)
	assert.Equal(t, StatusFinished, s.Status)
}

func TestRemovePlayer(t *testing.T) {
	s := newTestState(t, map[string]string{"a": "2h", "b": "3h", "c": "4h"}, "a", "b", "c")

	require.True(t, s.RemovePlayer("a"))
	assert.Equal(t, []string{"b", "c"}, s.TurnOrder)
	assert.Equal(t, "b", s.HostID, "host moves to the first remaining player")
	assert.Equal(t, StatusPlaying, s.Status)

	assert.False(t, s.RemovePlayer("a"))

	require.True(t, s.RemovePlayer("c"))
	assert.Equal(t, StatusFinished, s.Status)
	assert.Empty(t, s.CurrentPlayerID)
}

func TestCloneIsDeep(t *testing.T) {
	s := newTestState(t, map[string]string{"a": "2h 3h", "b": "4h"}, "a", "b")
	s.LeadSuit = suitPtr(deck.Hearts)

	c := s.Clone()
	c.Players[0].Hand[0] = card("As")
	*c.LeadSuit = deck.Spades
	c.TurnOrder[0] = "z"

	assert.Equal(t, card("2h"), s.Players[0].Hand[0])
	assert.Equal(t, deck.Hearts, *s.LeadSuit)
	assert.Equal(t, "a", s.TurnOrder[0])
}
