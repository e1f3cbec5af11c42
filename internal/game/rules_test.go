package game

import (
	"errors"
	"testing"

	"github.com/lox/trickster/internal/deck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMove(t *testing.T) {
	hands := map[string]string{
		"a": "7d 2h",
		"b": "2d 9s",
		"c": "Ks Qs",
	}

	tests := []struct {
		name     string
		setup    func(s *State)
		player   string
		card     string
		valid    bool
		expected RejectReason
	}{
		{name: "leader may play anything", player: "a", card: "2h", valid: true},
		{name: "unknown player", player: "zed", card: "2h", expected: ReasonUnknownPlayer},
		{name: "not your turn", player: "b", card: "2d", expected: ReasonNotYourTurn},
		{name: "card not in hand", player: "a", card: "As", expected: ReasonCardNotInHand},
		{
			name: "must follow suit",
			setup: func(s *State) {
				require.NoError(t, ApplyMove(s, "a", card("7d")))
				s.CurrentPlayerID = "b"
			},
			player: "b", card: "9s", expected: ReasonMustFollowSuit,
		},
		{
			name: "following suit is legal",
			setup: func(s *State) {
				require.NoError(t, ApplyMove(s, "a", card("7d")))
				s.CurrentPlayerID = "b"
			},
			player: "b", card: "2d", valid: true,
		},
		{
			name: "void in lead suit may discard",
			setup: func(s *State) {
				require.NoError(t, ApplyMove(s, "a", card("7d")))
				s.CurrentPlayerID = "c"
			},
			player: "c", card: "Qs", valid: true,
		},
		{
			name:   "finished game rejects everything",
			setup:  func(s *State) { s.Status = StatusFinished },
			player: "a", card: "7d", expected: ReasonGameNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState(t, hands, "a", "b", "c")
			if tt.setup != nil {
				tt.setup(s)
			}
			before := s.Clone()

			res := ValidateMove(s, tt.player, card(tt.card))
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.expected, res.Reason)
			if !tt.valid {
				assert.NotEmpty(t, res.Message)
				var rej *RejectError
				require.True(t, errors.As(res.Err(), &rej))
				assert.Equal(t, tt.expected, rej.Reason)
			} else {
				assert.NoError(t, res.Err())
			}
			assert.Equal(t, before, s, "validation must not mutate state")
		})
	}
}

func TestValidateMoveRejectsOffSuitOnlyWhenHoldingLeadSuit(t *testing.T) {
	for _, suit := range deck.Suits {
		s := newTestState(t, map[string]string{"a": "Ah Ad Ac As", "b": "2h 2d 2c 2s"}, "a", "b")
		s.LeadSuit = suitPtr(suit)
		s.CurrentTrick = []TrickCard{{PlayerID: "a", Card: deck.NewCard(suit, deck.Ace)}}
		s.CurrentPlayerID = "b"

		for _, c := range s.Player("b").Hand {
			res := ValidateMove(s, "b", c)
			assert.Equal(t, c.Suit == suit, res.Valid, "lead %s, card %s", suit, c)
		}
	}

	s := newTestState(t, map[string]string{"a": "Ah", "b": "2d 2c"}, "a", "b")
	s.LeadSuit = suitPtr(deck.Hearts)
	s.CurrentPlayerID = "b"
	for _, c := range s.Player("b").Hand {
		assert.True(t, ValidateMove(s, "b", c).Valid, "void player may play %s", c)
	}
}

func TestApplyMove(t *testing.T) {
	s := newTestState(t, map[string]string{"a": "7d 2h", "b": "2d"}, "a", "b")

	require.NoError(t, ApplyMove(s, "a", card("7d")))
	assert.Equal(t, deck.MustParseCards("2h"), s.Player("a").Hand)
	require.NotNil(t, s.LeadSuit)
	assert.Equal(t, deck.Diamonds, *s.LeadSuit)
	assert.Equal(t, []TrickCard{{PlayerID: "a", Card: card("7d")}}, s.CurrentTrick)

	err := ApplyMove(s, "a", card("2h"))
	var rej *RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonNotYourTurn, rej.Reason)
	assert.Len(t, s.CurrentTrick, 1)
}

func TestTrickWinnerScenario(t *testing.T) {
	// A leads 7♦, B plays 2♦, C plays K♦, D (void in diamonds) plays 3♣.
	s := newTestState(t, map[string]string{
		"A": "7d 4h 5h",
		"B": "2d 6h 7h",
		"C": "Kd 8h 9h",
		"D": "3c 10h Jh",
	}, "A", "B", "C", "D")

	for _, play := range []struct{ player, card string }{
		{"A", "7d"}, {"B", "2d"}, {"C", "Kd"}, {"D", "3c"},
	} {
		s.CurrentPlayerID = play.player
		require.True(t, ValidateMove(s, play.player, card(play.card)).Valid, "%s playing %s", play.player, play.card)
		require.NoError(t, ApplyMove(s, play.player, card(play.card)))
	}

	assert.Equal(t, "C", TrickWinner(s.CurrentTrick, *s.LeadSuit))
}

func TestTrickWinnerIgnoresOffSuit(t *testing.T) {
	trick := []TrickCard{
		{PlayerID: "a", Card: card("2h")},
		{PlayerID: "b", Card: card("As")},
		{PlayerID: "c", Card: card("3h")},
		{PlayerID: "d", Card: card("Ac")},
	}
	assert.Equal(t, "c", TrickWinner(trick, deck.Hearts))
}

func TestTrickWinnerPanicsWithoutLeadSuit(t *testing.T) {
	trick := []TrickCard{{PlayerID: "a", Card: card("2h")}}
	defer func() {
		r := recover()
		require.NotNil(t, r)
		_, ok := r.(StructuralViolation)
		assert.True(t, ok, "expected StructuralViolation, got %T", r)
	}()
	TrickWinner(trick, deck.Spades)
}

func TestProcessTrickWin(t *testing.T) {
	s := newTestState(t, map[string]string{"a": "2h", "b": "3h", "c": "4h"}, "a", "b", "c")
	s.Player("b").TricksWon = 2
	s.CurrentTrick = []TrickCard{{PlayerID: "a", Card: card("5d")}}
	s.LeadSuit = suitPtr(deck.Diamonds)
	s.CurrentPlayerID = ""

	ProcessTrickWin(s, "c")

	assert.Equal(t, 0, s.Player("a").TricksWon)
	assert.Equal(t, 2, s.Player("b").TricksWon)
	assert.Equal(t, 1, s.Player("c").TricksWon)
	assert.Empty(t, s.CurrentTrick)
	assert.Nil(t, s.LeadSuit)
	assert.Equal(t, "c", s.CurrentPlayerID)
	assert.Equal(t, 2, s.TrickNumber)
	assert.Len(t, s.LastTrick, 1)
	assert.Equal(t, StatusPlaying, s.Status)
}

func TestProcessTrickWinFinishesOnEmptyHands(t *testing.T) {
	s := newTestState(t, map[string]string{"a": "", "b": ""}, "a", "b")
	s.CurrentTrick = []TrickCard{{PlayerID: "a", Card: card("5d")}, {PlayerID: "b", Card: card("6d")}}
	s.LeadSuit = suitPtr(deck.Diamonds)

	ProcessTrickWin(s, "b")

	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, 1, s.Player("b").TricksWon)
}

func TestFullGameConservesCards(t *testing.T) {
	s, err := NewGame("g", "r", participants(4), "p1", 4, testRNG(99))
	require.NoError(t, err)

	initial := make(map[string][]deck.Card)
	for _, p := range s.Players {
		initial[p.ID] = append([]deck.Card(nil), p.Hand...)
	}
	played := make(map[string][]deck.Card)
	rng := testRNG(5)

	for s.Status == StatusPlaying {
		current := s.CurrentPlayerID
		p := s.Player(current)
		c, ok := ChooseAutoplayCard(p.Hand, s.CurrentTrick, s.LeadSuit, rng)
		require.True(t, ok)
		require.NoError(t, ApplyMove(s, current, c))
		played[current] = append(played[current], c)

		if len(s.CurrentTrick) == len(s.TurnOrder) {
			ProcessTrickWin(s, TrickWinner(s.CurrentTrick, *s.LeadSuit))
		} else {
			s.CurrentPlayerID = s.NextPlayer(current)
		}
	}

	total := 0
	for _, p := range s.Players {
		assert.Empty(t, p.Hand)
		assert.ElementsMatch(t, initial[p.ID], played[p.ID])
		total += p.TricksWon
	}
	assert.Equal(t, 13, total)
	assert.Equal(t, 14, s.TrickNumber)
}
