package game

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"slices"

	"github.com/lox/trickster/internal/deck"
)

// Player count limits for a single game.
const (
	MinPlayers = 2
	MaxPlayers = 4
)

var (
	ErrNotEnoughPlayers = errors.New("at least two players are required")
	ErrTooManyPlayers   = errors.New("more players than the room allows")
	ErrInvalidCapacity  = fmt.Errorf("max players must be between %d and %d", MinPlayers, MaxPlayers)
	ErrStatusRegression = errors.New("game status cannot move backwards")
)

// StartingCard is the card whose holder leads the first trick.
var StartingCard = deck.NewCard(deck.Clubs, deck.Two)

// Status is the lifecycle stage of a game.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

func (s Status) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusPlaying:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

// Participant is a room member as handed to NewGame by the membership
// service.
type Participant struct {
	ID        string
	Name      string
	VoiceSlot int
	Connected bool
}

// Player is a participant dealt into a game.
type Player struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Hand      []deck.Card `json:"hand"`
	TricksWon int         `json:"tricksWon"`
	VoiceSlot int         `json:"voiceSlot"`
	Connected bool        `json:"connected"`
}

// TrickCard is one play contributed to a trick.
type TrickCard struct {
	PlayerID string    `json:"playerId"`
	Card     deck.Card `json:"card"`
}

// State is the aggregate for one game.
type State struct {
	ID              string      `json:"gameId"`
	RoomID          string      `json:"roomId"`
	Players         []*Player   `json:"players"`
	Deck            []deck.Card `json:"deck"`
	CurrentTrick    []TrickCard `json:"currentTrick"`
	LeadSuit        *deck.Suit  `json:"leadSuit"`
	CurrentPlayerID string      `json:"currentPlayerId"` // "" while a trick is being resolved
	TurnOrder       []string    `json:"turnOrder"`
	Round           int         `json:"round"`
	TrickNumber     int         `json:"trickNumber"`
	Status          Status      `json:"status"`
	HostID          string      `json:"hostId"`
	MaxPlayers      int         `json:"maxPlayers"`
	LastTrick       []TrickCard `json:"lastTrick,omitempty"`
}

// NewGame deals a fresh game for the given participants. The holder of the
// two of clubs leads; if it was discarded as a remainder card the host leads,
// and failing that the first participant.
func NewGame(id, roomID string, participants []Participant, hostID string, maxPlayers int, rng *rand.Rand) (*State, error) {
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayers {
		return nil, ErrInvalidCapacity
	}
	if len(participants) < MinPlayers {
		return nil, ErrNotEnoughPlayers
	}
	if len(participants) > maxPlayers {
		return nil, ErrTooManyPlayers
	}

	cards := deck.NewDeck(rng)
	hands := deck.Deal(cards, len(participants))

	s := &State{
		ID:          id,
		RoomID:      roomID,
		Players:     make([]*Player, len(participants)),
		Round:       1,
		TrickNumber: 1,
		Status:      StatusPlaying,
		HostID:      hostID,
		MaxPlayers:  maxPlayers,
	}
	order := make([]string, len(participants))
	for i, p := range participants {
		s.Players[i] = &Player{
			ID:        p.ID,
			Name:      p.Name,
			Hand:      hands[i],
			VoiceSlot: p.VoiceSlot,
			Connected: p.Connected,
		}
		order[i] = p.ID
	}

	starter := order[0]
	if s.Player(hostID) != nil {
		starter = hostID
	}
	for _, p := range s.Players {
		if deck.Contains(p.Hand, StartingCard) {
			starter = p.ID
			break
		}
	}

	start := slices.Index(order, starter)
	s.TurnOrder = slices.Concat(order[start:], order[:start])
	s.CurrentPlayerID = starter
	return s, nil
}

// Player returns the player with the given id, or nil.
func (s *State) Player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerCount returns the number of players still in the game.
func (s *State) PlayerCount() int {
	return len(s.Players)
}

// SetStatus moves the game forward through waiting, playing and finished.
func (s *State) SetStatus(next Status) error {
	if next.rank() < s.Status.rank() {
		return fmt.Errorf("%w: %s -> %s", ErrStatusRegression, s.Status, next)
	}
	s.Status = next
	return nil
}

// NextPlayer returns the id that follows from in turn order, wrapping around.
// An id not in the turn order yields the first player.
func (s *State) NextPlayer(from string) string {
	if len(s.TurnOrder) == 0 {
		return ""
	}
	i := slices.Index(s.TurnOrder, from)
	return s.TurnOrder[(i+1)%len(s.TurnOrder)]
}

// HasPlayedInTrick reports whether id has already contributed to the
// current trick.
func (s *State) HasPlayedInTrick(id string) bool {
	return slices.ContainsFunc(s.CurrentTrick, func(tc TrickCard) bool {
		return tc.PlayerID == id
	})
}

// AllHandsEmpty reports whether every remaining player is out of cards.
func (s *State) AllHandsEmpty() bool {
	for _, p := range s.Players {
		if len(p.Hand) > 0 {
			return false
		}
	}
	return true
}

// RemovePlayer drops a player from the game and the turn order. Cards they
// already contributed to the current trick stay on the table. The game is
// finished if fewer than two players remain.
func (s *State) RemovePlayer(id string) bool {
	i := slices.IndexFunc(s.Players, func(p *Player) bool { return p.ID == id })
	if i < 0 {
		return false
	}
	s.Players = slices.Delete(s.Players, i, i+1)
	if j := slices.Index(s.TurnOrder, id); j >= 0 {
		s.TurnOrder = slices.Delete(s.TurnOrder, j, j+1)
	}
	if s.HostID == id && len(s.Players) > 0 {
		s.HostID = s.Players[0].ID
	}
	if len(s.Players) < MinPlayers {
		s.CurrentPlayerID = ""
		s.Status = StatusFinished
	}
	return true
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		cp := *p
		cp.Hand = slices.Clone(p.Hand)
		c.Players[i] = &cp
	}
	c.Deck = slices.Clone(s.Deck)
	c.CurrentTrick = slices.Clone(s.CurrentTrick)
	c.LastTrick = slices.Clone(s.LastTrick)
	c.TurnOrder = slices.Clone(s.TurnOrder)
	if s.LeadSuit != nil {
		suit := *s.LeadSuit
		c.LeadSuit = &suit
	}
	return &c
}

// Results returns the per-player trick counts in seating order.
func (s *State) Results() []Result {
	out := make([]Result, len(s.Players))
	for i, p := range s.Players {
		out[i] = Result{PlayerID: p.ID, Name: p.Name, TricksWon: p.TricksWon}
	}
	return out
}

// Result is one player's final tally.
type Result struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	TricksWon int    `json:"tricksWon"`
}
