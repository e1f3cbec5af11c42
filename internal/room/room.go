// Package room tracks who is in which room, who hosts it, and which players
// are temporarily offline.
package room

import (
	"errors"
	"slices"
	"time"

	"github.com/lox/trickster/internal/game"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrNotHost          = errors.New("only the host can do that")
	ErrNotInRoom        = errors.New("player is not in this room")
	ErrAlreadyInRoom    = errors.New("player is already in a room")
	ErrGameInProgress   = errors.New("a game is already in progress")
	ErrNotEnoughPlayers = errors.New("at least two players are needed to start")
	ErrBadResumeToken   = errors.New("resume token does not match")
)

// Member is one player seated in a room.
type Member struct {
	ID        string
	Name      string
	SessionID string // transport session, "" while offline
	Online    bool
	VoiceSlot int
	JoinedAt  time.Time

	// ResumeToken proves ownership of the seat on reconnect. It is only
	// ever sent to the member themselves.
	ResumeToken string
}

// Room is a point-in-time copy of a room. Mutating it has no effect on the
// manager.
type Room struct {
	ID         string
	HostID     string
	MaxPlayers int
	GameID     string
	CreatedAt  time.Time
	Members    []Member
}

// Member returns the member with the given id.
func (r Room) Member(id string) (Member, bool) {
	i := slices.IndexFunc(r.Members, func(m Member) bool { return m.ID == id })
	if i < 0 {
		return Member{}, false
	}
	return r.Members[i], true
}

// Online returns the number of connected members.
func (r Room) Online() int {
	n := 0
	for _, m := range r.Members {
		if m.Online {
			n++
		}
	}
	return n
}

// Participants converts the members, in join order, into game participants.
func (r Room) Participants() []game.Participant {
	out := make([]game.Participant, len(r.Members))
	for i, m := range r.Members {
		out[i] = game.Participant{
			ID:        m.ID,
			Name:      m.Name,
			VoiceSlot: m.VoiceSlot,
			Connected: m.Online,
		}
	}
	return out
}

// Summary is the public listing of a room.
type Summary struct {
	ID         string    `json:"id"`
	HostID     string    `json:"hostId"`
	Players    int       `json:"players"`
	Online     int       `json:"online"`
	MaxPlayers int       `json:"maxPlayers"`
	InGame     bool      `json:"inGame"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Summary returns the listing entry for the room.
func (r Room) Summary() Summary {
	return Summary{
		ID:         r.ID,
		HostID:     r.HostID,
		Players:    len(r.Members),
		Online:     r.Online(),
		MaxPlayers: r.MaxPlayers,
		InGame:     r.GameID != "",
		CreatedAt:  r.CreatedAt,
	}
}
