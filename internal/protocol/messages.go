package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lox/trickster/internal/deck"
	"github.com/lox/trickster/internal/game"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Client -> Server
	TypeCreateRoom MessageType = "create_room"
	TypeJoinRoom   MessageType = "join_room"
	TypeLeaveRoom  MessageType = "leave_room"
	TypeStartGame  MessageType = "start_game"
	TypePlayCard   MessageType = "play_card"
	TypeReconnect  MessageType = "reconnect"

	// Server -> Client
	TypeRoomJoined    MessageType = "room_joined"
	TypeGameState     MessageType = "game_state"
	TypeTrickComplete MessageType = "trick_complete"
	TypeGameOver      MessageType = "game_over"
	TypePresence      MessageType = "presence"
	TypePlayerTimeout MessageType = "player_timeout"
	TypeError         MessageType = "error"
)

func (t MessageType) String() string {
	return string(t)
}

// Error codes carried in ErrorData.Code
const (
	CodeInvalidMessage     = "invalid_message"
	CodeUnknownMessageType = "unknown_message_type"
	CodeRoomNotFound       = "room_not_found"
	CodeRoomFull           = "room_full"
	CodeNotInRoom          = "not_in_room"
	CodeNotHost            = "not_host"
	CodeNotEnoughPlayers   = "not_enough_players"
	CodeGameInProgress     = "game_in_progress"
	CodeGameNotFound       = "game_not_found"
	CodeIllegalMove        = "illegal_move"
	CodeAlreadyInRoom      = "already_in_room"
	CodeBadResumeToken     = "bad_resume_token"
	CodeInternal           = "internal_error"
)

// ErrInvalidPayload is wrapped by every request validation failure.
var ErrInvalidPayload = errors.New("invalid payload")

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// MustMessage is NewMessage for payloads that always encode.
func MustMessage(messageType MessageType, data any) *Message {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		panic(fmt.Sprintf("encode %s: %v", messageType, err))
	}
	return msg
}

// Request is implemented by every client payload.
type Request interface {
	Validate() error
}

// Decode unmarshals the payload into v and validates it when v is a Request.
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrInvalidPayload, m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if req, ok := v.(Request); ok {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return nil
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// Client → Server Messages

type CreateRoomData struct {
	PlayerID   string `json:"playerId,omitempty"`
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
}

func (d CreateRoomData) Validate() error {
	if err := required("name", d.Name); err != nil {
		return err
	}
	if d.MaxPlayers != 0 && (d.MaxPlayers < game.MinPlayers || d.MaxPlayers > game.MaxPlayers) {
		return game.ErrInvalidCapacity
	}
	return nil
}

type JoinRoomData struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name"`
}

func (d JoinRoomData) Validate() error {
	if err := required("roomId", d.RoomID); err != nil {
		return err
	}
	return required("name", d.Name)
}

type LeaveRoomData struct {
	RoomID string `json:"roomId"`
}

func (d LeaveRoomData) Validate() error {
	return required("roomId", d.RoomID)
}

type StartGameData struct {
	RoomID string `json:"roomId"`
}

func (d StartGameData) Validate() error {
	return required("roomId", d.RoomID)
}

type PlayCardData struct {
	GameID string    `json:"gameId"`
	Card   deck.Card `json:"card"`
}

func (d PlayCardData) Validate() error {
	if err := required("gameId", d.GameID); err != nil {
		return err
	}
	if !d.Card.Valid() {
		return errors.New("card is required")
	}
	return nil
}

type ReconnectData struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Token    string `json:"token"` // resume token from room_joined
}

func (d ReconnectData) Validate() error {
	if err := required("roomId", d.RoomID); err != nil {
		return err
	}
	if err := required("playerId", d.PlayerID); err != nil {
		return err
	}
	return required("token", d.Token)
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"` // rule broken by an illegal move
}

type MemberInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Online    bool   `json:"online"`
	VoiceSlot int    `json:"voiceSlot"`
}

type RoomJoinedData struct {
	RoomID     string       `json:"roomId"`
	PlayerID   string       `json:"playerId"`
	HostID     string       `json:"hostId"`
	MaxPlayers int          `json:"maxPlayers"`
	VoiceSlot  int          `json:"voiceSlot"`
	Members    []MemberInfo `json:"members"`
	GameID     string       `json:"gameId,omitempty"`

	// ResumeToken must be presented to reclaim this seat after a dropped
	// connection.
	ResumeToken string `json:"resumeToken"`
}

// GameStateData is the per-recipient sanitized view of a game.
type GameStateData struct {
	*game.State
	TurnEndsAt *time.Time `json:"turnEndsAt,omitempty"`
}

type TrickCompleteData struct {
	GameID      string           `json:"gameId"`
	WinnerID    string           `json:"winnerId"`
	Trick       []game.TrickCard `json:"trick"`
	TrickNumber int              `json:"trickNumber"`
}

// Game over reasons
const (
	ReasonComplete  = "complete"
	ReasonAbandoned = "abandoned"
)

type GameOverData struct {
	GameID  string        `json:"gameId"`
	Reason  string        `json:"reason"`
	Results []game.Result `json:"results"`
}

// PresenceKind describes a membership change.
type PresenceKind string

const (
	PresenceJoined       PresenceKind = "joined"
	PresenceReconnected  PresenceKind = "reconnected"
	PresenceDisconnected PresenceKind = "disconnected"
	PresenceLeft         PresenceKind = "left"
)

type PresenceData struct {
	RoomID   string       `json:"roomId"`
	Kind     PresenceKind `json:"kind"`
	PlayerID string       `json:"playerId"`
	HostID   string       `json:"hostId"`
	Members  []MemberInfo `json:"members"`
}

type PlayerTimeoutData struct {
	GameID   string    `json:"gameId"`
	PlayerID string    `json:"playerId"`
	Card     deck.Card `json:"card"`
}
