package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/trickster/internal/deck"
	"github.com/lox/trickster/internal/protocol"
)

var (
	// ErrNotConnected is returned when sending without an open connection.
	ErrNotConnected = errors.New("not connected")
	// ErrNotInRoom is returned for room actions before a room_joined arrives.
	ErrNotInRoom = errors.New("not in a room")
	// ErrNoGame is returned when playing a card with no game in progress.
	ErrNoGame = errors.New("no game in progress")
	// ErrDisconnected is delivered as an Event when the connection drops.
	ErrDisconnected = errors.New("disconnected from server")
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Event is one thing that happened on the connection: a server message or
// a transport failure.
type Event struct {
	Msg *protocol.Message
	Err error
}

// link is one dialled WebSocket connection. A Client replaces its link
// when it resumes after a drop.
type link struct {
	conn *websocket.Conn
	send chan *protocol.Message
	done chan struct{}
	once sync.Once
}

func (l *link) close() {
	l.once.Do(func() {
		close(l.done)
		_ = l.conn.Close() // Ignore close errors, the link is gone either way
	})
}

// Client is a WebSocket client for a trickster server. Incoming events
// survive reconnects, so callers read a single channel for the whole
// session.
type Client struct {
	serverURL string
	logger    *log.Logger
	events    chan Event
	ctx       context.Context
	cancel    context.CancelFunc

	mu          sync.RWMutex
	link        *link
	roomID      string
	playerID    string
	gameID      string
	resumeToken string // seat ownership proof from room_joined
}

// NewClient creates a client for the server at serverURL (http or ws
// scheme). playerID is the identity to request when creating or joining a
// room and may be empty to let the server pick one.
func NewClient(serverURL, playerID string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		serverURL: serverURL,
		logger:    logger.WithPrefix("client"),
		events:    make(chan Event, 256),
		ctx:       ctx,
		cancel:    cancel,
		playerID:  playerID,
	}
}

// websocketURL converts the server URL to the WebSocket endpoint.
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL: unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// Connect dials the server, replacing any previous connection.
func (c *Client) Connect(ctx context.Context) error {
	endpoint, err := websocketURL(c.serverURL)
	if err != nil {
		return err
	}
	c.logger.Info("Connecting to server", "url", endpoint)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	l := &link{
		conn: conn,
		send: make(chan *protocol.Message, 64),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	old := c.link
	c.link = l
	c.mu.Unlock()
	if old != nil {
		old.close()
	}

	go c.readPump(l)
	go c.writePump(l)

	c.logger.Info("Connected to server")
	return nil
}

// Resume redials and reclaims the seat held before the connection dropped.
func (c *Client) Resume(ctx context.Context) error {
	c.mu.Lock()
	data := protocol.ReconnectData{RoomID: c.roomID, PlayerID: c.playerID, Token: c.resumeToken}
	c.mu.Unlock()
	if data.RoomID == "" || data.PlayerID == "" {
		return ErrNotInRoom
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.send(protocol.TypeReconnect, data)
}

// Close shuts the connection down. Incoming is not closed; use Done.
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	l := c.link
	c.link = nil
	c.mu.Unlock()

	if l != nil {
		l.close()
	}
	c.logger.Info("Disconnected from server")
	return nil
}

// Incoming returns the stream of server messages and transport errors.
func (c *Client) Incoming() <-chan Event {
	return c.events
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// IsConnected returns whether the client currently holds an open connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.link != nil
}

// RoomID returns the room this client last joined.
func (c *Client) RoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

// PlayerID returns the durable identity assigned by the server.
func (c *Client) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// GameID returns the game currently running in the joined room.
func (c *Client) GameID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gameID
}

// CreateRoom asks the server for a new room with this client as host.
func (c *Client) CreateRoom(name string, maxPlayers int) error {
	return c.send(protocol.TypeCreateRoom, protocol.CreateRoomData{
		PlayerID:   c.PlayerID(),
		Name:       name,
		MaxPlayers: maxPlayers,
	})
}

// JoinRoom joins an existing room.
func (c *Client) JoinRoom(roomID, name string) error {
	return c.send(protocol.TypeJoinRoom, protocol.JoinRoomData{
		RoomID:   roomID,
		PlayerID: c.PlayerID(),
		Name:     name,
	})
}

// LeaveRoom leaves the joined room.
func (c *Client) LeaveRoom() error {
	roomID := c.RoomID()
	if roomID == "" {
		return ErrNotInRoom
	}
	return c.send(protocol.TypeLeaveRoom, protocol.LeaveRoomData{RoomID: roomID})
}

// StartGame asks the server to deal a game in the joined room.
func (c *Client) StartGame() error {
	roomID := c.RoomID()
	if roomID == "" {
		return ErrNotInRoom
	}
	return c.send(protocol.TypeStartGame, protocol.StartGameData{RoomID: roomID})
}

// PlayCard plays a card into the current trick.
func (c *Client) PlayCard(card deck.Card) error {
	gameID := c.GameID()
	if gameID == "" {
		return ErrNoGame
	}
	return c.send(protocol.TypePlayCard, protocol.PlayCardData{GameID: gameID, Card: card})
}

func (c *Client) send(messageType protocol.MessageType, data any) error {
	msg, err := protocol.NewMessage(messageType, data)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// SendMessage queues a message for the current connection.
func (c *Client) SendMessage(msg *protocol.Message) error {
	c.mu.RLock()
	l := c.link
	c.mu.RUnlock()
	if l == nil {
		return ErrNotConnected
	}

	select {
	case l.send <- msg:
		return nil
	case <-l.done:
		return ErrNotConnected
	default:
		return fmt.Errorf("send buffer full")
	}
}

// track records the identifiers the server hands out so later requests
// and Resume can refer to them.
func (c *Client) track(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeRoomJoined:
		var data protocol.RoomJoinedData
		if err := msg.Decode(&data); err != nil {
			return
		}
		c.mu.Lock()
		c.roomID, c.playerID, c.gameID = data.RoomID, data.PlayerID, data.GameID
		c.resumeToken = data.ResumeToken
		c.mu.Unlock()

	case protocol.TypeGameState:
		var data protocol.GameStateData
		if err := msg.Decode(&data); err != nil || data.State == nil {
			return
		}
		c.mu.Lock()
		if data.RoomID == c.roomID {
			c.gameID = data.ID
		}
		c.mu.Unlock()

	case protocol.TypeGameOver:
		var data protocol.GameOverData
		if err := msg.Decode(&data); err != nil {
			return
		}
		c.mu.Lock()
		if c.gameID == data.GameID {
			c.gameID = ""
		}
		c.mu.Unlock()

	case protocol.TypePresence:
		var data protocol.PresenceData
		if err := msg.Decode(&data); err != nil {
			return
		}
		c.mu.Lock()
		if data.Kind == protocol.PresenceLeft && data.PlayerID == c.playerID && data.RoomID == c.roomID {
			c.roomID, c.gameID, c.resumeToken = "", "", ""
		}
		c.mu.Unlock()
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// readPump handles incoming messages on one connection.
func (c *Client) readPump(l *link) {
	defer l.close()

	for {
		var msg protocol.Message
		if err := l.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}

			c.mu.Lock()
			current := c.link == l
			if current {
				c.link = nil
			}
			c.mu.Unlock()

			// A replaced link going away is expected.
			if current {
				c.emit(Event{Err: fmt.Errorf("%w: %v", ErrDisconnected, err)})
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type)
		c.track(&msg)
		c.emit(Event{Msg: &msg})
	}
}

// writePump handles outgoing messages on one connection.
func (c *Client) writePump(l *link) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		l.close()
	}()

	for {
		select {
		case msg := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteJSON(msg); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-l.done:
			return
		}
	}
}
