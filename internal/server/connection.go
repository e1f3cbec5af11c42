package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lox/trickster/internal/protocol"
)

// Connection represents a WebSocket connection to a client. Each connection
// is one transport session; a player is bound to at most one at a time.
type Connection struct {
	id        string
	conn      *websocket.Conn
	send      chan *protocol.Message
	playerID  string
	roomID    string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	server    *Server
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, server *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	return &Connection{
		id:     id,
		conn:   conn,
		send:   make(chan *protocol.Message, 256),
		logger: logger.WithPrefix("conn").With("session", id),
		ctx:    ctx,
		cancel: cancel,
		server: server,
	}
}

// ID returns the transport session id.
func (c *Connection) ID() string {
	return c.id
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.cancel()
		close(c.send)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client without blocking.
func (c *Connection) SendMessage(msg *protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx.Err() != nil {
		return ErrConnectionClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		go func() { _ = c.Close() }()
		return ErrConnectionClosed
	}
}

// Bind associates this connection with a seated player.
func (c *Connection) Bind(playerID, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
	c.roomID = roomID
}

// Unbind clears the player and room association.
func (c *Connection) Unbind() {
	c.Bind("", "")
}

// GetPlayer returns the associated player ID
func (c *Connection) GetPlayer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// GetRoom returns the associated room ID
func (c *Connection) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.GetPlayer())

	switch msg.Type {
	case protocol.TypeCreateRoom:
		var data protocol.CreateRoomData
		if c.decode(msg, &data) {
			c.server.handleCreateRoom(c, data)
		}

	case protocol.TypeJoinRoom:
		var data protocol.JoinRoomData
		if c.decode(msg, &data) {
			c.server.handleJoinRoom(c, data)
		}

	case protocol.TypeLeaveRoom:
		var data protocol.LeaveRoomData
		if c.decode(msg, &data) {
			c.server.handleLeaveRoom(c, data)
		}

	case protocol.TypeStartGame:
		var data protocol.StartGameData
		if c.decode(msg, &data) {
			c.server.handleStartGame(c, data)
		}

	case protocol.TypePlayCard:
		var data protocol.PlayCardData
		if c.decode(msg, &data) {
			c.server.handlePlayCard(c, data)
		}

	case protocol.TypeReconnect:
		var data protocol.ReconnectData
		if c.decode(msg, &data) {
			c.server.handleReconnect(c, data)
		}

	default:
		c.sendError(protocol.ErrorData{
			Code:    protocol.CodeUnknownMessageType,
			Message: "Unknown message type: " + msg.Type.String(),
		})
	}
}

func (c *Connection) decode(msg *protocol.Message, v protocol.Request) bool {
	if err := msg.Decode(v); err != nil {
		c.sendError(protocol.ErrorData{
			Code:    protocol.CodeInvalidMessage,
			Message: "Failed to parse " + msg.Type.String() + ": " + err.Error(),
		})
		return false
	}
	return true
}

// sendMessage queues a message, logging rather than returning failures.
func (c *Connection) sendMessage(messageType protocol.MessageType, data any) {
	msg, err := protocol.NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	_ = c.SendMessage(msg) // Ignore send errors
}

// sendError sends an error message to the client
func (c *Connection) sendError(data protocol.ErrorData) {
	c.sendMessage(protocol.TypeError, data)
}
