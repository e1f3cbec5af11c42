package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/trickster/internal/protocol"
	"github.com/lox/trickster/internal/room"
	"github.com/lox/trickster/internal/session"
	"github.com/lox/trickster/internal/voice"
)

// Server represents the WebSocket server. It is the message transport for
// every running game.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc

	rooms      *room.Manager
	sessions   *session.Manager
	voice      *voice.Issuer
	maxPlayers int
}

// Options carries the collaborators and limits a Server runs with.
type Options struct {
	Rooms      []room.Option
	Sessions   []session.Option
	Voice      *voice.Issuer
	MaxPlayers int // default room capacity
}

// NewServer creates a new WebSocket server listening on addr.
func NewServer(addr string, logger *log.Logger, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients are served from other origins
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		voice:       opts.Voice,
		maxPlayers:  opts.MaxPlayers,
	}
	if s.maxPlayers == 0 {
		s.maxPlayers = 4
	}

	roomOpts := append([]room.Option{room.OnExpire(s.handleExpiry)}, opts.Rooms...)
	s.rooms = room.NewManager(logger, roomOpts...)

	sessionOpts := append([]session.Option{session.OnStart(s.handleGameStarted), session.OnFinish(s.handleGameFinished)}, opts.Sessions...)
	s.sessions = session.NewManager(logger, s, sessionOpts...)

	go s.run()
	return s
}

// Handler returns the HTTP routes served by this server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/rooms", s.handleRooms)
	mux.HandleFunc("/voice/token", s.handleVoiceToken)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting WebSocket server", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Stop closes every connection and stops all game and grace timers.
func (s *Server) Stop() {
	s.cancel()
	s.sessions.Shutdown()
	s.rooms.Close()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
	s.mu.Unlock()
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "session", conn.ID(), "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			_, ok := s.connections[conn]
			delete(s.connections, conn)
			total := len(s.connections)
			s.mu.Unlock()

			if ok {
				_ = conn.Close() // Ignore close errors during unregistration
				// Game and room locks are never taken under s.mu.
				s.handleDisconnect(conn)
			}
			s.logger.Info("Client disconnected", "session", conn.ID(), "total", total)

		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		_ = client.Close()
		return
	}
	client.Start()

	// Connection cleanup is handled by the connection itself
	go func() {
		<-client.ctx.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// BroadcastToRoom sends a message to every connection seated in roomID.
func (s *Server) BroadcastToRoom(roomID string, msg *protocol.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if conn.GetRoom() == roomID {
			if err := conn.SendMessage(msg); err != nil {
				s.logger.Error("Failed to send message to client", "error", err, "player", conn.GetPlayer())
			} else {
				count++
			}
		}
	}

	s.logger.Debug("Broadcasted message to room", "room", roomID, "type", msg.Type, "recipients", count)
}

// SendToPlayer sends a message to the connection a player is bound to.
func (s *Server) SendToPlayer(playerID string, msg *protocol.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for conn := range s.connections {
		if conn.GetPlayer() == playerID {
			return conn.SendMessage(msg)
		}
	}

	return fmt.Errorf("player not connected: %s", playerID)
}

// connectionFor returns the connection with the given session id.
func (s *Server) connectionFor(sessionID string) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for conn := range s.connections {
		if conn.ID() == sessionID {
			return conn
		}
	}
	return nil
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}
