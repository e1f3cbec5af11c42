package server

import (
	"errors"

	"github.com/lox/trickster/internal/game"
	"github.com/lox/trickster/internal/protocol"
	"github.com/lox/trickster/internal/room"
	"github.com/lox/trickster/internal/session"
)

// errorData maps a rejection to the error message sent to the requester.
func errorData(err error) protocol.ErrorData {
	var rejection *game.RejectError
	switch {
	case errors.As(err, &rejection):
		return protocol.ErrorData{Code: protocol.CodeIllegalMove, Message: rejection.Message, Reason: string(rejection.Reason)}
	case errors.Is(err, room.ErrRoomNotFound):
		return protocol.ErrorData{Code: protocol.CodeRoomNotFound, Message: "Room not found"}
	case errors.Is(err, room.ErrRoomFull):
		return protocol.ErrorData{Code: protocol.CodeRoomFull, Message: "Room is full"}
	case errors.Is(err, room.ErrNotHost):
		return protocol.ErrorData{Code: protocol.CodeNotHost, Message: "Only the host can start the game"}
	case errors.Is(err, room.ErrNotInRoom):
		return protocol.ErrorData{Code: protocol.CodeNotInRoom, Message: "You are not in this room"}
	case errors.Is(err, room.ErrBadResumeToken):
		return protocol.ErrorData{Code: protocol.CodeBadResumeToken, Message: "Resume token does not match this seat"}
	case errors.Is(err, room.ErrAlreadyInRoom):
		return protocol.ErrorData{Code: protocol.CodeAlreadyInRoom, Message: "You are already in a room"}
	case errors.Is(err, room.ErrGameInProgress), errors.Is(err, session.ErrGameInProgress):
		return protocol.ErrorData{Code: protocol.CodeGameInProgress, Message: "A game is already in progress"}
	case errors.Is(err, room.ErrNotEnoughPlayers), errors.Is(err, game.ErrNotEnoughPlayers):
		return protocol.ErrorData{Code: protocol.CodeNotEnoughPlayers, Message: "At least two players are needed"}
	case errors.Is(err, game.ErrInvalidCapacity), errors.Is(err, game.ErrTooManyPlayers):
		return protocol.ErrorData{Code: protocol.CodeInvalidMessage, Message: err.Error()}
	}
	return protocol.ErrorData{Code: protocol.CodeInternal, Message: "Internal error"}
}

func memberInfo(r room.Room) []protocol.MemberInfo {
	out := make([]protocol.MemberInfo, len(r.Members))
	for i, m := range r.Members {
		out[i] = protocol.MemberInfo{ID: m.ID, Name: m.Name, Online: m.Online, VoiceSlot: m.VoiceSlot}
	}
	return out
}

func roomJoined(r room.Room, playerID string) protocol.RoomJoinedData {
	m, _ := r.Member(playerID)
	return protocol.RoomJoinedData{
		RoomID:     r.ID,
		PlayerID:   playerID,
		HostID:     r.HostID,
		MaxPlayers: r.MaxPlayers,
		VoiceSlot:  m.VoiceSlot,
		Members:    memberInfo(r),
		GameID:     r.GameID,

		ResumeToken: m.ResumeToken,
	}
}

func (s *Server) broadcastPresence(r room.Room, kind protocol.PresenceKind, playerID string) {
	s.BroadcastToRoom(r.ID, protocol.MustMessage(protocol.TypePresence, protocol.PresenceData{
		RoomID:   r.ID,
		Kind:     kind,
		PlayerID: playerID,
		HostID:   r.HostID,
		Members:  memberInfo(r),
	}))
}

// memberFor returns the id of the member bound to a transport session.
func memberFor(r room.Room, sessionID string) string {
	for _, m := range r.Members {
		if m.SessionID == sessionID {
			return m.ID
		}
	}
	return ""
}

func (s *Server) handleCreateRoom(c *Connection, data protocol.CreateRoomData) {
	if c.GetRoom() != "" {
		c.sendError(errorData(room.ErrAlreadyInRoom))
		return
	}
	maxPlayers := data.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = s.maxPlayers
	}

	r, err := s.rooms.Create(c.ID(), data.PlayerID, data.Name, maxPlayers)
	if err != nil {
		c.sendError(errorData(err))
		return
	}
	playerID := memberFor(r, c.ID())
	c.Bind(playerID, r.ID)
	c.sendMessage(protocol.TypeRoomJoined, roomJoined(r, playerID))
}

func (s *Server) handleJoinRoom(c *Connection, data protocol.JoinRoomData) {
	if c.GetRoom() != "" {
		c.sendError(errorData(room.ErrAlreadyInRoom))
		return
	}

	r, err := s.rooms.Join(c.ID(), data.RoomID, data.PlayerID, data.Name)
	if err != nil {
		c.sendError(errorData(err))
		return
	}
	playerID := memberFor(r, c.ID())
	c.Bind(playerID, r.ID)
	c.sendMessage(protocol.TypeRoomJoined, roomJoined(r, playerID))
	s.broadcastPresence(r, protocol.PresenceJoined, playerID)
}

func (s *Server) handleLeaveRoom(c *Connection, data protocol.LeaveRoomData) {
	playerID := c.GetPlayer()
	if c.GetRoom() != data.RoomID || playerID == "" {
		c.sendError(errorData(room.ErrNotInRoom))
		return
	}

	r, err := s.rooms.Leave(data.RoomID, playerID)
	if err != nil {
		c.sendError(errorData(err))
		return
	}
	c.Unbind()

	presence := protocol.PresenceData{
		RoomID:   r.ID,
		Kind:     protocol.PresenceLeft,
		PlayerID: playerID,
		HostID:   r.HostID,
		Members:  memberInfo(r),
	}
	c.sendMessage(protocol.TypePresence, presence)
	s.BroadcastToRoom(r.ID, protocol.MustMessage(protocol.TypePresence, presence))

	if sess, ok := s.sessions.ForRoom(data.RoomID); ok {
		sess.RemovePlayer(playerID)
	}
}

func (s *Server) handleStartGame(c *Connection, data protocol.StartGameData) {
	playerID := c.GetPlayer()
	if c.GetRoom() != data.RoomID || playerID == "" {
		c.sendError(errorData(room.ErrNotInRoom))
		return
	}

	r, err := s.rooms.BeginStart(data.RoomID, playerID)
	if err != nil {
		c.sendError(errorData(err))
		return
	}

	sess, err := s.sessions.Start(r.ID, r.HostID, r.Participants(), r.MaxPlayers)
	if err != nil {
		s.rooms.CancelStart(r.ID)
		c.sendError(errorData(err))
		return
	}
	s.logger.Info("Game started", "room", r.ID, "game", sess.ID(), "players", len(r.Members))
}

func (s *Server) handlePlayCard(c *Connection, data protocol.PlayCardData) {
	playerID := c.GetPlayer()
	if playerID == "" {
		c.sendError(errorData(room.ErrNotInRoom))
		return
	}

	sess, ok := s.sessions.Get(data.GameID)
	if !ok || sess.RoomID() != c.GetRoom() {
		c.sendError(protocol.ErrorData{Code: protocol.CodeGameNotFound, Message: "Game not found"})
		return
	}
	if err := sess.Play(playerID, data.Card); err != nil {
		c.sendError(errorData(err))
	}
}

func (s *Server) handleReconnect(c *Connection, data protocol.ReconnectData) {
	if bound := c.GetRoom(); bound != "" && (bound != data.RoomID || c.GetPlayer() != data.PlayerID) {
		c.sendError(errorData(room.ErrAlreadyInRoom))
		return
	}

	r, previous, err := s.rooms.Reconnect(c.ID(), data.RoomID, data.PlayerID, data.Token)
	if err != nil {
		c.sendError(errorData(err))
		return
	}
	if previous != "" && previous != c.ID() {
		if old := s.connectionFor(previous); old != nil {
			old.Unbind()
		}
	}
	c.Bind(data.PlayerID, r.ID)
	c.sendMessage(protocol.TypeRoomJoined, roomJoined(r, data.PlayerID))
	s.broadcastPresence(r, protocol.PresenceReconnected, data.PlayerID)

	if sess, ok := s.sessions.ForRoom(r.ID); ok {
		sess.Reconnect(data.PlayerID)
	}
}

// handleDisconnect runs after a transport session closes.
func (s *Server) handleDisconnect(c *Connection) {
	r, playerID, ok := s.rooms.MarkOffline(c.ID())
	if !ok {
		return
	}
	c.Unbind()
	s.broadcastPresence(r, protocol.PresenceDisconnected, playerID)

	if sess, ok := s.sessions.ForRoom(r.ID); ok {
		sess.Disconnect(playerID)
		// A reconnect can land between MarkOffline and Disconnect.
		if now, ok := s.rooms.Get(r.ID); ok {
			if m, ok := now.Member(playerID); ok && m.Online {
				sess.Reconnect(playerID)
			}
		}
	}
}

// handleExpiry prunes a player whose reconnect grace ran out.
func (s *Server) handleExpiry(e room.Expiry) {
	if len(e.Room.Members) > 0 {
		s.broadcastPresence(e.Room, protocol.PresenceLeft, e.PlayerID)
	}
	if sess, ok := s.sessions.ForRoom(e.Room.ID); ok {
		sess.RemovePlayer(e.PlayerID)
	}
}

// handleGameStarted closes the room to new members while the game runs.
func (s *Server) handleGameStarted(gameID, roomID string) {
	s.rooms.SetGame(roomID, gameID)
}

// handleGameFinished frees the room for another game.
func (s *Server) handleGameFinished(gameID, roomID string) {
	s.rooms.ClearGame(roomID, gameID)
}
