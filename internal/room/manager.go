package room

import (
	"crypto/subtle"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/trickster/internal/game"
	"github.com/lox/trickster/internal/gameid"
)

// DefaultGrace is how long an offline player keeps their seat.
const DefaultGrace = 60 * time.Second

// TagGrace labels grace timers on the clock.
const TagGrace = "grace"

// Expiry describes a player pruned after their grace period ran out.
type Expiry struct {
	PlayerID string
	// Room is the room after removal. It has no members if the room was
	// closed.
	Room Room
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock for grace timers.
func WithClock(clock quartz.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithGrace sets how long offline players keep their seat.
func WithGrace(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

// OnExpire registers a callback run, without any lock held, when an offline
// player is pruned.
func OnExpire(fn func(Expiry)) Option {
	return func(m *Manager) { m.onExpire = fn }
}

type member struct {
	Member
	grace      *quartz.Timer
	generation uint64
}

type room struct {
	id         string
	hostID     string
	maxPlayers int
	gameID     string
	starting   bool // between BeginStart and SetGame
	createdAt  time.Time
	members    []*member
}

func (r *room) member(id string) *member {
	for _, m := range r.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *room) snapshot() Room {
	out := Room{
		ID:         r.id,
		HostID:     r.hostID,
		MaxPlayers: r.maxPlayers,
		GameID:     r.gameID,
		CreatedAt:  r.createdAt,
		Members:    make([]Member, len(r.members)),
	}
	for i, m := range r.members {
		out.Members[i] = m.Member
	}
	return out
}

// freeSlot returns the lowest voice slot no member holds.
func (r *room) freeSlot() int {
	for slot := 0; ; slot++ {
		if !slices.ContainsFunc(r.members, func(m *member) bool { return m.VoiceSlot == slot }) {
			return slot
		}
	}
}

// remove drops a member and hands the host role to the earliest remaining
// member if needed.
func (r *room) remove(id string) {
	r.members = slices.DeleteFunc(r.members, func(m *member) bool {
		if m.ID == id {
			if m.grace != nil {
				m.grace.Stop()
			}
			return true
		}
		return false
	})
	if r.hostID == id {
		r.hostID = ""
		if len(r.members) > 0 {
			r.hostID = r.members[0].ID
		}
	}
}

// Manager owns every room and the player → room index.
type Manager struct {
	logger   *log.Logger
	clock    quartz.Clock
	grace    time.Duration
	onExpire func(Expiry)

	mu       sync.RWMutex
	rooms    map[string]*room
	byPlayer map[string]string
}

// NewManager creates an empty room registry.
func NewManager(logger *log.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger:   logger.WithPrefix("room"),
		clock:    quartz.NewReal(),
		grace:    DefaultGrace,
		rooms:    make(map[string]*room),
		byPlayer: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a new room with the caller as host. An empty playerID is
// replaced with a generated one.
func (m *Manager) Create(sessionID, playerID, name string, maxPlayers int) (Room, error) {
	if maxPlayers < game.MinPlayers || maxPlayers > game.MaxPlayers {
		return Room{}, game.ErrInvalidCapacity
	}
	if playerID == "" {
		playerID = gameid.WithPrefix("player")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byPlayer[playerID]; ok {
		return Room{}, fmt.Errorf("%w: %s", ErrAlreadyInRoom, existing)
	}
	now := m.clock.Now()
	r := &room{
		id:         gameid.WithPrefix("room"),
		hostID:     playerID,
		maxPlayers: maxPlayers,
		createdAt:  now,
	}
	r.members = append(r.members, &member{Member: Member{
		ID:        playerID,
		Name:      displayName(name, playerID),
		SessionID: sessionID,
		Online:    true,
		VoiceSlot: 0,
		JoinedAt:  now,

		ResumeToken: uuid.NewString(),
	}})
	m.rooms[r.id] = r
	m.byPlayer[playerID] = r.id

	m.logger.Info("Room created", "room", r.id, "host", playerID, "max_players", maxPlayers)
	return r.snapshot(), nil
}

// Join seats a player in an existing room.
func (m *Manager) Join(sessionID, roomID, playerID, name string) (Room, error) {
	if playerID == "" {
		playerID = gameid.WithPrefix("player")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if existing, ok := m.byPlayer[playerID]; ok {
		return Room{}, fmt.Errorf("%w: %s", ErrAlreadyInRoom, existing)
	}
	if r.gameID != "" || r.starting {
		return Room{}, ErrGameInProgress
	}
	if len(r.members) >= r.maxPlayers {
		return Room{}, ErrRoomFull
	}
	r.members = append(r.members, &member{Member: Member{
		ID:        playerID,
		Name:      displayName(name, playerID),
		SessionID: sessionID,
		Online:    true,
		VoiceSlot: r.freeSlot(),
		JoinedAt:  m.clock.Now(),

		ResumeToken: uuid.NewString(),
	}})
	m.byPlayer[playerID] = roomID

	m.logger.Info("Player joined room", "room", roomID, "player", playerID, "members", len(r.members))
	return r.snapshot(), nil
}

// Leave removes a player from their room. The room is closed once empty.
func (m *Manager) Leave(roomID, playerID string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if r.member(playerID) == nil {
		return Room{}, ErrNotInRoom
	}
	m.removeLocked(r, playerID)
	m.logger.Info("Player left room", "room", roomID, "player", playerID, "host", r.hostID)
	return r.snapshot(), nil
}

// MarkOffline flags the member bound to sessionID as disconnected and starts
// their grace timer. It returns false if the session is not seated anywhere.
func (m *Manager) MarkOffline(sessionID string) (Room, string, bool) {
	if sessionID == "" {
		return Room{}, "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rooms {
		for _, mem := range r.members {
			if mem.SessionID != sessionID {
				continue
			}
			mem.SessionID = ""
			mem.Online = false
			m.armGrace(r.id, mem)
			m.logger.Info("Player offline", "room", r.id, "player", mem.ID, "grace", m.grace)
			return r.snapshot(), mem.ID, true
		}
	}
	return Room{}, "", false
}

// Reconnect rebinds a seated player to a new transport session and cancels
// their grace timer. The token must match the seat's resume token. The
// previous session id is returned so the caller can retire it.
func (m *Manager) Reconnect(sessionID, roomID, playerID, token string) (Room, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return Room{}, "", ErrRoomNotFound
	}
	mem := r.member(playerID)
	if mem == nil {
		return Room{}, "", ErrNotInRoom
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(mem.ResumeToken)) != 1 {
		m.logger.Warn("Reconnect with wrong resume token", "room", roomID, "player", playerID)
		return Room{}, "", ErrBadResumeToken
	}
	if mem.grace != nil {
		mem.grace.Stop()
		mem.grace = nil
	}
	mem.generation++
	previous := mem.SessionID
	mem.SessionID = sessionID
	mem.Online = true

	m.logger.Info("Player reconnected", "room", roomID, "player", playerID)
	return r.snapshot(), previous, nil
}

// BeginStart checks that playerID may start a game in the room right now
// and closes the room to joins until SetGame or CancelStart.
func (m *Manager) BeginStart(roomID, playerID string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if r.member(playerID) == nil {
		return Room{}, ErrNotInRoom
	}
	if r.hostID != playerID {
		return Room{}, ErrNotHost
	}
	if r.gameID != "" || r.starting {
		return Room{}, ErrGameInProgress
	}
	if len(r.members) < game.MinPlayers {
		return Room{}, ErrNotEnoughPlayers
	}
	r.starting = true
	return r.snapshot(), nil
}

// CancelStart reopens a room whose game failed to start.
func (m *Manager) CancelStart(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok {
		r.starting = false
	}
}

// SetGame records the running game of a room.
func (m *Manager) SetGame(roomID, gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok {
		r.gameID = gameID
		r.starting = false
	}
}

// ClearGame forgets the room's game if it is still gameID.
func (m *Manager) ClearGame(roomID, gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok && r.gameID == gameID {
		r.gameID = ""
	}
}

// Get returns a copy of the room.
func (m *Manager) Get(roomID string) (Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return r.snapshot(), true
}

// RoomOf returns the id of the room playerID is seated in.
func (m *Manager) RoomOf(playerID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPlayer[playerID]
	return id, ok
}

// List returns summaries of all rooms, oldest first.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.snapshot().Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close stops every grace timer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		for _, mem := range r.members {
			if mem.grace != nil {
				mem.grace.Stop()
				mem.grace = nil
			}
		}
	}
}

func (m *Manager) removeLocked(r *room, playerID string) {
	r.remove(playerID)
	delete(m.byPlayer, playerID)
	if len(r.members) == 0 {
		delete(m.rooms, r.id)
		m.logger.Info("Room closed", "room", r.id)
	}
}

func (m *Manager) armGrace(roomID string, mem *member) {
	if mem.grace != nil {
		mem.grace.Stop()
	}
	mem.generation++
	gen := mem.generation
	playerID := mem.ID
	mem.grace = m.clock.AfterFunc(m.grace, func() {
		m.expire(roomID, playerID, gen)
	}, TagGrace, playerID)
}

func (m *Manager) expire(roomID, playerID string, gen uint64) {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	mem := r.member(playerID)
	if mem == nil || mem.Online || mem.generation != gen {
		m.mu.Unlock()
		return
	}
	mem.grace = nil
	m.removeLocked(r, playerID)
	snapshot := r.snapshot()
	onExpire := m.onExpire
	m.mu.Unlock()

	m.logger.Info("Grace period expired", "room", roomID, "player", playerID, "host", snapshot.HostID)
	if onExpire != nil {
		onExpire(Expiry{PlayerID: playerID, Room: snapshot})
	}
}

func displayName(name, playerID string) string {
	if name != "" {
		return name
	}
	return playerID
}
