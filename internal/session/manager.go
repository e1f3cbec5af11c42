package session

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/trickster/internal/game"
	"github.com/lox/trickster/internal/gameid"
	"github.com/lox/trickster/internal/randutil"
)

// ErrGameInProgress is returned when a room already has a running game.
var ErrGameInProgress = errors.New("a game is already in progress in this room")

// Config holds the timing knobs for running games.
type Config struct {
	TurnTimeout time.Duration
	TrickDelay  time.Duration
}

// DefaultConfig returns the standard turn and trick timings.
func DefaultConfig() Config {
	return Config{
		TurnTimeout: 60 * time.Second,
		TrickDelay:  2 * time.Second,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for every session timer.
func WithClock(clock quartz.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithConfig overrides the default timings.
func WithConfig(config Config) Option {
	return func(m *Manager) { m.config = config }
}

// WithRand sets the parent random source. Each game gets its own stream
// split from it.
func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) { m.rng = rng }
}

// OnStart registers a callback run after a game is registered and before its
// first state is published.
func OnStart(fn func(gameID, roomID string)) Option {
	return func(m *Manager) { m.onStart = fn }
}

// OnFinish registers a callback run after a game leaves the registry. It runs
// under the finished session's lock and must not call back into it.
func OnFinish(fn func(gameID, roomID string)) Option {
	return func(m *Manager) { m.onFinish = fn }
}

// Manager is the registry of running games. Sessions unregister themselves
// when they finish.
//
// Lock order is session then manager: the manager never calls into a
// session while holding its own lock.
type Manager struct {
	logger    *log.Logger
	transport Transport
	clock     quartz.Clock
	config    Config
	onStart   func(gameID, roomID string)
	onFinish  func(gameID, roomID string)

	mu     sync.Mutex
	rng    *rand.Rand
	byID   map[string]*Session
	byRoom map[string]*Session
}

// NewManager creates an empty registry that publishes through transport.
func NewManager(logger *log.Logger, transport Transport, opts ...Option) *Manager {
	m := &Manager{
		logger:    logger.WithPrefix("session"),
		transport: transport,
		clock:     quartz.NewReal(),
		config:    DefaultConfig(),
		byID:      make(map[string]*Session),
		byRoom:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng, _ = randutil.FromConfig(0)
	}
	return m
}

// Start deals a new game for the room and begins the first turn.
func (m *Manager) Start(roomID, hostID string, participants []game.Participant, maxPlayers int) (*Session, error) {
	m.mu.Lock()
	if existing, ok := m.byRoom[roomID]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrGameInProgress, existing.ID())
	}
	rng := randutil.Split(m.rng)
	state, err := game.NewGame(gameid.WithPrefix("game"), roomID, participants, hostID, maxPlayers, rng)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	s := newSession(state, m.config, m.clock, rng, m.transport, m.logger, m.remove)
	m.byID[s.ID()] = s
	m.byRoom[roomID] = s
	m.mu.Unlock()

	if m.onStart != nil {
		m.onStart(s.ID(), roomID)
	}
	s.start()
	return s, nil
}

// Get returns the session with the given game id.
func (m *Manager) Get(gameID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[gameID]
	return s, ok
}

// ForRoom returns the running session of a room.
func (m *Manager) ForRoom(roomID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byRoom[roomID]
	return s, ok
}

// Count returns the number of running games.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	registered := m.byID[s.ID()] == s
	if registered {
		delete(m.byID, s.ID())
	}
	if m.byRoom[s.RoomID()] == s {
		delete(m.byRoom, s.RoomID())
	}
	m.mu.Unlock()

	if registered && m.onFinish != nil {
		m.onFinish(s.ID(), s.RoomID())
	}
}

// Remove stops a game without publishing a result and drops it from the
// registry.
func (m *Manager) Remove(gameID string) bool {
	s, ok := m.Get(gameID)
	if !ok {
		return false
	}
	s.Stop()
	m.remove(s)
	return true
}

// Shutdown stops every session's timers and empties the registry.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		sessions = append(sessions, s)
	}
	clear(m.byID)
	clear(m.byRoom)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	if len(sessions) > 0 {
		m.logger.Info("Stopped running games", "count", len(sessions))
	}
}
