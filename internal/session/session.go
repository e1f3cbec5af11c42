package session

import (
	rand "math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/trickster/internal/deck"
	"github.com/lox/trickster/internal/game"
	"github.com/lox/trickster/internal/protocol"
)

// Transport delivers messages to participants. Implementations must not
// block and must not call back into a Session.
type Transport interface {
	SendToPlayer(playerID string, msg *protocol.Message) error
	BroadcastToRoom(roomID string, msg *protocol.Message)
}

// Timer tags label the per-turn and trick resolution timers on the clock.
const (
	TagTurn    = "turn"
	TagResolve = "resolve"
)

// Session runs one game. Every exported method takes the session lock, so
// human plays, timeouts, trick resolution and presence changes never
// interleave.
type Session struct {
	mu        sync.Mutex
	state     *game.State
	config    Config
	clock     quartz.Clock
	rng       *rand.Rand
	transport Transport
	logger    *log.Logger
	onFinish  func(*Session)

	// generation is bumped whenever a timer is armed; a callback whose
	// generation is stale is a no-op.
	generation   uint64
	turnTimer    *quartz.Timer
	turnEndsAt   time.Time
	resolveTimer *quartz.Timer
	resolving    bool

	// skipped holds players passed over in the current trick because they
	// were offline when their turn came.
	skipped map[string]bool
	// stalledFrom is set when no connected player could lead; the next
	// reconnect resumes play from here.
	stalledFrom string
}

func newSession(state *game.State, config Config, clock quartz.Clock, rng *rand.Rand, transport Transport, logger *log.Logger, onFinish func(*Session)) *Session {
	return &Session{
		state:     state,
		config:    config,
		clock:     clock,
		rng:       rng,
		transport: transport,
		logger:    logger.With("game", state.ID, "room", state.RoomID),
		onFinish:  onFinish,
		skipped:   make(map[string]bool),
	}
}

// ID returns the game id.
func (s *Session) ID() string {
	return s.state.ID
}

// RoomID returns the room the game belongs to.
func (s *Session) RoomID() string {
	return s.state.RoomID
}

// start publishes the opening state and hands the lead to the first
// connected player.
func (s *Session) start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Game started", "players", s.state.PlayerCount(), "leader", s.state.CurrentPlayerID)
	s.beginTrick(s.state.CurrentPlayerID)
}

// Play handles a card played by a human. Illegal plays return a
// *game.RejectError and leave the state untouched.
func (s *Session) Play(playerID string, card deck.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolving {
		return &game.RejectError{Reason: game.ReasonNotYourTurn, Message: "Wait for the trick to be cleared"}
	}
	return s.play(playerID, card)
}

func (s *Session) play(playerID string, card deck.Card) error {
	if err := game.ApplyMove(s.state, playerID, card); err != nil {
		return err
	}
	s.stopTurnTimer()
	s.logger.Debug("Card played", "player", playerID, "card", card, "trick", len(s.state.CurrentTrick))

	next := s.nextToPlay(playerID)
	if next == "" {
		s.beginResolve()
		return nil
	}
	s.setTurn(next)
	return nil
}

// Disconnect marks a player offline. If it was their turn the turn passes to
// the next connected player; their cards stay in hand.
func (s *Session) Disconnect(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.state.Player(playerID)
	if p == nil {
		return
	}
	p.Connected = false
	s.logger.Info("Player disconnected", "player", playerID)

	if s.state.Status == game.StatusPlaying && !s.resolving && s.state.CurrentPlayerID == playerID {
		s.stopTurnTimer()
		s.skipped[playerID] = true
		s.advanceFrom(playerID)
		return
	}
	s.broadcastState()
}

// Reconnect marks a player online again and pushes everyone, including
// them, a fresh view. A stalled game resumes.
func (s *Session) Reconnect(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.state.Player(playerID)
	if p == nil {
		return
	}
	p.Connected = true
	// A player passed over while offline still owes a card to this trick.
	delete(s.skipped, playerID)
	s.logger.Info("Player reconnected", "player", playerID)

	if s.stalled() {
		from := s.stalledFrom
		s.stalledFrom = ""
		s.beginTrick(from)
		return
	}
	s.broadcastState()
}

// RemovePlayer permanently drops a player. The game ends without resolution
// if fewer than two players remain, and completes if nobody left holds a
// card.
func (s *Session) RemovePlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Player(playerID) == nil || s.state.Status == game.StatusFinished {
		return
	}
	wasCurrent := s.state.CurrentPlayerID == playerID
	prev := s.previousInTurnOrder(playerID)

	s.state.RemovePlayer(playerID)
	delete(s.skipped, playerID)
	s.logger.Info("Player removed", "player", playerID, "remaining", s.state.PlayerCount())

	if s.state.Status == game.StatusFinished {
		s.finish(protocol.ReasonAbandoned)
		return
	}
	if s.stalledFrom == playerID {
		s.stalledFrom = prev
	}
	if s.resolving {
		s.broadcastState()
		return
	}
	// The removed player may have held the last cards in play.
	if len(s.state.CurrentTrick) == 0 && s.state.AllHandsEmpty() {
		s.finish(protocol.ReasonComplete)
		return
	}
	switch {
	case wasCurrent:
		s.stopTurnTimer()
		s.advanceFrom(prev)
	case s.stalled():
		from := s.stalledFrom
		s.stalledFrom = ""
		s.beginTrick(from)
	default:
		s.broadcastState()
	}
}

// View returns the state as playerID may see it.
func (s *Session) View(playerID string) *game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return game.SanitizeFor(s.state, playerID)
}

// SendView pushes a fresh view to one player.
func (s *Session) SendView(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendState(playerID)
}

// Finished reports whether the game is over.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status == game.StatusFinished
}

// Stop cancels all timers without publishing anything. Used on shutdown.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTurnTimer()
	s.stopResolveTimer()
}

// beginTrick hands the lead to the first connected player at or after from.
func (s *Session) beginTrick(from string) {
	clear(s.skipped)
	leader := s.leaderFrom(from)
	if leader == "" {
		s.stall(from)
		return
	}
	s.setTurn(leader)
}

// advanceFrom passes the turn to the next player after from, resolving the
// trick if nobody is left to play.
func (s *Session) advanceFrom(from string) {
	if len(s.state.CurrentTrick) == 0 {
		// Nobody has led yet: the lead passes on.
		next := s.nextToPlay(from)
		if next == "" {
			s.stall(from)
			return
		}
		s.setTurn(next)
		return
	}
	next := s.nextToPlay(from)
	if next == "" {
		s.beginResolve()
		return
	}
	s.setTurn(next)
}

func (s *Session) setTurn(playerID string) {
	s.state.CurrentPlayerID = playerID
	s.armTurnTimer(playerID)
	s.broadcastState()
}

func (s *Session) stall(from string) {
	s.state.CurrentPlayerID = ""
	s.stalledFrom = from
	s.logger.Warn("No connected player can act, waiting for a reconnect")
	s.broadcastState()
}

func (s *Session) stalled() bool {
	return s.state.Status == game.StatusPlaying && !s.resolving && s.state.CurrentPlayerID == ""
}

// canPlay reports whether a player could act if the turn reached them.
func (s *Session) canPlay(playerID string) bool {
	p := s.state.Player(playerID)
	return p != nil && p.Connected && len(p.Hand) > 0
}

// nextToPlay walks the turn order after from and returns the first player
// who still owes a card to the current trick. Players who cannot act are
// recorded as skipped. It returns "" when the trick is complete.
func (s *Session) nextToPlay(from string) string {
	candidate := from
	for range s.state.TurnOrder {
		candidate = s.state.NextPlayer(candidate)
		if s.state.HasPlayedInTrick(candidate) || s.skipped[candidate] {
			continue
		}
		if !s.canPlay(candidate) {
			s.skipped[candidate] = true
			continue
		}
		return candidate
	}
	return ""
}

// leaderFrom returns the first player at or after id in turn order who can
// lead.
func (s *Session) leaderFrom(id string) string {
	order := s.state.TurnOrder
	start := max(slices.Index(order, id), 0)
	for i := range order {
		candidate := order[(start+i)%len(order)]
		if s.canPlay(candidate) {
			return candidate
		}
	}
	return ""
}

func (s *Session) previousInTurnOrder(id string) string {
	order := s.state.TurnOrder
	i := slices.Index(order, id)
	if i < 0 || len(order) < 2 {
		return id
	}
	return order[(i+len(order)-1)%len(order)]
}

func (s *Session) armTurnTimer(playerID string) {
	s.stopTurnTimer()
	s.generation++
	gen := s.generation
	s.turnEndsAt = s.clock.Now().Add(s.config.TurnTimeout)
	s.turnTimer = s.clock.AfterFunc(s.config.TurnTimeout, func() {
		s.onTurnTimeout(playerID, gen)
	}, TagTurn, playerID)
}

func (s *Session) stopTurnTimer() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	s.turnEndsAt = time.Time{}
}

func (s *Session) stopResolveTimer() {
	if s.resolveTimer != nil {
		s.resolveTimer.Stop()
		s.resolveTimer = nil
	}
}

// onTurnTimeout plays on behalf of a player who let their turn expire.
func (s *Session) onTurnTimeout(playerID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.resolving || s.state.Status != game.StatusPlaying || s.state.CurrentPlayerID != playerID {
		return
	}
	s.turnTimer = nil

	p := s.state.Player(playerID)
	if p == nil {
		return
	}
	card, ok := game.ChooseAutoplayCard(p.Hand, s.state.CurrentTrick, s.state.LeadSuit, s.rng)
	if !ok {
		s.skipped[playerID] = true
		s.advanceFrom(playerID)
		return
	}

	s.logger.Info("Turn timed out, autoplaying", "player", playerID, "card", card)
	s.transport.BroadcastToRoom(s.state.RoomID, protocol.MustMessage(protocol.TypePlayerTimeout, protocol.PlayerTimeoutData{
		GameID:   s.state.ID,
		PlayerID: playerID,
		Card:     card,
	}))
	if err := s.play(playerID, card); err != nil {
		s.logger.Error("Autoplay produced an illegal move", "player", playerID, "card", card, "error", err)
	}
}

// beginResolve freezes the completed trick on the table for TrickDelay so
// everyone can see it.
func (s *Session) beginResolve() {
	s.state.CurrentPlayerID = ""
	s.resolving = true
	s.broadcastState()

	s.stopResolveTimer()
	s.generation++
	gen := s.generation
	s.resolveTimer = s.clock.AfterFunc(s.config.TrickDelay, func() {
		s.onResolve(gen)
	}, TagResolve)
}

func (s *Session) onResolve(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || !s.resolving || s.state.Status != game.StatusPlaying {
		return
	}
	s.resolving = false
	s.resolveTimer = nil

	trick := slices.Clone(s.state.CurrentTrick)
	winner := game.TrickWinner(trick, *s.state.LeadSuit)
	trickNumber := s.state.TrickNumber
	game.ProcessTrickWin(s.state, winner)
	clear(s.skipped)

	s.logger.Debug("Trick resolved", "trick", trickNumber, "winner", winner)
	s.transport.BroadcastToRoom(s.state.RoomID, protocol.MustMessage(protocol.TypeTrickComplete, protocol.TrickCompleteData{
		GameID:      s.state.ID,
		WinnerID:    winner,
		Trick:       trick,
		TrickNumber: trickNumber,
	}))

	if s.state.Status == game.StatusFinished {
		s.finish(protocol.ReasonComplete)
		return
	}
	s.beginTrick(winner)
}

func (s *Session) finish(reason string) {
	s.stopTurnTimer()
	s.stopResolveTimer()
	s.resolving = false
	s.generation++
	_ = s.state.SetStatus(game.StatusFinished)

	s.logger.Info("Game over", "reason", reason, "tricks", s.state.TrickNumber-1)
	s.broadcastState()
	s.transport.BroadcastToRoom(s.state.RoomID, protocol.MustMessage(protocol.TypeGameOver, protocol.GameOverData{
		GameID:  s.state.ID,
		Reason:  reason,
		Results: s.state.Results(),
	}))
	if s.onFinish != nil {
		s.onFinish(s)
	}
}

// broadcastState sends each player their own sanitized view.
func (s *Session) broadcastState() {
	for _, p := range s.state.Players {
		s.sendState(p.ID)
	}
}

func (s *Session) sendState(playerID string) {
	data := protocol.GameStateData{State: game.SanitizeFor(s.state, playerID)}
	if !s.turnEndsAt.IsZero() {
		deadline := s.turnEndsAt
		data.TurnEndsAt = &deadline
	}
	if err := s.transport.SendToPlayer(playerID, protocol.MustMessage(protocol.TypeGameState, data)); err != nil {
		s.logger.Debug("State not delivered", "player", playerID, "error", err)
	}
}
