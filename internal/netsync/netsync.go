package netsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"cardarena/internal/combat"
	"cardarena/internal/protocol"
)

// Transport is the slice of the relay client the synchronizer needs.
type Transport interface {
	PlayCard(ctx context.Context, cardID, targetID string) error
	EndTurn() error
	SyncGameState(state protocol.GameStateSync) error
}

// syncDelay must exceed the local animation window so the pushed snapshot
// reflects the fully resolved action; endTurnDelay then waits out the
// resolution dwell before the relayed turn switch.
const (
	syncDelay    = combat.PostActionDelay
	endTurnDelay = 2 * time.Second
)

// Synchronizer bridges the local combat engine and the relay. The two never
// call each other directly: local intents go out through the transport and
// are applied to the engine only after the relay acks them; remote intents
// come in through the Handle methods.
//
// Turn switching is driven exclusively by relayed end-turn events — the
// engine's own auto end-turn is disabled — so both peers advance exactly
// once per turn. State syncs carry a logical clock; anything not strictly
// newer than the last applied sync is discarded.
type Synchronizer struct {
	transport Transport
	game      *combat.Game
	playerID  string
	sched     combat.Scheduler
	log       *zap.Logger

	mu          sync.Mutex
	clock       int64
	lastApplied int64
}

func New(t Transport, game *combat.Game, playerID string, sched combat.Scheduler, log *zap.Logger) *Synchronizer {
	if sched == nil {
		sched = combat.NewScheduler()
	}
	game.SetAutoEndTurn(false)
	return &Synchronizer{
		transport: t,
		game:      game,
		playerID:  playerID,
		sched:     sched,
		log:       log,
	}
}

// PlayCard relays the local intent, applies it to the local engine once the
// relay confirms, then schedules the state push and the end-turn signal.
func (s *Synchronizer) PlayCard(ctx context.Context, cardID, targetID string) error {
	// A missing target fails fast, before spending a round trip. Checked
	// against our own deck so the guard holds even out of turn.
	snap := s.game.Snapshot()
	for _, p := range snap.Players {
		if p.ID != s.playerID {
			continue
		}
		for _, c := range p.Fighter.Deck {
			if c.ID == cardID && c.Type == combat.CardAttack && targetID == "" {
				return combat.ErrTargetRequired
			}
		}
	}

	if err := s.transport.PlayCard(ctx, cardID, targetID); err != nil {
		return err
	}
	if err := s.applyCard(cardID, targetID); err != nil {
		return err
	}

	s.sched.After(syncDelay, func() {
		s.pushState()
		s.sched.After(endTurnDelay, func() {
			if s.game.Snapshot().Phase == combat.PhaseVictory {
				return
			}
			if err := s.transport.EndTurn(); err != nil {
				s.log.Warn("end turn send failed", zap.Error(err))
			}
		})
	})
	return nil
}

// HandleCardPlayed applies a remote card play. The relay echoes our own plays
// back to us; those are dropped by origin id so the action is never applied
// twice.
func (s *Synchronizer) HandleCardPlayed(playerID, cardID, targetID string) {
	if playerID == s.playerID {
		s.log.Debug("ignoring own card echo", zap.String("card", cardID))
		return
	}
	if err := s.applyCard(cardID, targetID); err != nil {
		s.log.Warn("remote card rejected", zap.String("card", cardID), zap.Error(err))
	}
}

// HandleTurnEnded applies a relayed turn switch regardless of origin; both
// peers must agree on it.
func (s *Synchronizer) HandleTurnEnded(playerID string) {
	if err := s.game.EndTurn(); err != nil && !errors.Is(err, combat.ErrMatchOver) {
		s.log.Warn("turn switch rejected", zap.String("from", playerID), zap.Error(err))
	}
}

// HandleGameStateUpdate mirrors the peer's authoritative health and phase.
// The active player is never taken from a sync; only end-turn events move it,
// which keeps the two signals from racing.
func (s *Synchronizer) HandleGameStateUpdate(raw json.RawMessage) {
	var state protocol.GameStateSync
	if err := json.Unmarshal(raw, &state); err != nil {
		s.log.Warn("bad state sync", zap.Error(err))
		return
	}

	s.mu.Lock()
	if state.Seq <= s.lastApplied {
		s.mu.Unlock()
		s.log.Debug("stale state sync discarded",
			zap.Int64("seq", state.Seq), zap.Int64("applied", s.lastApplied))
		return
	}
	s.lastApplied = state.Seq
	if s.clock < state.Seq {
		s.clock = state.Seq
	}
	s.mu.Unlock()

	healths := make(map[string]int, len(state.Fighters))
	for _, f := range state.Fighters {
		healths[f.ID] = f.Health
	}
	s.game.ApplySync(healths, combat.Phase(state.Phase))
}

func (s *Synchronizer) applyCard(cardID, targetID string) error {
	if err := s.game.SelectCard(cardID); err != nil {
		return err
	}
	return s.game.PlayCard(cardID, targetID)
}

func (s *Synchronizer) pushState() {
	snap := s.game.Snapshot()

	s.mu.Lock()
	s.clock++
	seq := s.clock
	s.mu.Unlock()

	state := protocol.GameStateSync{
		Seq:          seq,
		Phase:        string(snap.Phase),
		CurrentTurn:  snap.Turn,
		ActivePlayer: snap.ActivePlayer,
		TurnTimer:    snap.TurnTimer,
	}
	for _, p := range snap.Players {
		f := p.Fighter
		state.Fighters = append(state.Fighters, protocol.FighterSync{
			ID:       f.ID,
			Health:   f.Health,
			Position: [3]float64{f.Position.X, f.Position.Y, f.Position.Z},
		})
	}

	if err := s.transport.SyncGameState(state); err != nil {
		s.log.Warn("state sync send failed", zap.Error(err))
	}
}
