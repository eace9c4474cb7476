package combat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Game is the per-client combat resolution engine: an explicit phase machine
// whose transition methods reject calls that do not apply to the current
// state. All timed continuations run through the Scheduler and capture the
// engine generation, so a late fire from before a restart is discarded
// instead of corrupting newer state.
//
// The Scheduler must not invoke callbacks synchronously from After; the
// engine holds its lock while scheduling.
type Game struct {
	mu    sync.Mutex
	sched Scheduler
	gen   uint64

	// autoEndTurn drives the local end-turn after the resolution dwell.
	// Solo play wants it; the multiplayer synchronizer disables it and
	// drives turn switching exclusively through the relayed end-turn
	// event, so both peers advance exactly once.
	autoEndTurn bool

	phase        Phase
	turn         int
	turnTimer    int
	activePlayer string
	players      [2]*Player

	queue     []*Action
	resolving bool

	defending  map[string]int
	animations map[string]string
	selected   string
}

// PlayerState is a copied per-player view inside a State snapshot.
type PlayerState struct {
	ID      string
	Name    string
	Fighter Fighter
}

// State is a copy of the engine state, safe to read without holding any
// locks.
type State struct {
	Phase        Phase
	Turn         int
	TurnTimer    int
	ActivePlayer string
	Players      [2]PlayerState
	Defending    map[string]int
	Animations   map[string]string
	Selected     string
	QueueLen     int
}

// NewGame starts a match between two players in card_selection with the
// first-joined player active. Auto end-turn is on; multiplayer callers turn
// it off.
func NewGame(p1, p2 *Player, sched Scheduler) *Game {
	if sched == nil {
		sched = NewScheduler()
	}
	return &Game{
		sched:        sched,
		autoEndTurn:  true,
		phase:        PhaseCardSelection,
		turn:         1,
		turnTimer:    defaultTurnTimer,
		activePlayer: p1.ID,
		players:      [2]*Player{p1, p2},
		defending:    make(map[string]int),
		animations:   make(map[string]string),
	}
}

func (g *Game) SetAutoEndTurn(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoEndTurn = on
}

// SelectCard records the UI's current card selection. An empty id clears it.
func (g *Game) SelectCard(cardID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseVictory {
		return ErrMatchOver
	}
	if g.phase != PhaseCardSelection {
		return ErrWrongPhase
	}
	g.selected = cardID
	return nil
}

// PlayCard turns the selected card into a queued combat action and moves the
// match into combat. Attack cards need a target; defense cards always target
// the caster. Fails fast before any state changes.
func (g *Game) PlayCard(cardID, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseVictory {
		return ErrMatchOver
	}
	if g.phase != PhaseCardSelection {
		return ErrWrongPhase
	}
	if g.selected == "" {
		return ErrNoCardSelected
	}
	if g.selected != cardID {
		return ErrSelectionMismatch
	}

	active := g.playerByID(g.activePlayer)
	card, ok := deckCard(active.Fighter, cardID)
	if !ok {
		return ErrUnknownCard
	}

	if card.Type == CardAttack {
		if targetID == "" {
			return ErrTargetRequired
		}
		if g.fighterByID(targetID) == nil {
			return ErrUnknownFighter
		}
	} else {
		targetID = active.Fighter.ID
	}

	g.queue = append(g.queue, &Action{
		ID:        uuid.NewString(),
		Type:      card.Type,
		Source:    active.Fighter.ID,
		Target:    targetID,
		Card:      card,
		Timestamp: time.Now(),
		Duration:  ActionDuration,
		Damage:    card.Damage,
	})
	g.selected = ""
	g.phase = PhaseCombat
	g.pump()
	return nil
}

// pump processes the head of the action queue unless one is already in
// flight. Caller holds the lock.
func (g *Game) pump() {
	if g.resolving || len(g.queue) == 0 {
		return
	}
	if g.phase == PhaseVictory {
		g.queue = nil
		return
	}

	action := g.queue[0]
	g.queue = g.queue[1:]
	g.resolving = true
	g.phase = PhaseCombat

	switch action.Type {
	case CardAttack:
		g.resolveAttack(action)
	case CardDefense:
		g.resolveDefense(action)
	}

	g.afterLocked(PostActionDelay, func() {
		g.resolving = false
		if g.phase != PhaseVictory {
			g.phase = PhaseResolution
			g.afterLocked(ResolutionDwell, func() {
				if g.phase == PhaseResolution && g.autoEndTurn {
					g.endTurn()
				}
			})
		}
		g.pump()
	})
}

func (g *Game) resolveAttack(action *Action) {
	target := g.fighterByID(action.Target)

	// The defense credit is consumed by this attack whether or not it
	// absorbs anything.
	credit := g.defending[action.Target]
	delete(g.defending, action.Target)

	finalDamage := action.Damage - credit
	if finalDamage < 0 {
		finalDamage = 0
	}
	target.Health = clamp(target.Health-finalDamage, 0, target.MaxHealth)

	g.animations[action.Source] = action.Card.CastAnimation

	defeated := target.Health == 0
	if defeated {
		g.phase = PhaseVictory
	}

	g.afterLocked(action.Duration, func() {
		g.animations[action.Source] = "idle"
		if defeated {
			g.animations[action.Target] = "defeat"
			g.animations[action.Source] = "victory"
		}
	})
}

func (g *Game) resolveDefense(action *Action) {
	g.defending[action.Source] = action.Damage
	g.animations[action.Source] = action.Card.CastAnimation

	g.afterLocked(action.Duration, func() {
		if g.animations[action.Source] == action.Card.CastAnimation {
			g.animations[action.Source] = "idle"
		}
	})
}

// EndTurn clears every defense credit, hands the turn to the other player,
// and returns to card selection. Forbidden once the match is decided.
func (g *Game) EndTurn() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.endTurn()
}

func (g *Game) endTurn() error {
	if g.phase == PhaseVictory {
		return ErrMatchOver
	}
	// Unused credits do not carry over.
	g.defending = make(map[string]int)
	g.activePlayer = g.otherPlayer(g.activePlayer).ID
	g.turn++
	g.turnTimer = defaultTurnTimer
	g.phase = PhaseCardSelection
	g.selected = ""
	return nil
}

// Restart resets the match: full health, empty queue, turn 1, first-joined
// player active. The generation bump orphans every pending timed
// continuation from the previous match.
func (g *Game) Restart() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gen++
	for _, p := range g.players {
		p.Fighter.Health = p.Fighter.MaxHealth
	}
	g.queue = nil
	g.resolving = false
	g.defending = make(map[string]int)
	g.animations = make(map[string]string)
	g.selected = ""
	g.turn = 1
	g.turnTimer = defaultTurnTimer
	g.activePlayer = g.players[0].ID
	g.phase = PhaseCardSelection
}

// ApplySync overwrites the fields mirrored from the peer's authoritative
// snapshot: fighter health and phase. The active player is deliberately not
// touched here; turn switching is driven only by end-turn events.
func (g *Game) ApplySync(healths map[string]int, phase Phase) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, h := range healths {
		if f := g.fighterByID(id); f != nil {
			f.Health = clamp(h, 0, f.MaxHealth)
		}
	}
	if phase != "" {
		g.phase = phase
	}
}

// Snapshot copies the current state for rendering, sync payloads, and tests.
func (g *Game) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := State{
		Phase:        g.phase,
		Turn:         g.turn,
		TurnTimer:    g.turnTimer,
		ActivePlayer: g.activePlayer,
		Defending:    make(map[string]int, len(g.defending)),
		Animations:   make(map[string]string, len(g.animations)),
		Selected:     g.selected,
		QueueLen:     len(g.queue),
	}
	for i, p := range g.players {
		s.Players[i] = PlayerState{ID: p.ID, Name: p.Name, Fighter: *p.Fighter}
	}
	for k, v := range g.defending {
		s.Defending[k] = v
	}
	for k, v := range g.animations {
		s.Animations[k] = v
	}
	return s
}

// afterLocked schedules fn to run under the lock, discarded if the engine
// generation has moved on by the time it fires. Caller holds the lock.
func (g *Game) afterLocked(d time.Duration, fn func()) {
	gen := g.gen
	g.sched.After(d, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.gen != gen {
			return
		}
		fn()
	})
}

func (g *Game) playerByID(id string) *Player {
	for _, p := range g.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *Game) otherPlayer(id string) *Player {
	for _, p := range g.players {
		if p.ID != id {
			return p
		}
	}
	return nil
}

func (g *Game) fighterByID(id string) *Fighter {
	for _, p := range g.players {
		if p.Fighter.ID == id {
			return p.Fighter
		}
	}
	return nil
}

func deckCard(f *Fighter, cardID string) (MoveCard, bool) {
	for _, c := range f.Deck {
		if c.ID == cardID {
			return c, true
		}
	}
	return MoveCard{}, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
