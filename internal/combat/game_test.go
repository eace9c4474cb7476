package combat

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeScheduler queues callbacks so tests fire them by hand instead of
// waiting on wall-clock timers.
type fakeScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (s *fakeScheduler) After(_ time.Duration, fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// fireAll drains the queue in FIFO order, including callbacks scheduled by
// the callbacks themselves.
func (s *fakeScheduler) fireAll() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

func newTestGame() (*Game, *fakeScheduler) {
	p1 := &Player{ID: "player1", Name: "Alice", Fighter: NewFighter(FighterOrtiz, Position{X: -5, Y: 3})}
	p2 := &Player{ID: "player2", Name: "Bob", Fighter: NewFighter(FighterSteve, Position{X: 5, Y: 3})}
	sched := &fakeScheduler{}
	return NewGame(p1, p2, sched), sched
}

func TestPlayCard_AttackDealsDamage(t *testing.T) {
	g, _ := newTestGame()

	if err := g.SelectCard("ortiz_card_1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := g.PlayCard("ortiz_card_1", "steve"); err != nil {
		t.Fatalf("play: %v", err)
	}

	snap := g.Snapshot()
	if snap.Phase != PhaseCombat {
		t.Fatalf("want phase combat, got %s", snap.Phase)
	}
	if got := snap.Players[1].Fighter.Health; got != 65 {
		t.Fatalf("want target health 65, got %d", got)
	}
	if snap.Selected != "" {
		t.Fatalf("selection should clear after play, got %q", snap.Selected)
	}
}

func TestPlayCard_Guards(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(g *Game)
		cardID  string
		target  string
		wantErr error
	}{
		{
			name:    "nothing selected",
			setup:   func(g *Game) {},
			cardID:  "ortiz_card_0",
			target:  "steve",
			wantErr: ErrNoCardSelected,
		},
		{
			name:    "selection mismatch",
			setup:   func(g *Game) { g.SelectCard("ortiz_card_0") },
			cardID:  "ortiz_card_1",
			target:  "steve",
			wantErr: ErrSelectionMismatch,
		},
		{
			name:    "card not in active player's deck",
			setup:   func(g *Game) { g.SelectCard("steve_card_0") },
			cardID:  "steve_card_0",
			target:  "ortiz",
			wantErr: ErrUnknownCard,
		},
		{
			name:    "attack without target",
			setup:   func(g *Game) { g.SelectCard("ortiz_card_0") },
			cardID:  "ortiz_card_0",
			target:  "",
			wantErr: ErrTargetRequired,
		},
		{
			name:    "attack on unknown fighter",
			setup:   func(g *Game) { g.SelectCard("ortiz_card_0") },
			cardID:  "ortiz_card_0",
			target:  "nobody",
			wantErr: ErrUnknownFighter,
		},
		{
			name: "outside card selection",
			setup: func(g *Game) {
				g.SelectCard("ortiz_card_0")
				g.PlayCard("ortiz_card_0", "steve") // phase is now combat
				g.SelectCard("ortiz_card_1")
			},
			cardID:  "ortiz_card_1",
			target:  "steve",
			wantErr: ErrWrongPhase,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, _ := newTestGame()
			tc.setup(g)
			err := g.PlayCard(tc.cardID, tc.target)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSelectCard_RejectedOutsideSelection(t *testing.T) {
	g, _ := newTestGame()
	g.SelectCard("ortiz_card_0")
	g.PlayCard("ortiz_card_0", "steve")

	if err := g.SelectCard("ortiz_card_1"); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("want ErrWrongPhase, got %v", err)
	}
}

// Damage math per resolution, including credit consumption: attacked for 35
// with no credit, then defends 15 and is attacked for 35 again.
func TestAttackResolution_DefenseCreditMath(t *testing.T) {
	g, _ := newTestGame()
	steve := g.players[1].Fighter

	g.mu.Lock()
	g.resolveAttack(&Action{Type: CardAttack, Source: "ortiz", Target: "steve", Damage: 35, Duration: ActionDuration})
	g.mu.Unlock()
	if steve.Health != 65 {
		t.Fatalf("after first attack: want 65, got %d", steve.Health)
	}

	g.mu.Lock()
	g.resolveDefense(&Action{Type: CardDefense, Source: "steve", Target: "steve", Damage: 15, Duration: ActionDuration})
	g.mu.Unlock()
	if got := g.Snapshot().Defending["steve"]; got != 15 {
		t.Fatalf("want defense credit 15, got %d", got)
	}

	g.mu.Lock()
	g.resolveAttack(&Action{Type: CardAttack, Source: "ortiz", Target: "steve", Damage: 35, Duration: ActionDuration})
	g.mu.Unlock()
	if steve.Health != 45 {
		t.Fatalf("after absorbed attack: want 45, got %d", steve.Health)
	}
	if _, ok := g.Snapshot().Defending["steve"]; ok {
		t.Fatalf("credit should be consumed by the attack")
	}
}

func TestAttackResolution_NeverNegativeDamage(t *testing.T) {
	g, _ := newTestGame()
	steve := g.players[1].Fighter

	g.mu.Lock()
	g.resolveDefense(&Action{Type: CardDefense, Source: "steve", Target: "steve", Damage: 50, Duration: ActionDuration})
	g.resolveAttack(&Action{Type: CardAttack, Source: "ortiz", Target: "steve", Damage: 20, Duration: ActionDuration})
	g.mu.Unlock()

	if steve.Health != 100 {
		t.Fatalf("over-defended attack should deal 0, health got %d", steve.Health)
	}
}

func TestVictory_ClampsToZeroAndTerminates(t *testing.T) {
	g, sched := newTestGame()
	g.players[1].Fighter.Health = 20

	g.SelectCard("ortiz_card_1")
	if err := g.PlayCard("ortiz_card_1", "steve"); err != nil {
		t.Fatalf("play: %v", err)
	}

	snap := g.Snapshot()
	if got := snap.Players[1].Fighter.Health; got != 0 {
		t.Fatalf("want health clamped to 0, got %d", got)
	}
	if snap.Phase != PhaseVictory {
		t.Fatalf("want phase victory, got %s", snap.Phase)
	}

	if err := g.EndTurn(); !errors.Is(err, ErrMatchOver) {
		t.Fatalf("end turn after victory: want ErrMatchOver, got %v", err)
	}
	if err := g.SelectCard("ortiz_card_0"); !errors.Is(err, ErrMatchOver) {
		t.Fatalf("select after victory: want ErrMatchOver, got %v", err)
	}

	// Timers still fire but must not resurrect the match.
	sched.fireAll()
	snap = g.Snapshot()
	if snap.Phase != PhaseVictory {
		t.Fatalf("phase after timers: want victory, got %s", snap.Phase)
	}
	if snap.Animations["steve"] != "defeat" || snap.Animations["ortiz"] != "victory" {
		t.Fatalf("want defeat/victory animations, got %+v", snap.Animations)
	}
}

func TestAutoEndTurn_FullCycle(t *testing.T) {
	g, sched := newTestGame()

	g.SelectCard("ortiz_card_0")
	if err := g.PlayCard("ortiz_card_0", "steve"); err != nil {
		t.Fatalf("play: %v", err)
	}
	sched.fireAll()

	snap := g.Snapshot()
	if snap.Phase != PhaseCardSelection {
		t.Fatalf("want card_selection after cycle, got %s", snap.Phase)
	}
	if snap.Turn != 2 {
		t.Fatalf("want turn 2, got %d", snap.Turn)
	}
	if snap.ActivePlayer != "player2" {
		t.Fatalf("want player2 active, got %s", snap.ActivePlayer)
	}
	if snap.Animations["ortiz"] != "idle" {
		t.Fatalf("want attacker back to idle, got %+v", snap.Animations)
	}
}

func TestAutoEndTurnOff_StaysInResolution(t *testing.T) {
	g, sched := newTestGame()
	g.SetAutoEndTurn(false)

	g.SelectCard("ortiz_card_0")
	if err := g.PlayCard("ortiz_card_0", "steve"); err != nil {
		t.Fatalf("play: %v", err)
	}
	sched.fireAll()

	snap := g.Snapshot()
	if snap.Phase != PhaseResolution {
		t.Fatalf("want resolution until an end-turn arrives, got %s", snap.Phase)
	}
	if snap.ActivePlayer != "player1" {
		t.Fatalf("active player must not move without an end-turn, got %s", snap.ActivePlayer)
	}

	if err := g.EndTurn(); err != nil {
		t.Fatalf("end turn: %v", err)
	}
	snap = g.Snapshot()
	if snap.Phase != PhaseCardSelection || snap.ActivePlayer != "player2" {
		t.Fatalf("after end turn: got phase %s active %s", snap.Phase, snap.ActivePlayer)
	}
}

func TestEndTurn_ClearsDefenseCredits(t *testing.T) {
	g, _ := newTestGame()

	g.SelectCard("ortiz_card_2")
	if err := g.PlayCard("ortiz_card_2", ""); err != nil {
		t.Fatalf("play defense: %v", err)
	}
	if got := g.Snapshot().Defending["ortiz"]; got != 15 {
		t.Fatalf("want credit 15 on caster, got %d", got)
	}

	if err := g.EndTurn(); err != nil {
		t.Fatalf("end turn: %v", err)
	}
	if snap := g.Snapshot(); len(snap.Defending) != 0 {
		t.Fatalf("unused credits must not carry over, got %+v", snap.Defending)
	}
}

func TestRestart_OrphansPendingTimers(t *testing.T) {
	g, sched := newTestGame()

	g.SelectCard("ortiz_card_1")
	if err := g.PlayCard("ortiz_card_1", "steve"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if sched.pending() == 0 {
		t.Fatalf("expected pending timers after a play")
	}

	g.Restart()
	sched.fireAll() // stale fires from before the restart

	snap := g.Snapshot()
	if snap.Phase != PhaseCardSelection {
		t.Fatalf("stale timer moved phase to %s", snap.Phase)
	}
	if snap.Turn != 1 || snap.ActivePlayer != "player1" {
		t.Fatalf("want turn 1 player1 active, got turn %d active %s", snap.Turn, snap.ActivePlayer)
	}
	if got := snap.Players[1].Fighter.Health; got != 100 {
		t.Fatalf("want full health after restart, got %d", got)
	}
	if len(snap.Animations) != 0 {
		t.Fatalf("stale animation fire leaked: %+v", snap.Animations)
	}

	// The restarted match plays normally.
	g.SelectCard("ortiz_card_0")
	if err := g.PlayCard("ortiz_card_0", "steve"); err != nil {
		t.Fatalf("play after restart: %v", err)
	}
	if got := g.Snapshot().Players[1].Fighter.Health; got != 80 {
		t.Fatalf("want 80 after restart attack, got %d", got)
	}
}

func TestApplySync_ClampsAndKeepsActivePlayer(t *testing.T) {
	g, _ := newTestGame()

	g.ApplySync(map[string]int{"steve": -10, "ortiz": 250, "ghost": 5}, PhaseResolution)

	snap := g.Snapshot()
	if got := snap.Players[1].Fighter.Health; got != 0 {
		t.Fatalf("want steve clamped to 0, got %d", got)
	}
	if got := snap.Players[0].Fighter.Health; got != 100 {
		t.Fatalf("want ortiz clamped to max, got %d", got)
	}
	if snap.Phase != PhaseResolution {
		t.Fatalf("want phase resolution, got %s", snap.Phase)
	}
	if snap.ActivePlayer != "player1" {
		t.Fatalf("sync must never move the active player, got %s", snap.ActivePlayer)
	}

	// Empty phase leaves the current phase alone.
	g.ApplySync(map[string]int{"steve": 50}, "")
	snap = g.Snapshot()
	if snap.Phase != PhaseResolution {
		t.Fatalf("empty phase overwrote to %s", snap.Phase)
	}
	if got := snap.Players[1].Fighter.Health; got != 50 {
		t.Fatalf("want steve at 50, got %d", got)
	}
}

func TestNewFighter_Decks(t *testing.T) {
	cases := []struct {
		fighterID string
		wantName  string
	}{
		{FighterOrtiz, "Ortiz"},
		{FighterSteve, "Steve"},
		{"custom", "custom"},
	}

	for _, tc := range cases {
		t.Run(tc.fighterID, func(t *testing.T) {
			f := NewFighter(tc.fighterID, Position{})
			if f.Name != tc.wantName {
				t.Fatalf("want name %q, got %q", tc.wantName, f.Name)
			}
			if f.Health != f.MaxHealth {
				t.Fatalf("new fighter should start at full health")
			}
			wantTypes := [3]CardType{CardAttack, CardAttack, CardDefense}
			wantDamage := [3]int{20, 35, 15}
			for i, c := range f.Deck {
				if c.Type != wantTypes[i] || c.Damage != wantDamage[i] {
					t.Fatalf("card %d: got type %s damage %d", i, c.Type, c.Damage)
				}
			}
		})
	}
}
