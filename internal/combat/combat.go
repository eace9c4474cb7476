package combat

import (
	"errors"
	"time"
)

var ErrWrongPhase = errors.New("action not valid in current phase")
var ErrMatchOver = errors.New("match already decided")
var ErrNoCardSelected = errors.New("no card selected")
var ErrSelectionMismatch = errors.New("played card does not match selection")
var ErrUnknownCard = errors.New("card not in active player's deck")
var ErrTargetRequired = errors.New("attack card requires a target")
var ErrUnknownFighter = errors.New("unknown fighter")

// Phase is the match phase. Exactly one value is authoritative per match and
// it is mirrored, not merged, between peers.
type Phase string

const (
	PhaseSetup         Phase = "setup"
	PhaseCardSelection Phase = "card_selection"
	PhaseCombat        Phase = "combat"
	PhaseResolution    Phase = "resolution"
	PhaseVictory       Phase = "victory"
)

type CardType string

const (
	CardAttack  CardType = "attack"
	CardDefense CardType = "defense"
)

type Rarity string

const (
	RarityCommon   Rarity = "common"
	RarityUncommon Rarity = "uncommon"
)

type Element string

const (
	ElementFire    Element = "fire"
	ElementWater   Element = "water"
	ElementEarth   Element = "earth"
	ElementAir     Element = "air"
	ElementNeutral Element = "neutral"
)

// Timing of the resolution sequence. An action animates for ActionDuration,
// the engine moves to resolution PostActionDelay after processing, holds for
// ResolutionDwell, then ends the turn.
const (
	ActionDuration  = 2 * time.Second
	PostActionDelay = 2500 * time.Millisecond
	ResolutionDwell = 1500 * time.Millisecond
)

// MoveCard is a playable action. For attack cards Damage is dealt to the
// target; for defense cards it is the amount shaved off the next incoming
// attack. Decks are fixed at fighter creation and never mutate.
type MoveCard struct {
	ID              string
	Name            string
	Description     string
	Type            CardType
	Damage          int
	StaminaCost     int
	Rarity          Rarity
	CastAnimation   string
	ImpactAnimation string
}

// Position is the fighter's spatial placement. Rendering-surface data only,
// never gameplay-authoritative.
type Position struct {
	X, Y, Z float64
}

type Fighter struct {
	ID         string
	Name       string
	Health     int
	MaxHealth  int
	Stamina    int
	MaxStamina int
	Element    Element
	Deck       [3]MoveCard
	Position   Position
}

// Player binds a room slot id (player1/player2) to its fighter.
type Player struct {
	ID      string
	Name    string
	Fighter *Fighter
}

// Action is one in-flight resolution of a played card. Queued and processed
// strictly FIFO, one at a time; never persisted beyond the current match.
type Action struct {
	ID        string
	Type      CardType
	Source    string
	Target    string
	Card      MoveCard
	Timestamp time.Time
	Duration  time.Duration
	Damage    int
}
