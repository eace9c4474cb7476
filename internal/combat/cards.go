package combat

import "fmt"

// Built-in roster. Every deck is exactly three cards: a weak attack, a strong
// attack, and a defense card.
const (
	FighterOrtiz = "ortiz"
	FighterSteve = "steve"
)

const defaultTurnTimer = 30

// NewFighter builds a fighter with the deck matching its roster id. Unknown
// ids get the generic deck.
func NewFighter(fighterID string, pos Position) *Fighter {
	f := &Fighter{
		ID:         fighterID,
		Health:     100,
		MaxHealth:  100,
		Stamina:    100,
		MaxStamina: 100,
		Element:    ElementNeutral,
		Position:   pos,
	}

	switch fighterID {
	case FighterOrtiz:
		f.Name = "Ortiz"
		f.Element = ElementFire
		f.Deck = deckFor(fighterID,
			cardSpec{"Quick Strike", "A fast punch attack", CardAttack, 20, 10, RarityCommon, "punch", "hit"},
			cardSpec{"Power Kick", "A powerful kick attack", CardAttack, 35, 20, RarityUncommon, "kick", "heavy-hit"},
			cardSpec{"Defensive Stance", "Block and reduce incoming damage", CardDefense, 15, 10, RarityCommon, "block", "block"},
		)
	case FighterSteve:
		f.Name = "Steve"
		f.Element = ElementEarth
		f.Deck = deckFor(fighterID,
			cardSpec{"Shadow Punch", "A swift ninja strike", CardAttack, 20, 10, RarityCommon, "punch", "hit"},
			cardSpec{"Ninja Kick", "A devastating kick", CardAttack, 35, 20, RarityUncommon, "kick", "heavy-hit"},
			cardSpec{"Shadow Guard", "Block with ninja techniques", CardDefense, 15, 10, RarityCommon, "block", "block"},
		)
	default:
		f.Name = fighterID
		f.Deck = deckFor(fighterID,
			cardSpec{"Basic Attack", "A simple attack", CardAttack, 20, 10, RarityCommon, "punch", "hit"},
			cardSpec{"Strong Attack", "A powerful attack", CardAttack, 35, 20, RarityUncommon, "kick", "heavy-hit"},
			cardSpec{"Block", "Reduce incoming damage", CardDefense, 15, 10, RarityCommon, "block", "block"},
		)
	}
	return f
}

type cardSpec struct {
	name, desc  string
	typ         CardType
	damage      int
	staminaCost int
	rarity      Rarity
	cast        string
	impact      string
}

func deckFor(fighterID string, specs ...cardSpec) [3]MoveCard {
	var deck [3]MoveCard
	for i, s := range specs {
		deck[i] = MoveCard{
			ID:              fmt.Sprintf("%s_card_%d", fighterID, i),
			Name:            s.name,
			Description:     s.desc,
			Type:            s.typ,
			Damage:          s.damage,
			StaminaCost:     s.staminaCost,
			Rarity:          s.rarity,
			CastAnimation:   s.cast,
			ImpactAnimation: s.impact,
		}
	}
	return deck
}
