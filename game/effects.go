package game

import (
	"github.com/vanillachan6571/catroam/store"
)

// Modifiers are the resolved scalars for one player at resolution time.
// They are a derived, ephemeral view over the player's live effects and are
// never persisted.
type Modifiers struct {
	Luck   float64
	Coin   float64
	Rarity float64

	// ConsumedEffectIDs lists the consumable rows that contributed to Rarity
	// and must be marked used once the roam's catch is persisted.
	ConsumedEffectIDs []int64
}

// NeutralModifiers is the no-effects baseline.
func NeutralModifiers() Modifiers {
	return Modifiers{Luck: 1, Coin: 1, Rarity: 1}
}

// Aggregate folds a player's live effects into the three multipliers. The
// rows are assumed pre-filtered to live entries (the store query does that);
// dispatch is on the item's typed effect class, not its name.
func Aggregate(effects []store.ActiveEffect) Modifiers {
	mods := NeutralModifiers()
	for _, e := range effects {
		if e.Multiplier <= 0 {
			continue
		}
		switch e.Effect {
		case store.EffectLuck:
			mods.Luck *= e.Multiplier
		case store.EffectCoin:
			mods.Coin *= e.Multiplier
		case store.EffectRarity:
			mods.Rarity *= e.Multiplier
			if e.Kind == store.KindConsumable && !e.Used {
				mods.ConsumedEffectIDs = append(mods.ConsumedEffectIDs, e.ID)
			}
		}
	}
	return mods
}
