package game

import (
	"math/rand"
	"sync"
	"time"
)

// Outcome is one fully resolved roam reward.
type Outcome struct {
	Tier       Tier
	Item       string
	LuckTag    LuckTag
	HasLuckTag bool
	Value      int
}

// Resolver draws randomized rewards. It is stateless apart from its random
// source; the source is injectable so tests can seed it. Methods are safe for
// concurrent use by a draining batch.
type Resolver struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewResolver returns a resolver seeded from the wall clock.
func NewResolver() *Resolver {
	return NewResolverWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewResolverWithSource returns a resolver over a caller-supplied source.
func NewResolverWithSource(src rand.Source) *Resolver {
	return &Resolver{rng: rand.New(src)}
}

// Roll resolves a complete reward under the given modifiers.
func (r *Resolver) Roll(mods Modifiers) Outcome {
	tier := r.DrawTier(mods.Rarity)
	item := r.DrawItem(tier)
	tag, hasTag := r.DrawLuckTag(mods.Luck)
	out := Outcome{Tier: tier, Item: item, LuckTag: tag, HasLuckTag: hasTag}
	out.Value = r.ComputeValue(tier, tag, hasTag, mods.Coin)
	return out
}

// DrawTier performs a weighted draw over the tiers. The rarity multiplier
// scales every weight except Common's, so boosting it shifts probability mass
// away from Common toward every better tier.
func (r *Resolver) DrawTier(rarityMultiplier float64) Tier {
	if rarityMultiplier < 1 {
		rarityMultiplier = 1
	}
	weights := make([]float64, len(tierTable))
	var total float64
	for i := range tierTable {
		w := tierTable[i].weight
		if Tier(i) != Common {
			w *= rarityMultiplier
		}
		weights[i] = w
		total += w
	}
	r.mu.Lock()
	roll := r.rng.Float64() * total
	r.mu.Unlock()
	for i, w := range weights {
		if roll < w {
			return Tier(i)
		}
		roll -= w
	}
	return Common
}

// DrawLuckTag draws an optional luck tag. The base 2% chance is scaled by the
// luck multiplier and capped at certainty.
func (r *Resolver) DrawLuckTag(luckMultiplier float64) (LuckTag, bool) {
	if luckMultiplier < 1 {
		luckMultiplier = 1
	}
	chance := luckTagChance * luckMultiplier
	if chance > 1 {
		chance = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng.Float64() >= chance {
		return 0, false
	}
	return LuckTag(r.rng.Intn(len(luckTagTable))), true
}

// DrawItem uniformly selects one of the tier's candidate items.
func (r *Resolver) DrawItem(t Tier) string {
	items := t.Items()
	r.mu.Lock()
	defer r.mu.Unlock()
	return items[r.rng.Intn(len(items))]
}

// ComputeValue draws a uniform base value in the tier's range and applies the
// luck tag before the coin multiplier; each multiplication floors to int.
func (r *Resolver) ComputeValue(t Tier, tag LuckTag, hasTag bool, coinMultiplier float64) int {
	min, max := t.ValueRange()
	r.mu.Lock()
	value := min + r.rng.Intn(max-min+1)
	r.mu.Unlock()
	if hasTag {
		value *= tag.Multiplier()
	}
	if coinMultiplier > 0 && coinMultiplier != 1 {
		value = int(float64(value) * coinMultiplier)
	}
	return value
}
