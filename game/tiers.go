package game

// Tier is a rarity category bounding an item pool and a coin value range.
// Declaration order matters: weighted draws walk tiers from Common to Lucky.
type Tier int

const (
	Common Tier = iota
	Uncommon
	Rare
	Ultra
	Legend
	Extreme
	Lucky
)

type tierSpec struct {
	name   string
	weight float64
	min    int
	max    int
	items  []string
}

var tierTable = [...]tierSpec{
	Common:   {name: "COMMON", weight: 45, min: 25, max: 75, items: []string{"Fish", "Mouse", "Rat", "Yarn Ball"}},
	Uncommon: {name: "UNCOMMON", weight: 30, min: 100, max: 200, items: []string{"Shoe", "Bird", "Spider"}},
	Rare:     {name: "RARE", weight: 15, min: 300, max: 600, items: []string{"Yarn Ball", "String"}},
	Ultra:    {name: "ULTRA", weight: 5, min: 900, max: 1200, items: []string{"Can of Beans", "Bigger Fish"}},
	Legend:   {name: "LEGEND", weight: 3, min: 1200, max: 2000, items: []string{"Fluffy Pillow", "Chicken"}},
	Extreme:  {name: "EXTREME", weight: 1.5, min: 3000, max: 5000, items: []string{"Cat Nip", "Lolipop"}},
	Lucky:    {name: "LUCKY", weight: 0.5, min: 7500, max: 10000, items: []string{"Koi Fish", "Golden Yarn Ball"}},
}

func (t Tier) String() string { return tierTable[t].name }

// ValueRange returns the inclusive coin range for the tier.
func (t Tier) ValueRange() (min, max int) { return tierTable[t].min, tierTable[t].max }

// Items returns the candidate item names for the tier.
func (t Tier) Items() []string { return tierTable[t].items }

// Tiers lists every tier in draw order.
func Tiers() []Tier {
	out := make([]Tier, len(tierTable))
	for i := range tierTable {
		out[i] = Tier(i)
	}
	return out
}

// LuckTag is a rare multiplicative bonus applied independently of tier.
type LuckTag int

const (
	KittenLuck LuckTag = iota
	CatLuck
	NekoLuck
	GodLuck
	GoddessLuck
)

// luckTagChance is the base probability of drawing any luck tag, before boosts.
const luckTagChance = 0.02

var luckTagTable = [...]struct {
	name       string
	multiplier int
}{
	KittenLuck:  {"KITTEN LUCK", 2},
	CatLuck:     {"CAT LUCK", 3},
	NekoLuck:    {"NEKO LUCK", 4},
	GodLuck:     {"GOD LUCK", 5},
	GoddessLuck: {"GODDESS LUCK", 10},
}

func (l LuckTag) String() string { return luckTagTable[l].name }

// Multiplier returns the value multiplier the tag applies.
func (l LuckTag) Multiplier() int { return luckTagTable[l].multiplier }
