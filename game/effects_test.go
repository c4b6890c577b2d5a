package game

import (
	"testing"

	"github.com/vanillachan6571/catroam/store"
)

func TestAggregateEmptyIsNeutral(t *testing.T) {
	mods := Aggregate(nil)
	if mods.Luck != 1 || mods.Coin != 1 || mods.Rarity != 1 {
		t.Fatalf("neutral modifiers = %+v", mods)
	}
	if len(mods.ConsumedEffectIDs) != 0 {
		t.Fatal("no consumables should be recorded")
	}
}

func TestAggregateFoldsByEffectClass(t *testing.T) {
	rows := []store.ActiveEffect{
		{ID: 1, ItemName: "lick_vanilla_cream", Kind: store.KindTimed, Effect: store.EffectLuck, Multiplier: 2.0},
		{ID: 2, ItemName: "epic_coin_booster", Kind: store.KindTimed, Effect: store.EffectCoin, Multiplier: 2.5},
		{ID: 3, ItemName: "common_coin_booster", Kind: store.KindTimed, Effect: store.EffectCoin, Multiplier: 1.25},
		{ID: 4, ItemName: "catnip_1x", Kind: store.KindConsumable, Effect: store.EffectRarity, Multiplier: 1.5},
		{ID: 5, ItemName: "catnip_5x", Kind: store.KindConsumable, Effect: store.EffectRarity, Multiplier: 1.5},
	}
	mods := Aggregate(rows)
	if mods.Luck != 2.0 {
		t.Errorf("luck = %v, want 2.0", mods.Luck)
	}
	if mods.Coin != 2.5*1.25 {
		t.Errorf("coin = %v, want %v", mods.Coin, 2.5*1.25)
	}
	if mods.Rarity != 1.5*1.5 {
		t.Errorf("rarity = %v, want %v", mods.Rarity, 1.5*1.5)
	}
	if len(mods.ConsumedEffectIDs) != 2 || mods.ConsumedEffectIDs[0] != 4 || mods.ConsumedEffectIDs[1] != 5 {
		t.Errorf("consumed ids = %v, want [4 5]", mods.ConsumedEffectIDs)
	}
}

func TestAggregateSkipsUselessRows(t *testing.T) {
	rows := []store.ActiveEffect{
		{ID: 1, Kind: store.KindTimed, Effect: store.EffectCoin, Multiplier: 0},     // broken catalog row
		{ID: 2, Kind: store.KindPermanent, Effect: store.EffectNone, Multiplier: 1}, // cat namer
	}
	mods := Aggregate(rows)
	if mods.Luck != 1 || mods.Coin != 1 || mods.Rarity != 1 {
		t.Fatalf("modifiers = %+v, want neutral", mods)
	}
	if len(mods.ConsumedEffectIDs) != 0 {
		t.Fatalf("consumed ids = %v, want none", mods.ConsumedEffectIDs)
	}
}

func TestAggregateTimedRarityIsNotConsumed(t *testing.T) {
	// A timed rarity item (not in the current catalog, but the fold must not
	// assume rarity implies consumable).
	rows := []store.ActiveEffect{
		{ID: 9, Kind: store.KindTimed, Effect: store.EffectRarity, Multiplier: 1.5},
	}
	mods := Aggregate(rows)
	if mods.Rarity != 1.5 {
		t.Errorf("rarity = %v, want 1.5", mods.Rarity)
	}
	if len(mods.ConsumedEffectIDs) != 0 {
		t.Errorf("consumed ids = %v, want none", mods.ConsumedEffectIDs)
	}
}
