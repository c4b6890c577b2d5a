package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/vanillachan6571/catroam/store"
)

func TestRoamMessagesUseCatName(t *testing.T) {
	if got := roamStartedMessage("Alice", ""); got != "@Alice's cat is now in purrsuit~!" {
		t.Errorf("unnamed start = %q", got)
	}
	if got := roamStartedMessage("Alice", "Mittens"); got != `@Alice's "Mittens" is now in purrsuit~!` {
		t.Errorf("named start = %q", got)
	}
	if got := alreadyRoamingMessage("Alice", ""); got != "Whoa! @Alice, your cat is already roaming! please wait for it to come back!" {
		t.Errorf("unnamed busy = %q", got)
	}
	if got := alreadyRoamingMessage("Alice", "Mittens"); !strings.Contains(got, `"Mittens" is already roaming`) {
		t.Errorf("named busy = %q", got)
	}
}

func TestFormatLeaderboard(t *testing.T) {
	entries := []store.LeaderboardEntry{
		{Username: "alice", Value: 5000},
		{Username: "bob", Value: 1200},
	}
	got := formatLeaderboard("Top Roamers (Total Coins): ", entries)
	want := "Top Roamers (Total Coins): #1 @alice (5000 VC), #2 @bob (1200 VC)"
	if got != want {
		t.Fatalf("leaderboard = %q, want %q", got, want)
	}
}

func TestFormatNameHistory(t *testing.T) {
	first := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	closed := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	history := []store.NameHistoryEntry{
		{Username: "alice_new", FirstSeen: closed},
		{Username: "alice", FirstSeen: first, LastSeen: &closed},
	}
	got := formatNameHistory("alice_new", history)
	want := "@alice_new username history: alice_new (03/02/2025 to Current), alice (01/15/2025 to 03/02/2025)"
	if got != want {
		t.Fatalf("history = %q, want %q", got, want)
	}
}

func TestFormatInventory(t *testing.T) {
	b, _, clock := newReplyTestBot(time.Second)
	expires := clock.Add(12*time.Minute + 30*time.Second)
	entries := []store.InventoryEntry{
		{Item: store.ShopItem{DisplayName: "Catnip 1x"}, Quantity: 3},
		{Item: store.ShopItem{DisplayName: "Cat Namer"}, Quantity: 1},
	}
	effects := []store.ActiveEffect{
		{DisplayName: "Epic Vanilla Coin Booster", Kind: store.KindTimed, ExpiresAt: &expires},
		{DisplayName: "Catnip 1x", Kind: store.KindConsumable, Quantity: 2},
	}

	got := b.formatInventory("Alice", entries, effects, "Mittens")
	for _, want := range []string{
		"@Alice, Your inventory: Catnip 1x (3x), Cat Namer (1x). Use !roamapply <type> to use an item.",
		"Epic Vanilla Coin Booster (12m left)",
		"Catnip 1x (2x)",
		`Your cat name: "Mittens"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("inventory message missing %q:\n%s", want, got)
		}
	}
}

func TestFormatInventoryWithoutEffectsOrName(t *testing.T) {
	b, _, _ := newReplyTestBot(time.Second)
	entries := []store.InventoryEntry{{Item: store.ShopItem{DisplayName: "Catnip 5x"}, Quantity: 1}}
	got := b.formatInventory("Bob", entries, nil, "")
	if strings.Contains(got, "Active effects") || strings.Contains(got, "cat name") {
		t.Fatalf("unexpected sections in %q", got)
	}
}

func TestParseItemNumber(t *testing.T) {
	if _, ok := parseItemNumber("0", 7); ok {
		t.Error("0 accepted")
	}
	if _, ok := parseItemNumber("8", 7); ok {
		t.Error("out of range accepted")
	}
	if _, ok := parseItemNumber("x", 7); ok {
		t.Error("non-numeric accepted")
	}
	if n, ok := parseItemNumber("7", 7); !ok || n != 7 {
		t.Errorf("valid number rejected: %d %v", n, ok)
	}
}
