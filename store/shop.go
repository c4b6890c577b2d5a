package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ItemKind classifies how a shop item is consumed.
type ItemKind string

const (
	KindPermanent  ItemKind = "permanent"  // one-time unlock, never depleted per use
	KindTimed      ItemKind = "timed"      // live while expires_at is in the future
	KindConsumable ItemKind = "consumable" // live until marked used
)

// EffectClass names which modifier an item boosts.
type EffectClass string

const (
	EffectNone   EffectClass = "none"
	EffectLuck   EffectClass = "luck"
	EffectCoin   EffectClass = "coin"
	EffectRarity EffectClass = "rarity"
)

// ShopItem is one static catalog row.
type ShopItem struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	Price       int64
	Kind        ItemKind
	Effect      EffectClass
	Duration    time.Duration // timed items only
	Multiplier  float64
	Command     string
}

// InventoryEntry is an owned item with its catalog metadata.
type InventoryEntry struct {
	Item     ShopItem
	Quantity int
}

// ActiveEffect is a live (or pending-consumable) effect row joined to its item.
type ActiveEffect struct {
	ID          int64
	ItemID      int64
	ItemName    string
	DisplayName string
	Kind        ItemKind
	Effect      EffectClass
	Multiplier  float64
	Quantity    int
	ActivatedAt time.Time
	ExpiresAt   *time.Time // timed only
	Used        bool
}

const shopItemColumns = `id, name, display_name, description, price, kind, effect, COALESCE(duration_seconds,0), COALESCE(multiplier,0), command`

func scanShopItem(row interface{ Scan(...any) error }) (ShopItem, error) {
	var it ShopItem
	var durationSeconds int64
	err := row.Scan(&it.ID, &it.Name, &it.DisplayName, &it.Description, &it.Price,
		&it.Kind, &it.Effect, &durationSeconds, &it.Multiplier, &it.Command)
	it.Duration = time.Duration(durationSeconds) * time.Second
	return it, err
}

// ShopItems lists the catalog, cheapest first.
func ShopItems(ctx context.Context, db *sql.DB) ([]ShopItem, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+shopItemColumns+` FROM shop_items ORDER BY price ASC`)
	if err != nil {
		return nil, fmt.Errorf("query shop items: %w", err)
	}
	defer rows.Close()
	var out []ShopItem
	for rows.Next() {
		it, err := scanShopItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ShopItemsByCommand finds the catalog items triggered by an apply command.
// Several items may share a command (catnip variants); callers pick among them.
func ShopItemsByCommand(ctx context.Context, db *sql.DB, command string) ([]ShopItem, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+shopItemColumns+` FROM shop_items WHERE command = $1 ORDER BY id ASC`, command)
	if err != nil {
		return nil, fmt.Errorf("lookup shop items: %w", err)
	}
	defer rows.Close()
	var out []ShopItem
	for rows.Next() {
		it, err := scanShopItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Inventory lists a player's owned items with quantity > 0, by item name.
func Inventory(ctx context.Context, db *sql.DB, playerID string) ([]InventoryEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT s.id, s.name, s.display_name, s.description, s.price, s.kind, s.effect,
			COALESCE(s.duration_seconds,0), COALESCE(s.multiplier,0), s.command, i.quantity
		FROM user_inventory i JOIN shop_items s ON i.item_id = s.id
		WHERE i.user_id = $1 AND i.quantity > 0 ORDER BY s.name`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()
	var out []InventoryEntry
	for rows.Next() {
		var e InventoryEntry
		var durationSeconds int64
		if err := rows.Scan(&e.Item.ID, &e.Item.Name, &e.Item.DisplayName, &e.Item.Description, &e.Item.Price,
			&e.Item.Kind, &e.Item.Effect, &durationSeconds, &e.Item.Multiplier, &e.Item.Command, &e.Quantity); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		e.Item.Duration = time.Duration(durationSeconds) * time.Second
		out = append(out, e)
	}
	return out, rows.Err()
}

// InventoryQuantity returns how many of one item a player holds.
func InventoryQuantity(ctx context.Context, db *sql.DB, playerID string, itemID int64) (int, error) {
	var q int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(quantity),0) FROM user_inventory
		WHERE user_id = $1 AND item_id = $2`, playerID, itemID).Scan(&q)
	if err != nil {
		return 0, fmt.Errorf("inventory quantity: %w", err)
	}
	return q, nil
}

// AddToInventory increments (or creates) a player's holding of an item.
func AddToInventory(ctx context.Context, db *sql.DB, playerID string, itemID int64, now time.Time) error {
	_, err := db.ExecContext(ctx, `INSERT INTO user_inventory (user_id, item_id, quantity, purchased_at)
		VALUES ($1,$2,1,$3)
		ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = user_inventory.quantity + 1, purchased_at = EXCLUDED.purchased_at`,
		playerID, itemID, now)
	if err != nil {
		return fmt.Errorf("add to inventory: %w", err)
	}
	return nil
}

// TakeFromInventory removes n units; it fails without side effect when the
// player holds fewer than n.
func TakeFromInventory(ctx context.Context, db *sql.DB, playerID string, itemID int64, n int) error {
	res, err := db.ExecContext(ctx, `UPDATE user_inventory SET quantity = quantity - $1
		WHERE user_id = $2 AND item_id = $3 AND quantity >= $1`, n, playerID, itemID)
	if err != nil {
		return fmt.Errorf("take from inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("take from inventory: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("insufficient inventory for item %d", itemID)
	}
	return nil
}

// ActiveEffects returns a player's currently live effects joined to their
// catalog metadata: timed effects not yet expired, consumables not yet used.
func ActiveEffects(ctx context.Context, db *sql.DB, playerID string, now time.Time) ([]ActiveEffect, error) {
	rows, err := db.QueryContext(ctx, `SELECT e.id, e.item_id, s.name, s.display_name, s.kind, s.effect,
			COALESCE(s.multiplier,0), e.quantity, e.activated_at, e.expires_at, e.used
		FROM active_effects e JOIN shop_items s ON e.item_id = s.id
		WHERE e.user_id = $1 AND (
			(s.kind = 'timed' AND e.expires_at > $2) OR
			(s.kind = 'consumable' AND e.used = FALSE)
		)
		ORDER BY e.activated_at ASC`, playerID, now)
	if err != nil {
		return nil, fmt.Errorf("query active effects: %w", err)
	}
	defer rows.Close()
	var out []ActiveEffect
	for rows.Next() {
		var e ActiveEffect
		var expires sql.NullTime
		if err := rows.Scan(&e.ID, &e.ItemID, &e.ItemName, &e.DisplayName, &e.Kind, &e.Effect,
			&e.Multiplier, &e.Quantity, &e.ActivatedAt, &expires, &e.Used); err != nil {
			return nil, fmt.Errorf("scan active effect: %w", err)
		}
		if expires.Valid {
			t := expires.Time
			e.ExpiresAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddEffect inserts an active effect row. expiresAt is nil for consumables.
func AddEffect(ctx context.Context, db *sql.DB, playerID string, itemID int64, quantity int, now time.Time, expiresAt *time.Time) error {
	var expires any
	if expiresAt != nil {
		expires = *expiresAt
	}
	_, err := db.ExecContext(ctx, `INSERT INTO active_effects (user_id, item_id, quantity, activated_at, expires_at, used)
		VALUES ($1,$2,$3,$4,$5,FALSE)`, playerID, itemID, quantity, now, expires)
	if err != nil {
		return fmt.Errorf("add effect: %w", err)
	}
	return nil
}

// MaxLiveExpiry returns the latest expiry among a player's live timed effects
// of one item; nil when none are live.
func MaxLiveExpiry(ctx context.Context, db *sql.DB, playerID string, itemID int64, now time.Time) (*time.Time, error) {
	var expires sql.NullTime
	err := db.QueryRowContext(ctx, `SELECT MAX(expires_at) FROM active_effects
		WHERE user_id = $1 AND item_id = $2 AND expires_at > $3`, playerID, itemID, now).Scan(&expires)
	if err != nil {
		return nil, fmt.Errorf("max live expiry: %w", err)
	}
	if !expires.Valid {
		return nil, nil
	}
	t := expires.Time
	return &t, nil
}

// MarkEffectsUsed flags consumable effect rows as spent.
func MarkEffectsUsed(ctx context.Context, db *sql.DB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, err := db.ExecContext(ctx, `UPDATE active_effects SET used = TRUE WHERE id = $1`, id); err != nil {
			return fmt.Errorf("mark effect %d used: %w", id, err)
		}
	}
	return nil
}

// CatName returns a player's cat name, empty when unset.
func CatName(ctx context.Context, db *sql.DB, playerID string) (string, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT cat_name FROM cat_names WHERE user_id = $1`, playerID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup cat name: %w", err)
	}
	return name, nil
}

// SetCatName stores a player's cat name. An empty name reserves the row, which
// is how a Cat Namer purchase records the unlocked capability.
func SetCatName(ctx context.Context, db *sql.DB, playerID, name string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO cat_names (user_id, cat_name) VALUES ($1,$2)
		ON CONFLICT (user_id) DO UPDATE SET cat_name = EXCLUDED.cat_name`, playerID, name)
	if err != nil {
		return fmt.Errorf("set cat name: %w", err)
	}
	return nil
}

// HasCatNamer reports whether the player has purchased the naming capability.
func HasCatNamer(ctx context.Context, db *sql.DB, playerID string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM cat_names WHERE user_id = $1`, playerID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup cat namer: %w", err)
	}
	return true, nil
}

// SeedShopItems inserts the initial catalog; existing rows are left alone.
func SeedShopItems(ctx context.Context, db *sql.DB) error {
	items := []ShopItem{
		{Name: "cat_namer", DisplayName: "Cat Namer", Description: "Name your cat (up to 10 characters)",
			Price: 20000, Kind: KindPermanent, Effect: EffectNone, Command: "collar"},
		{Name: "lick_vanilla_cream", DisplayName: "Lick Vanilla's Cream", Description: "Increases luck multiplier chance for 30 minutes",
			Price: 7000, Kind: KindTimed, Effect: EffectLuck, Duration: 30 * time.Minute, Multiplier: 2.0, Command: "creamies"},
		{Name: "epic_coin_booster", DisplayName: "Epic Vanilla Coin Booster", Description: "2.50x coin multiplier for 30 minutes",
			Price: 14250, Kind: KindTimed, Effect: EffectCoin, Duration: 30 * time.Minute, Multiplier: 2.5, Command: "epicboost"},
		{Name: "rare_coin_booster", DisplayName: "Rare Vanilla Coin Booster", Description: "1.75x coin multiplier for 30 minutes",
			Price: 9500, Kind: KindTimed, Effect: EffectCoin, Duration: 30 * time.Minute, Multiplier: 1.75, Command: "rareboost"},
		{Name: "common_coin_booster", DisplayName: "Common Vanilla Coin Booster", Description: "1.25x coin multiplier for 30 minutes",
			Price: 6500, Kind: KindTimed, Effect: EffectCoin, Duration: 30 * time.Minute, Multiplier: 1.25, Command: "boost"},
		{Name: "catnip_5x", DisplayName: "Catnip 5x", Description: "Increases chance of better rarities for 5 roams",
			Price: 1400, Kind: KindConsumable, Effect: EffectRarity, Multiplier: 1.5, Command: "catnip"},
		{Name: "catnip_1x", DisplayName: "Catnip 1x", Description: "Increases chance of better rarities for 1 roam",
			Price: 350, Kind: KindConsumable, Effect: EffectRarity, Multiplier: 1.5, Command: "catnip"},
	}
	for _, it := range items {
		var duration any
		if it.Duration > 0 {
			duration = int64(it.Duration.Seconds())
		}
		var multiplier any
		if it.Multiplier > 0 {
			multiplier = it.Multiplier
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO shop_items (name, display_name, description, price, kind, effect, duration_seconds, multiplier, command)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (name) DO NOTHING`,
			it.Name, it.DisplayName, it.Description, it.Price, it.Kind, it.Effect, duration, multiplier, it.Command); err != nil {
			return fmt.Errorf("seed shop item %s: %w", it.Name, err)
		}
	}
	return nil
}
