// Package shop implements purchases and item application on top of the store
// layer: the coins threshold check, inventory bookkeeping, and the per-kind
// activation rules (permanent unlocks, timed boosters, consumables).
package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/vanillachan6571/catroam/store"
)

// User-facing failures. The bot maps these to chat replies.
var (
	ErrItemNotFound   = errors.New("item not found")
	ErrNotEnoughCoins = errors.New("not enough coins")
	ErrNotOwned       = errors.New("item not in inventory")
	ErrBadCatName     = errors.New("cat name must be between 1-10 characters")
	ErrBadQuantity    = errors.New("invalid quantity")
)

// Service wires shop operations to the database.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Catalog lists purchasable items, cheapest first.
func (s *Service) Catalog(ctx context.Context) ([]store.ShopItem, error) {
	return store.ShopItems(ctx, s.db)
}

// Purchase buys catalog entry number n (1-based, in catalog order) for a
// player. Coins are a lifetime total derived from catches, so a purchase
// checks the threshold without deducting. Buying the Cat Namer also reserves
// the cat_names row that records the unlocked capability.
func (s *Service) Purchase(ctx context.Context, playerID, username string, n int) (store.ShopItem, error) {
	items, err := store.ShopItems(ctx, s.db)
	if err != nil {
		return store.ShopItem{}, err
	}
	if n < 1 || n > len(items) {
		return store.ShopItem{}, ErrItemNotFound
	}
	item := items[n-1]

	now := s.now()
	if err := store.UpsertPlayer(ctx, s.db, playerID, username, now); err != nil {
		return store.ShopItem{}, err
	}

	coins, err := store.Coins(ctx, s.db, playerID)
	if err != nil {
		return store.ShopItem{}, err
	}
	if coins < item.Price {
		return store.ShopItem{}, ErrNotEnoughCoins
	}

	if item.Kind == store.KindPermanent {
		has, err := store.HasCatNamer(ctx, s.db, playerID)
		if err != nil {
			return store.ShopItem{}, err
		}
		if !has {
			if err := store.SetCatName(ctx, s.db, playerID, ""); err != nil {
				return store.ShopItem{}, err
			}
		}
	}

	if err := store.AddToInventory(ctx, s.db, playerID, item.ID, now); err != nil {
		return store.ShopItem{}, err
	}
	slog.Info("shop purchase",
		slog.String("player_id", playerID),
		slog.String("item", item.Name),
		slog.Int64("price", item.Price))
	return item, nil
}

// Apply activates an owned item by its apply command. Dispatch is on the
// item's kind, not its name; several catalog entries may share a command
// (catnip sizes) and the variant the player actually holds wins.
func (s *Service) Apply(ctx context.Context, playerID, command, param string) (string, error) {
	candidates, err := store.ShopItemsByCommand(ctx, s.db, command)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", ErrItemNotFound
	}

	var item store.ShopItem
	held := 0
	for _, c := range candidates {
		q, err := store.InventoryQuantity(ctx, s.db, playerID, c.ID)
		if err != nil {
			return "", err
		}
		if q > 0 {
			item, held = c, q
			break
		}
	}
	if held == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotOwned, candidates[0].DisplayName)
	}

	switch item.Kind {
	case store.KindPermanent:
		return s.applyCatName(ctx, playerID, param)
	case store.KindConsumable:
		return s.applyConsumable(ctx, playerID, item, param, held)
	case store.KindTimed:
		return s.applyTimed(ctx, playerID, item)
	default:
		return "", fmt.Errorf("unhandled item kind %q for %s", item.Kind, item.Name)
	}
}

// applyCatName names the cat. The capability is permanent, so the inventory
// entry is not depleted per use.
func (s *Service) applyCatName(ctx context.Context, playerID, name string) (string, error) {
	if name == "" || len(name) > 10 {
		return "", ErrBadCatName
	}
	if err := store.SetCatName(ctx, s.db, playerID, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Your cat is now named %q", name), nil
}

// applyConsumable arms n charges of a consumable: one unused effect row
// carrying the quantity, n units taken from inventory.
func (s *Service) applyConsumable(ctx context.Context, playerID string, item store.ShopItem, param string, held int) (string, error) {
	quantity := 1
	if param != "" {
		n, err := strconv.Atoi(param)
		if err != nil || n <= 0 {
			return "", ErrBadQuantity
		}
		quantity = min(n, held)
	}

	alreadyActive := 0
	effects, err := store.ActiveEffects(ctx, s.db, playerID, s.now())
	if err != nil {
		return "", err
	}
	for _, e := range effects {
		if e.ItemID == item.ID {
			alreadyActive += e.Quantity
		}
	}

	if err := store.AddEffect(ctx, s.db, playerID, item.ID, quantity, s.now(), nil); err != nil {
		return "", err
	}
	if err := store.TakeFromInventory(ctx, s.db, playerID, item.ID, quantity); err != nil {
		return "", err
	}
	return fmt.Sprintf("Applied %dx %s (Total active: %d)", quantity, item.DisplayName, alreadyActive+quantity), nil
}

// applyTimed activates a booster. Re-applying while one is live stacks
// additively: the new expiry extends past whichever is later, the fresh
// window or the live one.
func (s *Service) applyTimed(ctx context.Context, playerID string, item store.ShopItem) (string, error) {
	now := s.now()
	maxLive, err := store.MaxLiveExpiry(ctx, s.db, playerID, item.ID, now)
	if err != nil {
		return "", err
	}
	expiry := stackedExpiry(now, item.Duration, maxLive)

	if err := store.AddEffect(ctx, s.db, playerID, item.ID, 1, now, &expiry); err != nil {
		return "", err
	}
	if err := store.TakeFromInventory(ctx, s.db, playerID, item.ID, 1); err != nil {
		return "", err
	}
	minutes := int(math.Round(expiry.Sub(now).Minutes()))
	return fmt.Sprintf("Applied %s (Active for %d minutes)", item.DisplayName, minutes), nil
}

// stackedExpiry computes a timed effect's expiry: now+duration, or when a
// matching effect is already live, duration past its latest expiry.
func stackedExpiry(now time.Time, duration time.Duration, maxLive *time.Time) time.Time {
	expiry := now.Add(duration)
	if maxLive != nil {
		if stacked := maxLive.Add(duration); stacked.After(expiry) {
			expiry = stacked
		}
	}
	return expiry
}
