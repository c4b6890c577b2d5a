package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/vanillachan6571/catroam/shop"
	"github.com/vanillachan6571/catroam/store"
	"github.com/vanillachan6571/catroam/telemetry"
)

// handleRoam queues a player's cat. The enqueue always happens; only the
// flavor reply is subject to the cooldown gate.
func (b *Bot) handleRoam(ctx context.Context, msg twitch.PrivateMessage) {
	logger := telemetry.LoggerWithCorr(ctx).With("component", "bot")

	catName, err := store.CatName(ctx, b.db, msg.User.ID)
	if err != nil {
		logger.Warn("cat name lookup failed", "player_id", msg.User.ID, "err", err)
	}

	if !b.sched.Enqueue(msg.User.ID, msg.User.DisplayName, msg.Channel) {
		b.reply(msg.Channel, alreadyRoamingMessage(msg.User.DisplayName, catName))
		return
	}
	if err := store.UpsertPlayer(ctx, b.db, msg.User.ID, msg.User.DisplayName, b.now()); err != nil {
		logger.Warn("player upsert on roam failed", "player_id", msg.User.ID, "err", err)
	}
	b.reply(msg.Channel, roamStartedMessage(msg.User.DisplayName, catName))
}

func alreadyRoamingMessage(username, catName string) string {
	if catName != "" {
		return fmt.Sprintf("Whoa! @%s's %q is already roaming! please wait for it to come back!", username, catName)
	}
	return fmt.Sprintf("Whoa! @%s, your cat is already roaming! please wait for it to come back!", username)
}

func roamStartedMessage(username, catName string) string {
	if catName != "" {
		return fmt.Sprintf("@%s's %q is now in purrsuit~!", username, catName)
	}
	return fmt.Sprintf("@%s's cat is now in purrsuit~!", username)
}

func (b *Bot) handleLeaderboard(ctx context.Context, msg twitch.PrivateMessage) {
	entries, err := store.TopCoins(ctx, b.db, 5)
	if err != nil || len(entries) == 0 {
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Error("coins leaderboard failed", "err", err)
		}
		b.reply(msg.Channel, fmt.Sprintf("Rare Error! @%s something has gone wrong.", b.cfg.HomeChannel))
		return
	}
	b.reply(msg.Channel, formatLeaderboard("Top Roamers (Total Coins): ", entries))
}

func (b *Bot) handleBestCatches(ctx context.Context, msg twitch.PrivateMessage) {
	entries, err := store.TopCatches(ctx, b.db, 5)
	if err != nil || len(entries) == 0 {
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Error("catches leaderboard failed", "err", err)
		}
		b.reply(msg.Channel, fmt.Sprintf("Rare Error! @%s something has gone wrong.", b.cfg.HomeChannel))
		return
	}
	b.reply(msg.Channel, formatLeaderboard("Top Catches (Best Single Catch): ", entries))
}

func formatLeaderboard(title string, entries []store.LeaderboardEntry) string {
	var sb strings.Builder
	sb.WriteString(title)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "#%d @%s (%d VC)", i+1, e.Username, e.Value)
	}
	return sb.String()
}

func (b *Bot) handleNameHistory(ctx context.Context, msg twitch.PrivateMessage) {
	history, err := store.UsernameHistory(ctx, b.db, msg.User.ID)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("name history failed", "player_id", msg.User.ID, "err", err)
		return
	}
	if len(history) == 0 {
		b.reply(msg.Channel, fmt.Sprintf("@%s has no recorded username changes", msg.User.DisplayName))
		return
	}
	b.reply(msg.Channel, formatNameHistory(msg.User.DisplayName, history))
}

func formatNameHistory(username string, history []store.NameHistoryEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s username history: ", username)
	for i, e := range history {
		if i > 0 {
			sb.WriteString(", ")
		}
		last := "Current"
		if e.LastSeen != nil {
			last = e.LastSeen.Format("01/02/2006")
		}
		fmt.Fprintf(&sb, "%s (%s to %s)", e.Username, e.FirstSeen.Format("01/02/2006"), last)
	}
	return sb.String()
}

// handleShop without an argument greets with the balance; with an item number
// it shows that item's details.
func (b *Bot) handleShop(ctx context.Context, msg twitch.PrivateMessage, args []string) {
	items, err := b.shop.Catalog(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("shop catalog failed", "err", err)
		return
	}
	if len(items) == 0 {
		b.reply(msg.Channel, "The shop is currently empty. Try again later!")
		return
	}

	if len(args) == 0 {
		coins, err := store.Coins(ctx, b.db, msg.User.ID)
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Error("coins lookup failed", "player_id", msg.User.ID, "err", err)
		}
		b.reply(msg.Channel, fmt.Sprintf(
			"@%s, Welcome to the Vanilla Coin Shop! You have %d VC. View items with !roamshop 1-%d or buy with !roambuy <item_number>",
			msg.User.DisplayName, coins, len(items)))
		return
	}

	n, ok := parseItemNumber(args[0], len(items))
	if !ok {
		b.reply(msg.Channel, fmt.Sprintf("@%s, Please specify a valid item number (1-%d)", msg.User.DisplayName, len(items)))
		return
	}
	item := items[n-1]
	b.reply(msg.Channel, fmt.Sprintf("@%s, %s (%d VC): %s. Use !roambuy %d to purchase.",
		msg.User.DisplayName, item.DisplayName, item.Price, item.Description, n))
}

func (b *Bot) handleBuy(ctx context.Context, msg twitch.PrivateMessage, args []string) {
	items, err := b.shop.Catalog(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("shop catalog failed", "err", err)
		return
	}
	if len(args) == 0 {
		b.reply(msg.Channel, fmt.Sprintf("@%s, Please specify a valid item number (1-%d)", msg.User.DisplayName, len(items)))
		return
	}
	n, ok := parseItemNumber(args[0], len(items))
	if !ok {
		b.reply(msg.Channel, fmt.Sprintf("@%s, Please specify a valid item number (1-%d)", msg.User.DisplayName, len(items)))
		return
	}

	item, err := b.shop.Purchase(ctx, msg.User.ID, msg.User.DisplayName, n)
	switch {
	case errors.Is(err, shop.ErrNotEnoughCoins):
		b.reply(msg.Channel, fmt.Sprintf("@%s, Not enough coins.", msg.User.DisplayName))
	case errors.Is(err, shop.ErrItemNotFound):
		b.reply(msg.Channel, fmt.Sprintf("@%s, That item doesn't exist in the shop.", msg.User.DisplayName))
	case err != nil:
		telemetry.LoggerWithCorr(ctx).Error("purchase failed", "player_id", msg.User.ID, "err", err)
		b.reply(msg.Channel, fmt.Sprintf("@%s, Database error.", msg.User.DisplayName))
	default:
		b.reply(msg.Channel, fmt.Sprintf("@%s, Successfully purchased %s! Use !roaminv to view your inventory.",
			msg.User.DisplayName, item.DisplayName))
	}
}

func parseItemNumber(arg string, max int) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > max {
		return 0, false
	}
	return n, true
}

func (b *Bot) handleInventory(ctx context.Context, msg twitch.PrivateMessage) {
	entries, err := store.Inventory(ctx, b.db, msg.User.ID)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("inventory lookup failed", "player_id", msg.User.ID, "err", err)
		return
	}
	if len(entries) == 0 {
		b.reply(msg.Channel, fmt.Sprintf("@%s, Your inventory is empty. Use !roamshop to visit the shop.", msg.User.DisplayName))
		return
	}

	effects, err := store.ActiveEffects(ctx, b.db, msg.User.ID, b.now())
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("active effects lookup failed", "player_id", msg.User.ID, "err", err)
	}
	catName, err := store.CatName(ctx, b.db, msg.User.ID)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("cat name lookup failed", "player_id", msg.User.ID, "err", err)
	}
	b.reply(msg.Channel, b.formatInventory(msg.User.DisplayName, entries, effects, catName))
}

func (b *Bot) formatInventory(username string, entries []store.InventoryEntry, effects []store.ActiveEffect, catName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s, Your inventory: ", username)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s (%dx)", e.Item.DisplayName, e.Quantity)
	}
	sb.WriteString(". Use !roamapply <type> to use an item.")

	if len(effects) > 0 {
		sb.WriteString(" Active effects: ")
		for i, e := range effects {
			if i > 0 {
				sb.WriteString(", ")
			}
			switch {
			case e.ExpiresAt != nil:
				minutes := max(0, int(e.ExpiresAt.Sub(b.now()).Minutes()))
				fmt.Fprintf(&sb, "%s (%dm left)", e.DisplayName, minutes)
			case e.Kind == store.KindConsumable:
				fmt.Fprintf(&sb, "%s (%dx)", e.DisplayName, e.Quantity)
			default:
				sb.WriteString(e.DisplayName)
			}
		}
		sb.WriteString(".")
	}
	if catName != "" {
		fmt.Fprintf(&sb, " Your cat name: %q", catName)
	}
	return sb.String()
}

func (b *Bot) handleApply(ctx context.Context, msg twitch.PrivateMessage, args []string) {
	if len(args) == 0 {
		b.reply(msg.Channel, fmt.Sprintf("@%s, Please specify which item to use (e.g., !roamapply catnip)", msg.User.DisplayName))
		return
	}
	command := strings.ToLower(args[0])
	param := strings.Join(args[1:], " ")

	result, err := b.shop.Apply(ctx, msg.User.ID, command, param)
	switch {
	case errors.Is(err, shop.ErrItemNotFound):
		b.reply(msg.Channel, fmt.Sprintf("@%s, Invalid item command: %s", msg.User.DisplayName, command))
	case errors.Is(err, shop.ErrNotOwned):
		b.reply(msg.Channel, fmt.Sprintf("@%s, You don't have that item in your inventory", msg.User.DisplayName))
	case errors.Is(err, shop.ErrBadCatName):
		b.reply(msg.Channel, fmt.Sprintf("@%s, Cat name must be between 1-10 characters", msg.User.DisplayName))
	case errors.Is(err, shop.ErrBadQuantity):
		b.reply(msg.Channel, fmt.Sprintf("@%s, Invalid quantity", msg.User.DisplayName))
	case err != nil:
		telemetry.LoggerWithCorr(ctx).Error("apply failed", "player_id", msg.User.ID, "err", err)
		b.reply(msg.Channel, fmt.Sprintf("@%s, Database error.", msg.User.DisplayName))
	default:
		b.reply(msg.Channel, fmt.Sprintf("@%s, %s", msg.User.DisplayName, result))
	}
}

func (b *Bot) handleDebug(_ context.Context, msg twitch.PrivateMessage) {
	if !isModerator(msg.User) {
		return
	}
	state := b.sched.Snapshot()
	b.reply(msg.Channel, fmt.Sprintf("Debug - Queue: %d, Active players: %d, Cooldown: %s",
		state.QueueDepth, state.ActivePlayers, state.CooldownRemaining))
}
