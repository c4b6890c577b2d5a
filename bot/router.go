package bot

import (
	"context"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"

	"github.com/vanillachan6571/catroam/telemetry"
)

const commandTimeout = 10 * time.Second

// parsedCommand is a chat command split off a PRIVMSG.
type parsedCommand struct {
	name string   // lowercased, leading '!' included
	args []string // remaining whitespace-separated tokens
}

// parseCommand extracts a command from a message, or ok=false when the
// message is not a command.
func parseCommand(message string) (parsedCommand, bool) {
	message = strings.TrimSpace(message)
	if !strings.HasPrefix(message, "!") {
		return parsedCommand{}, false
	}
	fields := strings.Fields(message)
	if len(fields) == 0 || fields[0] == "!" {
		return parsedCommand{}, false
	}
	return parsedCommand{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

func (b *Bot) handleMessage(msg twitch.PrivateMessage) {
	if strings.EqualFold(msg.User.Name, b.cfg.BotUsername) {
		return
	}
	cmd, ok := parseCommand(msg.Message)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	if telemetry.CommandsHandled != nil {
		telemetry.CommandsHandled.Inc()
	}

	switch cmd.name {
	case "!roam":
		b.handleRoam(ctx, msg)
	case "!roamboards", "!roamboard":
		b.handleLeaderboard(ctx, msg)
	case "!roamcaughts", "!roamcaught":
		b.handleBestCatches(ctx, msg)
	case "!namehist":
		b.handleNameHistory(ctx, msg)
	case "!roamshop":
		b.handleShop(ctx, msg, cmd.args)
	case "!roambuy":
		b.handleBuy(ctx, msg, cmd.args)
	case "!roaminv":
		b.handleInventory(ctx, msg)
	case "!roamapply":
		b.handleApply(ctx, msg, cmd.args)
	case "!roamjoin":
		b.handleJoin(ctx, msg)
	case "!roamleave":
		b.handleLeave(ctx, msg)
	case "!debug":
		b.handleDebug(ctx, msg)
	}
}
