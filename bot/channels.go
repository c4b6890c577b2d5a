package bot

import (
	"context"
	"fmt"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/vanillachan6571/catroam/store"
	"github.com/vanillachan6571/catroam/telemetry"
)

// handleJoin registers the requester's own channel. It is only accepted in
// the home channel, and the requester is by definition the broadcaster of the
// channel being joined.
func (b *Bot) handleJoin(ctx context.Context, msg twitch.PrivateMessage) {
	if !strings.EqualFold(msg.Channel, b.cfg.HomeChannel) {
		return
	}
	logger := telemetry.LoggerWithCorr(ctx).With("component", "bot")
	target := strings.ToLower(msg.User.Name)

	joined, err := store.IsChannelJoined(ctx, b.db, target)
	if err != nil {
		logger.Error("channel lookup failed", "channel", target, "err", err)
		b.reply(msg.Channel, fmt.Sprintf("@%s, Something went wrong while trying to join your channel. Please try again later.", msg.User.DisplayName))
		return
	}
	if joined {
		b.reply(msg.Channel, fmt.Sprintf("@%s, I'm already set up to join your channel!", msg.User.DisplayName))
		return
	}

	b.reply(msg.Channel, fmt.Sprintf(
		"@%s, I'll join your channel! Make sure to mod me (/mod %s) for the best experience. Use !roamleave in your channel if you want me to leave later.",
		msg.User.DisplayName, b.cfg.BotUsername))

	if err := store.AddChannel(ctx, b.db, target, msg.User.ID, false, b.now()); err != nil {
		logger.Error("channel registration failed", "channel", target, "err", err)
		return
	}
	b.client.Join(target)
	logger.Info("joined channel", "channel", target)

	// Greeting depends on whether the new channel is live right now.
	if b.isLive(ctx, target) {
		b.Say(target, fmt.Sprintf(
			"Hello @%s! I'm now ready to accept commands in your channel. Your viewers can use !roam to start playing! If you want me to leave, type !roamleave on https://twitch.tv/%s",
			msg.User.DisplayName, b.cfg.HomeChannel))
	} else {
		b.Say(target, fmt.Sprintf("Seems like you're taking a cat nap @%s... I'll be ready when you go live!", msg.User.DisplayName))
	}
}

// handleLeave departs from a non-home channel at the broadcaster's or a
// moderator's request.
func (b *Bot) handleLeave(ctx context.Context, msg twitch.PrivateMessage) {
	logger := telemetry.LoggerWithCorr(ctx).With("component", "bot")
	channel := strings.ToLower(msg.Channel)

	if strings.EqualFold(channel, b.cfg.HomeChannel) {
		b.reply(msg.Channel, fmt.Sprintf("@%s, I can't leave my home channel!", msg.User.DisplayName))
		return
	}
	if !isModerator(msg.User) && !isBroadcaster(msg.User, channel) {
		b.reply(msg.Channel, fmt.Sprintf("@%s, Only the channel broadcaster or moderators can ask me to leave.", msg.User.DisplayName))
		return
	}

	removed, err := store.RemoveChannel(ctx, b.db, channel)
	if err != nil {
		logger.Error("channel removal failed", "channel", channel, "err", err)
		b.reply(msg.Channel, fmt.Sprintf("@%s, Something went wrong while trying to leave. Please try again later.", msg.User.DisplayName))
		return
	}
	if !removed {
		b.reply(msg.Channel, fmt.Sprintf("@%s, I'm not currently set up for this channel.", msg.User.DisplayName))
		return
	}

	b.Say(channel, fmt.Sprintf(
		"Goodbye @%s! It was fun helping with your cat adventures. If you want me back, visit https://twitch.tv/%s and type !roamjoin",
		channel, b.cfg.HomeChannel))
	b.client.Depart(channel)
	logger.Info("left channel", "channel", channel)
}

// joinRegisteredChannels ensures the home channel is registered and joins
// everything in the registry.
func (b *Bot) joinRegisteredChannels(ctx context.Context) error {
	if err := store.AddChannel(ctx, b.db, b.cfg.HomeChannel, "", true, b.now()); err != nil {
		return fmt.Errorf("register home channel: %w", err)
	}
	channels, err := store.JoinedChannels(ctx, b.db)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	for _, c := range channels {
		b.client.Join(c.Name)
	}
	return nil
}

// announceStartup greets each joined channel after connect, with the message
// keyed to home/joint channel and live status.
func (b *Bot) announceStartup(ctx context.Context) {
	channels, err := store.JoinedChannels(ctx, b.db)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("startup channel list failed", "err", err)
		return
	}
	for _, c := range channels {
		if c.IsHome {
			b.Say(c.Name, "Bot Online! Looking out for commands now!")
			continue
		}
		if b.isLive(ctx, c.Name) {
			b.Say(c.Name, fmt.Sprintf(
				"Master %s is awake! I will now prepare to establish commands now! (if you wish for me to leave, !roamleave or visit https://twitch.tv/%s)",
				c.Name, b.cfg.HomeChannel))
		} else {
			b.Say(c.Name, fmt.Sprintf("Seems like Master %s is taking a cat nap... please wait for them to wake up!", c.Name))
		}
	}
}

// isLive checks a channel's live status via Helix, recording the result in
// the registry. Without a Helix client it reports live so commands work.
func (b *Bot) isLive(ctx context.Context, channel string) bool {
	if b.helix == nil {
		return true
	}
	stream, err := b.helix.GetStream(ctx, channel)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("live status check failed", "channel", channel, "err", err)
		return true
	}
	if err := store.TouchChannelLiveStatus(ctx, b.db, channel, stream != nil, b.now()); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("live status persist failed", "channel", channel, "err", err)
	}
	return stream != nil
}
