// Package bot is the chat-facing surface: the Twitch IRC connection, the
// command router, and the channel registry glue.
package bot

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/vanillachan6571/catroam/config"
	"github.com/vanillachan6571/catroam/game"
	"github.com/vanillachan6571/catroam/shop"
	"github.com/vanillachan6571/catroam/telemetry"
	"github.com/vanillachan6571/catroam/twitchapi"
)

// Bot owns the IRC client and routes chat commands to the game.
type Bot struct {
	cfg    config.Config
	client *twitch.Client
	db     *sql.DB
	sched  *game.Scheduler
	shop   *shop.Service
	helix  *twitchapi.HelixClient

	// send is the raw outbound path; swapped in tests.
	send func(channel, text string)

	mu        sync.Mutex
	lastReply time.Time
	now       func() time.Time
}

// New builds a bot around an authenticated IRC client. helix may be nil when
// no API credentials are configured; live-status checks degrade gracefully.
func New(cfg config.Config, db *sql.DB, sched *game.Scheduler, shopSvc *shop.Service, helix *twitchapi.HelixClient) *Bot {
	client := twitch.NewClient(cfg.BotUsername, cfg.OAuthToken)
	b := &Bot{
		cfg:    cfg,
		client: client,
		db:     db,
		sched:  sched,
		shop:   shopSvc,
		helix:  helix,
		now:    time.Now,
	}
	b.send = client.Say
	client.OnPrivateMessage(b.handleMessage)
	client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("component", "bot"))
		go b.announceStartup(context.Background())
	})
	return b
}

// Run joins the registered channels and blocks on the IRC connection until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.joinRegisteredChannels(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.client.Connect()
	}()

	select {
	case <-ctx.Done():
		b.client.Disconnect()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}

// Say sends a message unconditionally. The scheduler uses this for batch
// results, which are never suppressed by the reply cooldown.
func (b *Bot) Say(channel, text string) {
	b.send(channel, text)
}

// reply sends a message unless the global reply cooldown is still running.
// Commands are always processed; only the chatty acknowledgement is gated.
func (b *Bot) reply(channel, text string) bool {
	b.mu.Lock()
	if b.now().Sub(b.lastReply) < b.cfg.ReplyCooldown {
		b.mu.Unlock()
		if telemetry.RepliesSuppressed != nil {
			telemetry.RepliesSuppressed.Inc()
		}
		return false
	}
	b.lastReply = b.now()
	b.mu.Unlock()
	b.send(channel, text)
	return true
}

// isModerator reports whether the sender can run mod-gated commands in the
// channel the message came from.
func isModerator(u twitch.User) bool {
	return u.Badges["moderator"] == 1 || u.Badges["broadcaster"] == 1
}

func isBroadcaster(u twitch.User, channel string) bool {
	return u.Badges["broadcaster"] == 1 || strings.EqualFold(u.Name, channel)
}
