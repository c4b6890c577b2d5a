// Command catroam is the main entrypoint for the cat roaming chat game.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres, runs idempotent migrations, and seeds the shop.
//   - Starts the roam batch scheduler and the chat token refresher.
//   - Connects the Twitch chat bot and joins registered channels.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vanillachan6571/catroam/bot"
	"github.com/vanillachan6571/catroam/config"
	"github.com/vanillachan6571/catroam/db"
	"github.com/vanillachan6571/catroam/game"
	"github.com/vanillachan6571/catroam/oauth"
	"github.com/vanillachan6571/catroam/server"
	"github.com/vanillachan6571/catroam/shop"
	"github.com/vanillachan6571/catroam/store"
	"github.com/vanillachan6571/catroam/telemetry"
	"github.com/vanillachan6571/catroam/twitchapi"
)

// sayerFunc adapts a closure to game.Sayer so the scheduler can be built
// before the bot that carries its messages.
type sayerFunc func(channel, text string)

func (f sayerFunc) Say(channel, text string) { f(channel, text) }

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("catroam", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Dual migration path: versioned migrations (golang-migrate) when the
	// db/migrations directory ships with the binary, embedded SQL otherwise.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	}
	if err := store.SeedShopItems(context.Background(), database); err != nil {
		slog.Error("failed to seed shop catalog", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Helix client for live-status checks; optional.
	var helix *twitchapi.HelixClient
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		helix = &twitchapi.HelixClient{
			AppTokenSource: twitchapi.NewAppTokenSource(cfg.ClientID, cfg.ClientSecret, ""),
			ClientID:       cfg.ClientID,
		}
	} else {
		slog.Info("twitch api creds not set; live-status checks disabled")
	}

	// Prefer the stored (refreshed) chat token over the env one; seed the row
	// from env on first run so the refresher has something to work with.
	if access, _, _, _, err := db.GetOAuthToken(ctx, database, "twitch-chat"); err != nil {
		slog.Warn("stored chat token lookup failed", slog.Any("err", err))
	} else if access != "" {
		cfg.OAuthToken = ensureOAuthPrefix(access)
	} else if cfg.OAuthToken != "" {
		raw := strings.TrimPrefix(cfg.OAuthToken, "oauth:")
		if err := db.UpsertOAuthToken(ctx, database, "twitch-chat", raw, "", time.Time{}, "chat:read chat:edit"); err != nil {
			slog.Warn("chat token seed failed", slog.Any("err", err))
		}
	}
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Error("chat not configured", slog.Any("err", err))
		os.Exit(1)
	}

	adapter := &store.DB{DB: database}
	var chatBot *bot.Bot
	sched := game.NewScheduler(game.SchedulerConfig{
		BatchSize:      cfg.BatchSize,
		Cooldown:       cfg.ReplyCooldown,
		ResolveTimeout: cfg.ResolveTimeout,
	}, adapter, adapter, sayerFunc(func(channel, text string) {
		chatBot.Say(channel, text)
	}), game.NewResolver())
	chatBot = bot.New(*cfg, database, sched, shop.NewService(database), helix)

	go sched.Run(ctx, cfg.RoamInterval)

	// Keep the chat token fresh across long uptimes.
	oauth.StartRefresher(ctx, database, "twitch-chat", 5*time.Minute, 15*time.Minute,
		func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			return twitchapi.RefreshUserToken(rctx, nil, "", cfg.ClientID, cfg.ClientSecret, refreshToken)
		})

	srv := server.New(cfg.HTTPAddr, database, sched)
	go func() {
		if err := srv.Start(ctx); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	if err := chatBot.Run(ctx); err != nil {
		slog.Error("chat bot exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}

func ensureOAuthPrefix(token string) string {
	if strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}
