// Package db provides database connection helpers, schema migration, and
// stored-token access.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'

	"github.com/vanillachan6571/catroam/crypto"
)

var (
	// encryptor is the process-wide encryptor for chat token storage.
	encryptor     crypto.Encryptor
	encryptorOnce sync.Once
	encryptorErr  error
)

// initEncryptor initializes the encryptor from ENCRYPTION_KEY. If the key is
// not set, tokens are stored in plaintext (encryption_version = 0).
func initEncryptor() {
	encryptorOnce.Do(func() {
		key := os.Getenv("ENCRYPTION_KEY")
		if key == "" {
			slog.Warn("ENCRYPTION_KEY not set, stored chat tokens will be plaintext (not recommended for production)", slog.String("component", "db_encryption"))
			return
		}
		enc, err := crypto.NewAESEncryptor(key)
		if err != nil {
			encryptorErr = fmt.Errorf("failed to initialize encryption: %w", err)
			slog.Error("encryption initialization failed", slog.Any("error", encryptorErr), slog.String("component", "db_encryption"))
			return
		}
		encryptor = enc
		slog.Info("chat token encryption enabled (AES-256-GCM)", slog.String("component", "db_encryption"))
	})
}

func getEncryptor() (crypto.Encryptor, error) {
	initEncryptor()
	if encryptorErr != nil {
		return nil, encryptorErr
	}
	return encryptor, nil
}

// Connect opens a Postgres connection with the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and
// indices. Versioned migrations in db/migrations/ are preferred when present;
// this embedded form keeps fresh installs and tests self-contained.
func Migrate(ctx context.Context, db *sql.DB) error { return migratePostgres(ctx, db) }

func migratePostgres(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			user_id TEXT PRIMARY KEY,
			current_username TEXT NOT NULL,
			best_value BIGINT NOT NULL DEFAULT 0,
			total_catches INTEGER NOT NULL DEFAULT 0,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS username_history (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES players(user_id),
			username TEXT NOT NULL,
			first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS catches (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES players(user_id),
			username TEXT NOT NULL,
			item TEXT NOT NULL,
			tier TEXT NOT NULL,
			luck_tag TEXT,
			value BIGINT NOT NULL,
			caught_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS shop_items (
			id SERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL,
			kind TEXT NOT NULL,
			effect TEXT NOT NULL DEFAULT 'none',
			duration_seconds BIGINT,
			multiplier DOUBLE PRECISION,
			command TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_inventory (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES players(user_id),
			item_id BIGINT NOT NULL REFERENCES shop_items(id),
			quantity INTEGER NOT NULL DEFAULT 0,
			purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(user_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS active_effects (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES players(user_id),
			item_id BIGINT NOT NULL REFERENCES shop_items(id),
			quantity INTEGER NOT NULL DEFAULT 1,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			used BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS cat_names (
			user_id TEXT PRIMARY KEY REFERENCES players(user_id),
			cat_name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS joined_channels (
			channel_name TEXT PRIMARY KEY,
			broadcaster_id TEXT,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_home BOOLEAN NOT NULL DEFAULT FALSE,
			last_checked TIMESTAMPTZ,
			last_seen_live TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			provider TEXT PRIMARY KEY,
			access_token TEXT,
			refresh_token TEXT,
			expires_at TIMESTAMPTZ,
			scope TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			encryption_version INTEGER DEFAULT 0,
			encryption_key_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catches_user ON catches(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_catches_value ON catches(value DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_players_best_value ON players(best_value DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_username_history_open ON username_history(user_id) WHERE last_seen IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_active_effects_user ON active_effects(user_id, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_shop_items_command ON shop_items(command)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

// UpsertOAuthToken stores or updates a token for a provider (e.g. twitch-chat,
// twitch-helix). If ENCRYPTION_KEY is set, tokens are encrypted before storage;
// encryption_version=1 marks encrypted rows, version=0 plaintext.
func UpsertOAuthToken(ctx context.Context, dbx *sql.DB, provider, access, refresh string, expiry time.Time, scope string) error {
	enc, err := getEncryptor()
	if err != nil {
		return fmt.Errorf("get encryptor: %w", err)
	}

	encVersion := 0
	encKeyID := ""
	accessToStore := access
	refreshToStore := refresh

	if enc != nil {
		encVersion = 1
		encKeyID = "default"
		if access != "" {
			accessToStore, err = crypto.EncryptString(enc, access)
			if err != nil {
				return fmt.Errorf("encrypt access token: %w", err)
			}
		}
		if refresh != "" {
			refreshToStore, err = crypto.EncryptString(enc, refresh)
			if err != nil {
				return fmt.Errorf("encrypt refresh token: %w", err)
			}
		}
	}

	q := `INSERT INTO oauth_tokens(provider, access_token, refresh_token, expires_at, scope, encryption_version, encryption_key_id, updated_at)
		  VALUES($1,$2,$3,$4,$5,$6,$7,NOW())
		  ON CONFLICT(provider) DO UPDATE SET
		    access_token=EXCLUDED.access_token,
		    refresh_token=EXCLUDED.refresh_token,
		    expires_at=EXCLUDED.expires_at,
		    scope=EXCLUDED.scope,
		    encryption_version=EXCLUDED.encryption_version,
		    encryption_key_id=EXCLUDED.encryption_key_id,
		    updated_at=NOW()`
	_, err = dbx.ExecContext(ctx, q, provider, accessToStore, refreshToStore, expiry, scope, encVersion, encKeyID)
	return err
}

// GetOAuthToken retrieves a stored token row; returns zero values if not
// found. Rows with encryption_version=1 are decrypted transparently; plaintext
// rows (version=0) are returned as-is.
func GetOAuthToken(ctx context.Context, dbx *sql.DB, provider string) (access, refresh string, expiry time.Time, scope string, err error) {
	var encVersion int
	var encKeyID sql.NullString

	row := dbx.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, scope, COALESCE(encryption_version, 0), encryption_key_id
		 FROM oauth_tokens WHERE provider = $1`, provider)

	err = row.Scan(&access, &refresh, &expiry, &scope, &encVersion, &encKeyID)
	if err == sql.ErrNoRows {
		return "", "", time.Time{}, "", nil
	}
	if err != nil {
		return "", "", time.Time{}, "", err
	}

	if encVersion == 1 {
		enc, encErr := getEncryptor()
		if encErr != nil {
			return "", "", time.Time{}, "", fmt.Errorf("get encryptor for decryption: %w", encErr)
		}
		if enc == nil {
			return "", "", time.Time{}, "", fmt.Errorf("token is encrypted but ENCRYPTION_KEY not configured")
		}
		if access != "" {
			access, err = crypto.DecryptString(enc, access)
			if err != nil {
				return "", "", time.Time{}, "", fmt.Errorf("decrypt access token: %w", err)
			}
		}
		if refresh != "" {
			refresh, err = crypto.DecryptString(enc, refresh)
			if err != nil {
				return "", "", time.Time{}, "", fmt.Errorf("decrypt refresh token: %w", err)
			}
		}
	}

	return access, refresh, expiry, scope, nil
}
