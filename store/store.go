// Package store holds the Postgres data access layer: players, catches,
// username history, the shop catalog, inventory, active effects, cat names,
// and the joined-channel registry.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Catch is one resolved roam reward, append-only.
type Catch struct {
	PlayerID    string
	DisplayName string
	Item        string
	Tier        string
	LuckTag     string // empty when no luck tag was drawn
	Value       int
	CaughtAt    time.Time
}

// PlayerStats is a player's aggregate record.
type PlayerStats struct {
	PlayerID        string
	CurrentUsername string
	BestValue       int64
	TotalCatches    int
}

// LeaderboardEntry is one row of a top-N board.
type LeaderboardEntry struct {
	PlayerID string
	Username string
	Value    int64
}

// NameHistoryEntry is one username span. LastSeen is nil for the current name.
type NameHistoryEntry struct {
	Username  string
	FirstSeen time.Time
	LastSeen  *time.Time
}

// RecordCatch persists one catch atomically: the player row is upserted
// (best value, catch count, current username with history maintenance) and
// the catch row appended, all in one transaction.
func RecordCatch(ctx context.Context, db *sql.DB, c Catch) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertPlayerTx(ctx, tx, c.PlayerID, c.DisplayName, c.CaughtAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE players
		SET best_value = GREATEST(best_value, $1), total_catches = total_catches + 1, last_updated = $2
		WHERE user_id = $3`, c.Value, c.CaughtAt, c.PlayerID); err != nil {
		return fmt.Errorf("update player stats: %w", err)
	}

	var luckTag any
	if c.LuckTag != "" {
		luckTag = c.LuckTag
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO catches (user_id, username, item, tier, luck_tag, value, caught_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.PlayerID, c.DisplayName, c.Item, c.Tier, luckTag, c.Value, c.CaughtAt); err != nil {
		return fmt.Errorf("insert catch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catch tx: %w", err)
	}
	return nil
}

// UpsertPlayer creates or updates a player row, maintaining username history:
// a rename closes the previous open history entry and opens one for the new name.
func UpsertPlayer(ctx context.Context, db *sql.DB, playerID, username string, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin player tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsertPlayerTx(ctx, tx, playerID, username, now); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertPlayerTx(ctx context.Context, tx *sql.Tx, playerID, username string, now time.Time) error {
	var current string
	err := tx.QueryRowContext(ctx, `SELECT current_username FROM players WHERE user_id = $1`, playerID).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO players (user_id, current_username, best_value, total_catches, last_updated)
			VALUES ($1,$2,0,0,$3)`, playerID, username, now); err != nil {
			return fmt.Errorf("insert player: %w", err)
		}
		return openNameEntryTx(ctx, tx, playerID, username, now)
	case err != nil:
		return fmt.Errorf("lookup player: %w", err)
	case current == username:
		return nil
	}

	// Rename: close the open entry for the old name, open one for the new.
	if _, err := tx.ExecContext(ctx, `UPDATE players SET current_username = $1, last_updated = $2 WHERE user_id = $3`,
		username, now, playerID); err != nil {
		return fmt.Errorf("update username: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE username_history SET last_seen = $1
		WHERE user_id = $2 AND username = $3 AND last_seen IS NULL`, now, playerID, current); err != nil {
		return fmt.Errorf("close name entry: %w", err)
	}
	return openNameEntryTx(ctx, tx, playerID, username, now)
}

// openNameEntryTx opens a history entry unless one is already open for this
// name. A player has at most one open entry at a time.
func openNameEntryTx(ctx context.Context, tx *sql.Tx, playerID, username string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO username_history (user_id, username, first_seen, last_seen)
		SELECT $1, $2, $3, NULL
		WHERE NOT EXISTS (
			SELECT 1 FROM username_history WHERE user_id = $1 AND username = $2 AND last_seen IS NULL
		)`, playerID, username, now); err != nil {
		return fmt.Errorf("open name entry: %w", err)
	}
	return nil
}

// UsernameHistory returns a player's name spans, most recent first.
func UsernameHistory(ctx context.Context, db *sql.DB, playerID string) ([]NameHistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT username, first_seen, last_seen FROM username_history
		WHERE user_id = $1 ORDER BY first_seen DESC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query name history: %w", err)
	}
	defer rows.Close()
	var out []NameHistoryEntry
	for rows.Next() {
		var e NameHistoryEntry
		var last sql.NullTime
		if err := rows.Scan(&e.Username, &e.FirstSeen, &last); err != nil {
			return nil, fmt.Errorf("scan name history: %w", err)
		}
		if last.Valid {
			t := last.Time
			e.LastSeen = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Coins returns the derived balance: the sum of all of a player's catch values.
func Coins(ctx context.Context, db *sql.DB, playerID string) (int64, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(value),0) FROM catches WHERE user_id = $1`, playerID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum coins: %w", err)
	}
	return total, nil
}

// TopCoins returns the total-coins leaderboard.
func TopCoins(ctx context.Context, db *sql.DB, limit int) ([]LeaderboardEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT p.user_id, p.current_username, COALESCE(SUM(c.value),0) AS total_coins
		FROM players p JOIN catches c ON p.user_id = c.user_id
		GROUP BY p.user_id, p.current_username
		ORDER BY total_coins DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query coins leaderboard: %w", err)
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

// TopCatches returns the best-single-catch leaderboard.
func TopCatches(ctx context.Context, db *sql.DB, limit int) ([]LeaderboardEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id, current_username, best_value FROM players
		WHERE best_value > 0 ORDER BY best_value DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query catches leaderboard: %w", err)
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

func scanLeaderboard(rows *sql.Rows) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Username, &e.Value); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PlayerByID fetches a player's aggregate record; nil when unknown.
func PlayerByID(ctx context.Context, db *sql.DB, playerID string) (*PlayerStats, error) {
	var p PlayerStats
	err := db.QueryRowContext(ctx, `SELECT user_id, current_username, best_value, total_catches
		FROM players WHERE user_id = $1`, playerID).Scan(&p.PlayerID, &p.CurrentUsername, &p.BestValue, &p.TotalCatches)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup player: %w", err)
	}
	return &p, nil
}
