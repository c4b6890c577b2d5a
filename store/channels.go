package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// JoinedChannel is one registry row for a channel the bot participates in.
type JoinedChannel struct {
	Name          string
	BroadcasterID string
	JoinedAt      time.Time
	IsHome        bool
}

func normalizeChannel(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "#"))
}

// AddChannel registers a channel; re-adding updates the broadcaster id.
func AddChannel(ctx context.Context, db *sql.DB, name, broadcasterID string, isHome bool, now time.Time) error {
	_, err := db.ExecContext(ctx, `INSERT INTO joined_channels (channel_name, broadcaster_id, joined_at, is_home)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (channel_name) DO UPDATE SET broadcaster_id = EXCLUDED.broadcaster_id`,
		normalizeChannel(name), broadcasterID, now, isHome)
	if err != nil {
		return fmt.Errorf("add channel: %w", err)
	}
	return nil
}

// RemoveChannel deletes a non-home channel. It reports whether a row was removed.
func RemoveChannel(ctx context.Context, db *sql.DB, name string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM joined_channels WHERE channel_name = $1 AND is_home = FALSE`,
		normalizeChannel(name))
	if err != nil {
		return false, fmt.Errorf("remove channel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove channel: %w", err)
	}
	return n > 0, nil
}

// JoinedChannels lists registered channels, home channel first.
func JoinedChannels(ctx context.Context, db *sql.DB) ([]JoinedChannel, error) {
	rows, err := db.QueryContext(ctx, `SELECT channel_name, COALESCE(broadcaster_id,''), joined_at, is_home
		FROM joined_channels ORDER BY is_home DESC, joined_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()
	var out []JoinedChannel
	for rows.Next() {
		var c JoinedChannel
		if err := rows.Scan(&c.Name, &c.BroadcasterID, &c.JoinedAt, &c.IsHome); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IsChannelJoined reports whether a channel is registered.
func IsChannelJoined(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM joined_channels WHERE channel_name = $1`, normalizeChannel(name)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup channel: %w", err)
	}
	return true, nil
}

// TouchChannelLiveStatus records the outcome of a live-status check.
func TouchChannelLiveStatus(ctx context.Context, db *sql.DB, name string, live bool, now time.Time) error {
	q := `UPDATE joined_channels SET last_checked = $1 WHERE channel_name = $2`
	if live {
		q = `UPDATE joined_channels SET last_checked = $1, last_seen_live = $1 WHERE channel_name = $2`
	}
	if _, err := db.ExecContext(ctx, q, now, normalizeChannel(name)); err != nil {
		return fmt.Errorf("touch channel: %w", err)
	}
	return nil
}
