package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vanillachan6571/catroam/testutil"
)

func TestStartRefresherOutsideWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// Token still has an hour of life; a 30 minute window must not trigger.
	_, err := db.Exec(`INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, scope, encryption_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW())
		ON CONFLICT (provider) DO UPDATE SET access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token, expires_at=EXCLUDED.expires_at, scope=EXCLUDED.scope`,
		"test-fresh", "access123", "refresh456", time.Now().Add(time.Hour), "chat:read")
	if err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}

	refreshCalled := false
	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		refreshCalled = true
		return "new-access", "new-refresh", time.Now().Add(2 * time.Hour), "chat:read", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	StartRefresher(ctx, db, "test-fresh", 50*time.Millisecond, 30*time.Minute, refreshFunc)
	<-ctx.Done()

	if refreshCalled {
		t.Error("refresh should not run for a token that expires in 1 hour with a 30 min window")
	}
}

func TestStartRefresherWithinWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// Expires in 5 minutes, window is 15 minutes: must refresh.
	_, err := db.Exec(`INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, scope, encryption_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW())
		ON CONFLICT (provider) DO UPDATE SET access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token, expires_at=EXCLUDED.expires_at, scope=EXCLUDED.scope`,
		"test-stale", "old-access", "old-refresh", time.Now().Add(5*time.Minute), "chat:read")
	if err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}

	refreshCalled := false
	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		if refreshToken != "old-refresh" {
			t.Errorf("refresh called with wrong token: got %s, want old-refresh", refreshToken)
		}
		refreshCalled = true
		return "new-access", "new-refresh", time.Now().Add(2 * time.Hour), "chat:read chat:edit", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	StartRefresher(ctx, db, "test-stale", 100*time.Millisecond, 15*time.Minute, refreshFunc)

	// The loop carries up to ~interval/2 of startup jitter plus a pre-refresh
	// pause, so give it a generous beat before asserting.
	time.Sleep(1500 * time.Millisecond)
	cancel()

	if !refreshCalled {
		t.Fatal("refresh should have been called for token expiring within window")
	}

	var access, refresh, scope string
	err = db.QueryRow(`SELECT access_token, refresh_token, scope FROM oauth_tokens WHERE provider='test-stale'`).
		Scan(&access, &refresh, &scope)
	if err != nil {
		t.Fatalf("failed to query updated token: %v", err)
	}
	if access != "new-access" {
		t.Errorf("access token not updated: got %s", access)
	}
	if refresh != "new-refresh" {
		t.Errorf("refresh token not updated: got %s", refresh)
	}
	if scope != "chat:read chat:edit" {
		t.Errorf("scope not updated: got %s", scope)
	}
}

func TestStartRefresherRefreshError(t *testing.T) {
	db := testutil.SetupTestDB(t)

	_, err := db.Exec(`INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, scope, encryption_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW())
		ON CONFLICT (provider) DO UPDATE SET access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token, expires_at=EXCLUDED.expires_at, scope=EXCLUDED.scope`,
		"test-err", "old-access", "old-refresh", time.Now().Add(5*time.Minute), "chat:read")
	if err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}

	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "", "", time.Time{}, "", errors.New("refresh failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	StartRefresher(ctx, db, "test-err", 50*time.Millisecond, 15*time.Minute, refreshFunc)
	<-ctx.Done()

	var access string
	if err := db.QueryRow(`SELECT access_token FROM oauth_tokens WHERE provider='test-err'`).Scan(&access); err != nil {
		t.Fatalf("failed to query token: %v", err)
	}
	if access != "old-access" {
		t.Errorf("token should not have been updated on error, got %s", access)
	}
}

func TestStartRefresherNoRefreshToken(t *testing.T) {
	db := testutil.SetupTestDB(t)

	_, err := db.Exec(`INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, scope, encryption_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW())
		ON CONFLICT (provider) DO UPDATE SET access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token, expires_at=EXCLUDED.expires_at, scope=EXCLUDED.scope`,
		"test-norefresh", "access123", "", time.Now().Add(5*time.Minute), "chat:read")
	if err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}

	refreshCalled := false
	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		refreshCalled = true
		return "new-access", "new-refresh", time.Now().Add(2 * time.Hour), "chat:read", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	StartRefresher(ctx, db, "test-norefresh", 50*time.Millisecond, 15*time.Minute, refreshFunc)
	<-ctx.Done()

	if refreshCalled {
		t.Error("refresh should not be called when refresh_token is empty")
	}
}

func TestStartRefresherCancellation(t *testing.T) {
	db := testutil.SetupTestDB(t)

	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "access", "refresh", time.Now().Add(time.Hour), "chat:read", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	StartRefresher(ctx, db, "test-cancel", time.Second, 15*time.Minute, refreshFunc)
	cancel()

	// If we get here without hanging, cancellation works.
	time.Sleep(50 * time.Millisecond)
}

func TestStartRefresherPreservesRefreshTokenAndScope(t *testing.T) {
	db := testutil.SetupTestDB(t)

	_, err := db.Exec(`INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, scope, encryption_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW())
		ON CONFLICT (provider) DO UPDATE SET access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token, expires_at=EXCLUDED.expires_at, scope=EXCLUDED.scope`,
		"test-preserve", "old-access", "original-refresh", time.Now().Add(5*time.Minute), "chat:read chat:edit")
	if err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}

	// Provider returns no rotated refresh token or scope; the stored ones
	// must survive the refresh.
	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "new-access", "", time.Now().Add(2 * time.Hour), "", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	StartRefresher(ctx, db, "test-preserve", 100*time.Millisecond, 15*time.Minute, refreshFunc)
	time.Sleep(1500 * time.Millisecond)
	cancel()

	var access, refresh, scope string
	err = db.QueryRow(`SELECT access_token, refresh_token, scope FROM oauth_tokens WHERE provider='test-preserve'`).
		Scan(&access, &refresh, &scope)
	if err != nil {
		t.Fatalf("failed to query token: %v", err)
	}
	if access != "new-access" {
		t.Errorf("access token not updated: got %s", access)
	}
	if refresh != "original-refresh" {
		t.Errorf("refresh token should be preserved, got %s", refresh)
	}
	if scope != "chat:read chat:edit" {
		t.Errorf("scope should be preserved, got %s", scope)
	}
}
