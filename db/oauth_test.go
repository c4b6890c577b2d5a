package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/vanillachan6571/catroam/db"
	"github.com/vanillachan6571/catroam/testutil"
)

// Round trip works with or without ENCRYPTION_KEY set; the helpers handle
// encryption transparently either way.
func TestOAuthTokenRoundTrip(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	expiry := time.Now().Add(4 * time.Hour).UTC().Truncate(time.Second)
	if err := db.UpsertOAuthToken(ctx, database, "test-roundtrip", "access-abc", "refresh-xyz", expiry, "chat:read chat:edit"); err != nil {
		t.Fatalf("UpsertOAuthToken: %v", err)
	}

	access, refresh, gotExpiry, scope, err := db.GetOAuthToken(ctx, database, "test-roundtrip")
	if err != nil {
		t.Fatalf("GetOAuthToken: %v", err)
	}
	if access != "access-abc" {
		t.Errorf("access = %q, want access-abc", access)
	}
	if refresh != "refresh-xyz" {
		t.Errorf("refresh = %q, want refresh-xyz", refresh)
	}
	if !gotExpiry.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", gotExpiry, expiry)
	}
	if scope != "chat:read chat:edit" {
		t.Errorf("scope = %q", scope)
	}

	// Upsert replaces the existing row.
	if err := db.UpsertOAuthToken(ctx, database, "test-roundtrip", "access-2", "refresh-2", expiry.Add(time.Hour), "chat:read"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	access, refresh, _, scope, err = db.GetOAuthToken(ctx, database, "test-roundtrip")
	if err != nil {
		t.Fatalf("GetOAuthToken after replace: %v", err)
	}
	if access != "access-2" || refresh != "refresh-2" || scope != "chat:read" {
		t.Errorf("replaced token = %q %q %q", access, refresh, scope)
	}
}

func TestGetOAuthTokenMissingProvider(t *testing.T) {
	database := testutil.SetupTestDB(t)

	access, refresh, expiry, scope, err := db.GetOAuthToken(context.Background(), database, "no-such-provider")
	if err != nil {
		t.Fatalf("GetOAuthToken: %v", err)
	}
	if access != "" || refresh != "" || scope != "" || !expiry.IsZero() {
		t.Errorf("missing provider should return zero values, got %q %q %v %q", access, refresh, expiry, scope)
	}
}
