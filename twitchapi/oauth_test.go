package twitchapi

import (
	"context"
	"testing"
	"time"

	"github.com/vanillachan6571/catroam/testutil"
)

func TestRefreshUserToken(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockOAuthTokenResponse("fresh-access", 14400)

	access, refresh, expiry, scope, err := RefreshUserToken(
		context.Background(), nil, mock.URL+"/oauth2/token", "cid", "secret", "old-refresh")
	if err != nil {
		t.Fatalf("RefreshUserToken: %v", err)
	}
	if access != "fresh-access" {
		t.Errorf("access = %q", access)
	}
	if refresh != "mock-refresh" {
		t.Errorf("refresh = %q", refresh)
	}
	if scope != "chat:read chat:edit" {
		t.Errorf("scope = %q", scope)
	}
	if remaining := time.Until(expiry); remaining < 3*time.Hour {
		t.Errorf("expiry too soon: %v remaining", remaining)
	}
}

func TestRefreshUserTokenRequiresRefreshToken(t *testing.T) {
	if _, _, _, _, err := RefreshUserToken(context.Background(), nil, "", "cid", "secret", ""); err == nil {
		t.Fatal("expected error for empty refresh token")
	}
}

func TestRefreshUserTokenServerError(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	// No handler registered: the mock replies 404.
	if _, _, _, _, err := RefreshUserToken(
		context.Background(), nil, mock.URL+"/oauth2/token", "cid", "secret", "rt"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
