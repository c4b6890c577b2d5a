package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the Twitch OAuth token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// AppTokenSource fetches and caches a Twitch app access (client credentials)
// token. NOTE: this token CANNOT be used for IRC chat; chat requires a user
// (bot) OAuth token with chat:read/chat:edit scopes.
type AppTokenSource struct {
	mu   sync.Mutex
	conf *clientcredentials.Config
	tok  *oauth2.Token
}

// NewAppTokenSource builds a source against the given token URL (empty for
// the real Twitch endpoint; tests point it at a local server).
func NewAppTokenSource(clientID, clientSecret, tokenURL string) *AppTokenSource {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &AppTokenSource{conf: &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams, // Twitch wants credentials in the form body
	}}
}

// Get returns a valid (fresh or cached) app access token.
func (ts *AppTokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.conf.ClientID == "" || ts.conf.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}
	if ts.tok.Valid() {
		return ts.tok.AccessToken, nil
	}
	tok, err := ts.conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("twitch app token: %w", err)
	}
	ts.tok = tok
	return tok.AccessToken, nil
}
