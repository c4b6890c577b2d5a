package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RefreshUserToken exchanges a refresh token for a new user access token.
// Returns (access, refresh, expiry, scope); the token URL is overridable for
// tests, empty means the real Twitch endpoint.
func RefreshUserToken(ctx context.Context, hc *http.Client, tokenURL, clientID, clientSecret, refreshToken string) (string, string, time.Time, string, error) {
	if refreshToken == "" {
		return "", "", time.Time{}, "", errors.New("refresh token empty")
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", time.Time{}, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := hc.Do(req)
	if err != nil {
		return "", "", time.Time{}, "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", "", time.Time{}, "", fmt.Errorf("twitch token refresh failed: %s: %s", resp.Status, string(b))
	}

	var body struct {
		AccessToken  string   `json:"access_token"`
		RefreshToken string   `json:"refresh_token"`
		ExpiresIn    int      `json:"expires_in"`
		Scope        []string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", time.Time{}, "", err
	}
	if body.AccessToken == "" {
		return "", "", time.Time{}, "", errors.New("empty access_token in twitch response")
	}
	expiry := time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return body.AccessToken, body.RefreshToken, expiry, strings.Join(body.Scope, " "), nil
}
