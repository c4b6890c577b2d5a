package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"TWITCH_CHANNEL", "DB_DSN", "HTTP_ADDR", "ROAM_INTERVAL", "ROAM_COOLDOWN", "ROAM_BATCH_SIZE", "ROAM_RESOLVE_TIMEOUT"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RoamInterval != 120*time.Second {
		t.Errorf("roam interval default = %v", cfg.RoamInterval)
	}
	if cfg.ReplyCooldown != 10*time.Second {
		t.Errorf("reply cooldown default = %v", cfg.ReplyCooldown)
	}
	if cfg.BatchSize != 3 {
		t.Errorf("batch size default = %d", cfg.BatchSize)
	}
	if cfg.ResolveTimeout != 5*time.Second {
		t.Errorf("resolve timeout default = %v", cfg.ResolveTimeout)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("http addr default = %q", cfg.HTTPAddr)
	}
}

func TestLoadOverridesAndNormalization(t *testing.T) {
	t.Setenv("TWITCH_CHANNEL", "#VanillaChanny")
	t.Setenv("ROAM_INTERVAL", "30s")
	t.Setenv("ROAM_BATCH_SIZE", "5")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HomeChannel != "vanillachanny" {
		t.Errorf("home channel = %q, want lowercase without #", cfg.HomeChannel)
	}
	if cfg.RoamInterval != 30*time.Second {
		t.Errorf("roam interval = %v", cfg.RoamInterval)
	}
	if cfg.BatchSize != 5 {
		t.Errorf("batch size = %d", cfg.BatchSize)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ROAM_BATCH_SIZE", "zero")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for bad ROAM_BATCH_SIZE")
	}
	t.Setenv("ROAM_BATCH_SIZE", "")
	t.Setenv("ROAM_INTERVAL", "-5s")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative ROAM_INTERVAL")
	}
}

func TestValidateChatReady(t *testing.T) {
	t.Setenv("TWITCH_CHANNEL", "")
	t.Setenv("TWITCH_BOT_USERNAME", "")
	t.Setenv("TWITCH_OAUTH_TOKEN", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.ValidateChatReady(); err == nil {
		t.Fatal("expected error with missing creds")
	}
	t.Setenv("TWITCH_CHANNEL", "vanillachanny")
	t.Setenv("TWITCH_BOT_USERNAME", "roambot")
	t.Setenv("TWITCH_OAUTH_TOKEN", "oauth:abc")
	cfg, _ = Load()
	if err := cfg.ValidateChatReady(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
