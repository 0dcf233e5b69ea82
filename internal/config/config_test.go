package config

import (
	"testing"
	"time"
)

func TestLoadRequiresTokenSecret(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("expected error when BLURB_TOKEN_SECRET is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BLURB_TOKEN_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("expected default token TTL 24h, got %v", cfg.TokenTTL)
	}
	if cfg.StoryTTL != 24*time.Hour {
		t.Fatalf("expected default story TTL 24h, got %v", cfg.StoryTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BLURB_TOKEN_SECRET", "test-secret")
	t.Setenv("PORT", "8080")
	t.Setenv("BLURB_STORY_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.StoryTTL != time.Hour {
		t.Fatalf("expected story TTL 1h, got %v", cfg.StoryTTL)
	}
}
