package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/chat")
	t.Setenv("ETH_RPC_URL", "https://eth-sepolia.example/v2/key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "5050" {
		t.Errorf("default port = %q, want 5050", cfg.Port)
	}
	if cfg.HistoryBufferSize != 100 {
		t.Errorf("default buffer size = %d, want 100", cfg.HistoryBufferSize)
	}
	if cfg.HistoryFetchLimit != 20 {
		t.Errorf("default fetch limit = %d, want 20", cfg.HistoryFetchLimit)
	}
	if cfg.AuthorizeTimeout != 10*time.Second {
		t.Errorf("default authorize timeout = %v, want 10s", cfg.AuthorizeTimeout)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("default origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ETH_RPC_URL", "https://eth-sepolia.example/v2/key")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadRequiresEthRPCURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/chat")
	t.Setenv("ETH_RPC_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when ETH_RPC_URL is missing")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/chat")
	t.Setenv("ETH_RPC_URL", "https://eth-sepolia.example/v2/key")
	t.Setenv("HISTORY_BUFFER_SIZE", "256")
	t.Setenv("AUTHORIZE_TIMEOUT", "3s")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, http://localhost:3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HistoryBufferSize != 256 {
		t.Errorf("buffer size = %d, want 256", cfg.HistoryBufferSize)
	}
	if cfg.AuthorizeTimeout != 3*time.Second {
		t.Errorf("authorize timeout = %v, want 3s", cfg.AuthorizeTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("origins = %v, want 2 entries", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsGarbageOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/chat")
	t.Setenv("ETH_RPC_URL", "https://eth-sepolia.example/v2/key")
	t.Setenv("HISTORY_BUFFER_SIZE", "-5")
	t.Setenv("STORE_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HistoryBufferSize != 100 {
		t.Errorf("invalid buffer size must fall back to default, got %d", cfg.HistoryBufferSize)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Errorf("invalid duration must fall back to default, got %v", cfg.StoreTimeout)
	}
}
