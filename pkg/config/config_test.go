package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "8087" {
		t.Errorf("Expected Port to be 8087, got %s", cfg.Port)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Notify.EnqueueTimeout != time.Second {
		t.Errorf("Expected EnqueueTimeout to be 1s, got %s", cfg.Notify.EnqueueTimeout)
	}

	if cfg.Notify.KeepaliveEvery != 30*time.Second {
		t.Errorf("Expected KeepaliveEvery to be 30s, got %s", cfg.Notify.KeepaliveEvery)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("ENV", "production")
	os.Setenv("NOTIFY_CHANNEL_BUFFER", "64")
	os.Setenv("LOG_LEVEL", "info")

	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("ENV")
		os.Unsetenv("NOTIFY_CHANNEL_BUFFER")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be 9000, got %s", cfg.Port)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}

	if cfg.Notify.ChannelBuffer != 64 {
		t.Errorf("Expected ChannelBuffer to be 64, got %d", cfg.Notify.ChannelBuffer)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel to be info, got %s", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	os.Setenv("ENV", "nonsense")
	defer os.Unsetenv("ENV")

	if _, err := Load(); err == nil {
		t.Error("Load() should reject unknown ENV values")
	}
}

func TestDatabaseRequiresURL(t *testing.T) {
	os.Setenv("DATABASE_ENABLED", "true")
	defer os.Unsetenv("DATABASE_ENABLED")

	if _, err := Load(); err == nil {
		t.Error("Load() should require DATABASE_URL when the database is enabled")
	}
}
