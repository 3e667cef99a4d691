package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "draftroom.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.StorageCapBytes != 100<<20 {
		t.Errorf("StorageCapBytes = %d", cfg.StorageCapBytes)
	}
	if cfg.AutosaveDelay != 2*time.Second {
		t.Errorf("AutosaveDelay = %v", cfg.AutosaveDelay)
	}
	if !cfg.UseStubRewrite() {
		t.Error("expected stub rewrite without an API key")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("DRAFT_STORAGE_CAP_BYTES", "2048")
	t.Setenv("AUTOSAVE_DELAY", "500ms")
	t.Setenv("REWRITE_API_KEY", "sk-test")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.StorageCapBytes != 2048 {
		t.Errorf("StorageCapBytes = %d", cfg.StorageCapBytes)
	}
	if cfg.AutosaveDelay != 500*time.Millisecond {
		t.Errorf("AutosaveDelay = %v", cfg.AutosaveDelay)
	}
	if cfg.UseStubRewrite() {
		t.Error("expected real rewrite client with an API key")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DRAFT_STORAGE_CAP_BYTES", "lots")
	t.Setenv("AUTOSAVE_DELAY", "soon")

	cfg := Load()

	if cfg.StorageCapBytes != 100<<20 {
		t.Errorf("StorageCapBytes = %d, want default", cfg.StorageCapBytes)
	}
	if cfg.AutosaveDelay != 2*time.Second {
		t.Errorf("AutosaveDelay = %v, want default", cfg.AutosaveDelay)
	}
}
