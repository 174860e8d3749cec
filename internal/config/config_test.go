package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, envs := range apiKeyEnv {
		for _, e := range envs {
			t.Setenv(e, "")
		}
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DefaultProvider != "openai" || c.DefaultModel != "gpt-4o-mini" {
		t.Fatalf("unexpected defaults: %s/%s", c.DefaultProvider, c.DefaultModel)
	}
	if c.MaxTokens != 12000 || c.Temperature != 0.7 || !c.AutoBudget {
		t.Fatalf("unexpected generation defaults: %+v", c)
	}
	if want := filepath.Join(home, DirName, "history.db"); c.HistoryDB != want {
		t.Fatalf("history_db = %q, want %q", c.HistoryDB, want)
	}
	if got := c.Windows().Lookup("anthropic"); got != 200000 {
		t.Fatalf("anthropic window = %d", got)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	body := "default_provider: claude\n" +
		"default_model: claude-3-haiku-20240307\n" +
		"max_tokens: 8000\n" +
		"context_windows:\n  ollama: 32768\n"
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-123456789")
	t.Setenv("SHIFTLOG_TEMPERATURE", "0.2")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DefaultProvider != "anthropic" {
		t.Fatalf("provider alias not normalized: %q", c.DefaultProvider)
	}
	if c.MaxTokens != 8000 || c.Temperature != 0.2 {
		t.Fatalf("file/env values not applied: %+v", c)
	}
	if c.APIKey("anthropic") != "sk-ant-123456789" {
		t.Fatalf("standard env var not bound")
	}
	if got := c.Windows().Lookup("ollama"); got != 32768 {
		t.Fatalf("ollama window override = %d", got)
	}
	rc := c.Runtime("anthropic")
	if rc.HTTPTimeout != 60*time.Second || rc.APIKey == "" {
		t.Fatalf("runtime config: %+v", rc)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(p, []byte("max_tokens: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestSaveRoundTripAndRedacted(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetAPIKey("grok", "xai-abcdefghijkl"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetAPIKey("ollama", "x"); err == nil {
		t.Fatal("ollama should not take a key")
	}
	if err := Save(c, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("config written with %v", info.Mode().Perm())
	}
	back, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if back.XAIAPIKey != "xai-abcdefghijkl" {
		t.Fatalf("key lost on round trip")
	}
	if r := back.Redacted(); r.XAIAPIKey != "xai-****ijkl" || back.XAIAPIKey == r.XAIAPIKey {
		t.Fatalf("redaction: %q", r.XAIAPIKey)
	}
}
