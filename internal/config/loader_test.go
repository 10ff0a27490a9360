package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFirstNonEmpty(t *testing.T) {
	if v := firstNonEmpty("", "foo", "bar"); v != "foo" {
		t.Fatalf("expected 'foo', got %q", v)
	}
	if v := firstNonEmpty(); v != "" {
		t.Fatalf("expected empty, got %q", v)
	}
}

func TestIntFromEnv(t *testing.T) {
	key := "GATEWAY_TEST_INT_FROM_ENV"
	_ = os.Unsetenv(key)
	defer func() { _ = os.Unsetenv(key) }()

	if got := intFromEnv(key, 7); got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}
	_ = os.Setenv(key, "123")
	if got := intFromEnv(key, 7); got != 123 {
		t.Fatalf("expected 123, got %d", got)
	}
}

func TestBoolFromEnv(t *testing.T) {
	key := "GATEWAY_TEST_BOOL_FROM_ENV"
	_ = os.Unsetenv(key)
	defer func() { _ = os.Unsetenv(key) }()

	if got := boolFromEnv(key, false); got {
		t.Fatalf("expected default false when unset")
	}
	for _, v := range []string{"true", "1", "yes", "TRUE"} {
		_ = os.Setenv(key, v)
		if got := boolFromEnv(key, false); !got {
			t.Fatalf("expected true for %q", v)
		}
	}
}

func TestLoadTenantDefaultsMissingFileIsNotAnError(t *testing.T) {
	defaults, err := loadTenantDefaults(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing defaults file should not error: %v", err)
	}
	if defaults.Model != "" || defaults.MaxTokens != 0 {
		t.Fatalf("expected zero-value defaults, got %#v", defaults)
	}
}

func TestLoadTenantDefaultsParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenant-defaults.yaml")
	doc := `
model: default-model
max_tokens: 2048
tools:
  web_search_enabled: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write defaults file: %v", err)
	}

	defaults, err := loadTenantDefaults(path)
	if err != nil {
		t.Fatalf("loadTenantDefaults: %v", err)
	}
	if defaults.Model != "default-model" {
		t.Fatalf("expected model 'default-model', got %q", defaults.Model)
	}
	if defaults.MaxTokens != 2048 {
		t.Fatalf("expected max_tokens 2048, got %d", defaults.MaxTokens)
	}
	if !defaults.Tools.WebSearchEnabled {
		t.Fatalf("expected tools.web_search_enabled true")
	}
}

func TestLoadPopulatesTenantDefaultsFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenant-defaults.yaml")
	if err := os.WriteFile(path, []byte("model: env-selected-model\n"), 0o644); err != nil {
		t.Fatalf("write defaults file: %v", err)
	}

	oldPath := os.Getenv("TENANT_DEFAULTS_FILE")
	defer func() { _ = os.Setenv("TENANT_DEFAULTS_FILE", oldPath) }()
	_ = os.Setenv("TENANT_DEFAULTS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if cfg.TenantDefaults.Model != "env-selected-model" {
		t.Fatalf("expected tenant default model from file, got %q", cfg.TenantDefaults.Model)
	}
}
