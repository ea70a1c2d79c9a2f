package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Absent file is not an error; defaults apply.
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 5000 {
		t.Fatalf("port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Admin.User != "admin" || cfg.Admin.Pass != "evclaude2024" {
		t.Fatalf("admin = %s/%s", cfg.Admin.User, cfg.Admin.Pass)
	}
	if cfg.Upstream.BaseURL != "https://open.bigmodel.cn/api/anthropic" {
		t.Fatalf("upstream = %s", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.TimeoutSeconds != 300 {
		t.Fatalf("timeout = %d", cfg.Upstream.TimeoutSeconds)
	}
	if cfg.Upstream.AnthropicVersion != "2023-06-01" {
		t.Fatalf("anthropic-version = %s", cfg.Upstream.AnthropicVersion)
	}
	if cfg.Data.SaveDebounceSeconds != 5 || cfg.Data.RetentionDays != 30 {
		t.Fatalf("data = %+v", cfg.Data)
	}
	if cfg.Preset.Seed == nil || len(cfg.Preset.Seed.Keywords) == 0 {
		t.Fatal("default seed preset missing")
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("level = %s", cfg.Logging.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 8080
admin:
  user: ops
  pass: secret
upstream:
  base_url: https://example.com/api
  api_key: sk-up
auth:
  seed_keys:
    - name: default
      key: sk-evc-aaaaaaaa-bbbbbbbbbbbbbbbb
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Admin.User != "ops" || cfg.Admin.Pass != "secret" {
		t.Fatalf("admin = %s/%s", cfg.Admin.User, cfg.Admin.Pass)
	}
	if cfg.Upstream.BaseURL != "https://example.com/api" || cfg.Upstream.APIKey != "sk-up" {
		t.Fatalf("upstream = %+v", cfg.Upstream)
	}
	if len(cfg.Auth.SeedKeys) != 1 || cfg.Auth.SeedKeys[0].Name != "default" {
		t.Fatalf("seed keys = %+v", cfg.Auth.SeedKeys)
	}
	// Unset fields still get defaults.
	if cfg.Upstream.TimeoutSeconds != 300 {
		t.Fatalf("timeout = %d", cfg.Upstream.TimeoutSeconds)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ADMIN_USER", "envuser")
	t.Setenv("ADMIN_PASS", "envpass")
	t.Setenv("UPSTREAM_URL", "https://env.example.com")
	t.Setenv("UPSTREAM_API_KEY", "sk-env")
	t.Setenv("EVCLAUDE_PORT", "9090")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Admin.User != "envuser" || cfg.Admin.Pass != "envpass" {
		t.Fatalf("admin = %s/%s", cfg.Admin.User, cfg.Admin.Pass)
	}
	if cfg.Upstream.BaseURL != "https://env.example.com" || cfg.Upstream.APIKey != "sk-env" {
		t.Fatalf("upstream = %+v", cfg.Upstream)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}

	// Malformed port is ignored.
	t.Setenv("EVCLAUDE_PORT", "not-a-port")
	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 5000 {
		t.Fatalf("port = %d, want default 5000", cfg.Server.Port)
	}
}
