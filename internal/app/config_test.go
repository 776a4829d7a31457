package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestDurationUnmarshalYAML(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{`d: 5s`, 5 * time.Second},
		{`d: 90`, 90 * time.Second},
		{`d: ""`, 0},
		{`d: 1h30m`, 90 * time.Minute},
	}
	for _, tc := range tests {
		var v struct {
			D Duration `yaml:"d"`
		}
		if err := yaml.Unmarshal([]byte(tc.in), &v); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if v.D.Duration != tc.want {
			t.Fatalf("%s: got %v want %v", tc.in, v.D.Duration, tc.want)
		}
	}
	var bad struct {
		D Duration `yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte(`d: soon`), &bad); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadConfigFileAndEnvOverrides(t *testing.T) {
	p := writeConfig(t, `
http:
  addr: ":9090"
  cors_origins: ["https://desk.example.com"]
db:
  driver: sqlite
  path: /tmp/x.db
llm:
  mode: mock
  primary_model: gpt-4o
  fallback_model: gpt-4o-mini
  timeout: 30s
assistant:
  stale_after: 48h
  link_base: https://desk.example.com
auth:
  jwt_secret: from-file
`)
	t.Setenv("APP_CONFIG_PATH", p)
	t.Setenv("JWT_SECRET_KEY", "from-env")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || len(cfg.HTTP.CORSOrigins) != 1 {
		t.Fatalf("http=%+v", cfg.HTTP)
	}
	if cfg.DB.Driver != "sqlite" || cfg.LLM.Mode != LLMModeMock || cfg.LLM.Timeout.Duration != 30*time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Assistant.StaleAfter.Duration != 48*time.Hour || cfg.Assistant.AlertIDLimit != 5 || cfg.Assistant.HistoryWindow != 10 {
		t.Fatalf("assistant=%+v", cfg.Assistant)
	}
	if cfg.Auth.JWTSecret != "from-env" || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("env overrides not applied: auth=%+v redis=%+v", cfg.Auth, cfg.Redis)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"unknown mode", "llm:\n  mode: telepathy\n", nil},
		{"missing model", "llm:\n  mode: mock\n  primary_model: \"\"\n", nil},
		{"production without secret", "env: production\n", nil},
		{"bad timezone", "assistant:\n  timezone: Mars/Olympus\n", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("APP_CONFIG_PATH", writeConfig(t, tc.body))
			t.Setenv("JWT_SECRET_KEY", "")
			t.Setenv("LOG_MODE", "")
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfigDevelopmentSecretDefault(t *testing.T) {
	t.Setenv("APP_CONFIG_PATH", writeConfig(t, "llm:\n  mode: mock\n"))
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("LOG_MODE", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Fatalf("development secret not defaulted")
	}
}
