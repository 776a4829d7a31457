package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/correspondence-backend/internal/db"
	"github.com/yungbote/correspondence-backend/internal/observability"
	"github.com/yungbote/correspondence-backend/internal/platform/envutil"
	"github.com/yungbote/correspondence-backend/internal/realtime/bus"
)

const (
	LLMModeHTTP = "http"
	LLMModeMock = "mock"
)

// Duration accepts "5s"-style strings or integer seconds in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	s := strings.TrimSpace(node.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if dd, err := time.ParseDuration(s); err == nil {
		d.Duration = dd
		return nil
	}
	var secs int64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or integer seconds: %q", s)
	}
	d.Duration = time.Duration(secs) * time.Second
	return nil
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

type LLMConfig struct {
	// Mode is "http" for an OpenAI-compatible provider or "mock" for offline runs.
	Mode                string   `yaml:"mode"`
	BaseURL             string   `yaml:"base_url"`
	APIKey              string   `yaml:"api_key"`
	ChatCompletionsPath string   `yaml:"chat_completions_path"`
	PrimaryModel        string   `yaml:"primary_model"`
	FallbackModel       string   `yaml:"fallback_model"`
	Temperature         float64  `yaml:"temperature"`
	MaxTokens           int      `yaml:"max_tokens"`
	Timeout             Duration `yaml:"timeout"`
}

type AssistantConfig struct {
	HistoryWindow int      `yaml:"history_window"`
	StaleAfter    Duration `yaml:"stale_after"`
	AlertIDLimit  int      `yaml:"alert_id_limit"`
	AlertTTL      Duration `yaml:"alert_ttl"`
	LinkBase      string   `yaml:"link_base"`
	Timezone      string   `yaml:"timezone"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	Env       string                   `yaml:"env"`
	HTTP      HTTPConfig               `yaml:"http"`
	DB        db.Config                `yaml:"db"`
	LLM       LLMConfig                `yaml:"llm"`
	Assistant AssistantConfig          `yaml:"assistant"`
	Auth      AuthConfig               `yaml:"auth"`
	Redis     bus.RedisConfig          `yaml:"redis"`
	Otel      observability.OtelConfig `yaml:"otel"`
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{5 * time.Second},
			IdleTimeout:       Duration{2 * time.Minute},
			ShutdownTimeout:   Duration{15 * time.Second},
		},
		DB: db.Config{Driver: db.DriverPostgres, Host: "localhost", Port: 5432, SSLMode: "disable"},
		LLM: LLMConfig{
			Mode:          LLMModeHTTP,
			BaseURL:       "https://api.openai.com",
			PrimaryModel:  "gpt-4o",
			FallbackModel: "gpt-4o-mini",
			Temperature:   0.3,
			MaxTokens:     1000,
			Timeout:       Duration{90 * time.Second},
		},
		Assistant: AssistantConfig{
			HistoryWindow: 10,
			StaleAfter:    Duration{72 * time.Hour},
			AlertIDLimit:  5,
			AlertTTL:      Duration{30 * time.Second},
			Timezone:      "UTC",
		},
		Otel: observability.OtelConfig{ServiceName: "correspondence-backend", SampleRatio: 0.1},
	}
}

// LoadConfig reads APP_CONFIG_PATH (or ./config/config.yaml when present) over
// the defaults, then applies environment overrides.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("APP_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Env = envutil.String("LOG_MODE", c.Env)
	c.HTTP.Addr = envutil.String("HTTP_ADDR", c.HTTP.Addr)

	c.DB.Driver = envutil.String("DB_DRIVER", c.DB.Driver)
	c.DB.Host = envutil.String("POSTGRES_HOST", c.DB.Host)
	c.DB.Port = envutil.Int("POSTGRES_PORT", c.DB.Port)
	c.DB.User = envutil.String("POSTGRES_USER", c.DB.User)
	c.DB.Password = envutil.String("POSTGRES_PASSWORD", c.DB.Password)
	c.DB.Name = envutil.String("POSTGRES_NAME", c.DB.Name)
	c.DB.SSLMode = envutil.String("POSTGRES_SSLMODE", c.DB.SSLMode)
	c.DB.Path = envutil.String("SQLITE_PATH", c.DB.Path)

	c.LLM.Mode = envutil.String("LLM_MODE", c.LLM.Mode)
	c.LLM.BaseURL = envutil.String("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = envutil.String("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.PrimaryModel = envutil.String("LLM_PRIMARY_MODEL", c.LLM.PrimaryModel)
	c.LLM.FallbackModel = envutil.String("LLM_FALLBACK_MODEL", c.LLM.FallbackModel)
	c.LLM.Temperature = envutil.Float("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxTokens = envutil.Int("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Timeout.Duration = envutil.Duration("LLM_TIMEOUT", c.LLM.Timeout.Duration)

	c.Assistant.LinkBase = envutil.String("ASSISTANT_LINK_BASE", c.Assistant.LinkBase)
	c.Assistant.Timezone = envutil.String("ASSISTANT_TIMEZONE", c.Assistant.Timezone)
	c.Assistant.StaleAfter.Duration = envutil.Duration("ASSISTANT_STALE_AFTER", c.Assistant.StaleAfter.Duration)

	c.Auth.JWTSecret = envutil.String("JWT_SECRET_KEY", c.Auth.JWTSecret)

	c.Redis.Addr = envutil.String("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envutil.String("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.Channel = envutil.String("REDIS_CHANNEL", c.Redis.Channel)

	c.Otel.Environment = c.Env
	c.Otel.ApplyEnv()
}

func (c *Config) validate() error {
	c.LLM.Mode = strings.ToLower(strings.TrimSpace(c.LLM.Mode))
	switch c.LLM.Mode {
	case LLMModeHTTP:
		if strings.TrimSpace(c.LLM.BaseURL) == "" {
			return errors.New("llm.base_url is required in http mode")
		}
	case LLMModeMock:
	default:
		return fmt.Errorf("unknown llm.mode %q", c.LLM.Mode)
	}
	if strings.TrimSpace(c.LLM.PrimaryModel) == "" {
		return errors.New("llm.primary_model is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		if c.Env == "production" {
			return errors.New("auth.jwt_secret (JWT_SECRET_KEY) is required in production")
		}
		c.Auth.JWTSecret = "development-secret"
	}
	if _, err := time.LoadLocation(c.Assistant.Timezone); err != nil {
		return fmt.Errorf("assistant.timezone: %w", err)
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = ":8080"
	}
	return nil
}
