package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds settings for both the api and worker binaries. Values come
// from defaults, then an optional YAML file (CONFIG_FILE), then env vars.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`

	QueueKey      string `yaml:"queue_key"`
	ProcessingKey string `yaml:"processing_key"`

	Workers            int      `yaml:"workers"`
	MaxBrowserSessions int      `yaml:"max_browser_sessions"`
	StageTimeout       Duration `yaml:"stage_timeout"`

	DeliveryMaxAttempts int      `yaml:"delivery_max_attempts"`
	DeliveryBackoff     Duration `yaml:"delivery_backoff"`

	SearchBaseURL string `yaml:"search_base_url"`

	LLMBaseURL string `yaml:"llm_base_url"`
	LLMAPIKey  string `yaml:"llm_api_key"`
	LLMModel   string `yaml:"llm_model"`
}

// Duration unmarshals from YAML strings like "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func defaults() Config {
	return Config{
		HTTPAddr:            ":8080",
		QueueKey:            "tasks:queue",
		ProcessingKey:       "tasks:processing",
		Workers:             4,
		MaxBrowserSessions:  4,
		StageTimeout:        Duration(45 * time.Second),
		DeliveryMaxAttempts: 3,
		DeliveryBackoff:     Duration(2 * time.Second),
		SearchBaseURL:       "https://html.duckduckgo.com/html/",
		LLMModel:            "llama-3.3-70b-versatile",
	}
}

// Load builds the config: defaults, then the YAML file at path (skipped when
// path is empty or the file does not exist), then env overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.PostgresDSN = getenv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.QueueKey = getenv("REDIS_QUEUE_KEY", cfg.QueueKey)
	cfg.ProcessingKey = getenv("REDIS_PROCESSING_KEY", cfg.ProcessingKey)
	cfg.Workers = getenvInt("WORKERS", cfg.Workers)
	cfg.MaxBrowserSessions = getenvInt("MAX_BROWSER_SESSIONS", cfg.MaxBrowserSessions)
	cfg.StageTimeout = getenvDuration("STAGE_TIMEOUT", cfg.StageTimeout)
	cfg.DeliveryMaxAttempts = getenvInt("DELIVERY_MAX_ATTEMPTS", cfg.DeliveryMaxAttempts)
	cfg.DeliveryBackoff = getenvDuration("DELIVERY_BACKOFF", cfg.DeliveryBackoff)
	cfg.SearchBaseURL = getenv("SEARCH_BASE_URL", cfg.SearchBaseURL)
	cfg.LLMBaseURL = getenv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMAPIKey = getenv("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMModel = getenv("LLM_MODEL", cfg.LLMModel)

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxBrowserSessions < 1 {
		cfg.MaxBrowserSessions = 1
	}
	if cfg.DeliveryMaxAttempts < 1 {
		cfg.DeliveryMaxAttempts = 1
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getenvDuration(key string, fallback Duration) Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return Duration(d)
}
