package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "bankbook.yaml"

// Config is the process configuration, constructed once at startup and
// passed into each component's constructor. Non-secret settings live in
// bankbook.yaml; credentials come from the environment (or a .env file).
type Config struct {
	// DefaultPageSize is the page size used when a read does not ask for
	// one.
	DefaultPageSize int `yaml:"default_page_size"`
	// ImportRoot is the directory whose import/ subdirectory is scanned
	// for statement CSVs.
	ImportRoot string `yaml:"import_root"`

	HTTP   HTTPConfig   `yaml:"http"`
	OpenAI OpenAIConfig `yaml:"openai"`

	// DatabaseURL is the PostgreSQL connection string (DATABASE_URL).
	DatabaseURL string `yaml:"-"`
}

// HTTPConfig configures the HTTP front end.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// OpenAIConfig configures the annotation collaborator.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// APIKey comes from OPENAI_API_KEY, never from the YAML file.
	APIKey string `yaml:"-"`
}

// Default returns a Config with the stock settings.
func Default() *Config {
	return &Config{
		DefaultPageSize: 20,
		ImportRoot:      ".",
		HTTP: HTTPConfig{
			Addr: ":8687",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// one exists, then the environment. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Optional file.
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	// .env is optional; real environment variables win either way.
	_ = godotenv.Load()

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.OpenAI.APIKey = getEnv("OPENAI_API_KEY", "")
	cfg.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.Model = getEnv("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.HTTP.Addr = getEnv("BANKBOOK_HTTP_ADDR", cfg.HTTP.Addr)
	if v := os.Getenv("BANKBOOK_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid BANKBOOK_PAGE_SIZE %q", v)
		}
		cfg.DefaultPageSize = n
	}

	if cfg.DefaultPageSize < 1 {
		return nil, fmt.Errorf("default_page_size must be positive, got %d", cfg.DefaultPageSize)
	}
	return cfg, nil
}

// Save writes the non-secret settings to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
