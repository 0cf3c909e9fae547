// Package config loads the application configuration: the language model provider
// and the routing table, from YAML, .env files and environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/completion/providers"
	"github.com/bububa/wowagent/router"
)

// Environment variables overriding the file
const (
	EnvProvider = "WOW_PROVIDER"
	EnvBaseURL  = "WOW_BASE_URL"
	EnvModel    = "WOW_MODEL"
	EnvAPIKey   = "WOW_API_KEY"
)

// ErrMissingAPIKey no key was found in the environment
var ErrMissingAPIKey = errors.New("missing api key")

//go:embed assistant.yaml
var assistant []byte

// LLM describes the completion provider
type LLM struct {
	Provider  providers.Provider `yaml:"provider,omitempty" validate:"omitempty,oneof=openai anthropic cohere"`
	BaseURL   string             `yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKeyEnv string             `yaml:"api_key_env,omitempty"`
	Model     string             `yaml:"model,omitempty"`
	// APIKey resolved from the environment, never read from the file
	APIKey string `yaml:"-"`
}

// Config is the application configuration
type Config struct {
	LLM    LLM           `yaml:"llm"`
	Router router.Config `yaml:"router"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadEnv loads .env files into the process environment. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Default returns the embedded customer service assistant configuration
func Default() (*Config, error) {
	return Parse(assistant, os.Getenv)
}

// Load reads path, or the embedded default when path is empty, and applies
// environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bs, os.Getenv)
}

// Parse decodes YAML, applies overrides from getenv and validates the result
func Parse(data []byte, getenv func(string) string) (*Config, error) {
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides provider settings. WOW_API_KEY wins over the variable named by api_key_env.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvProvider); v != "" {
		c.LLM.Provider = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if v := getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	} else if c.LLM.APIKeyEnv != "" {
		c.LLM.APIKey = getenv(c.LLM.APIKeyEnv)
	}
}

func (c *Config) Validate() error {
	if err := validate.Struct(c.LLM); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	return c.Router.Validate()
}

// Providers returns the settings for providers.New
func (c *Config) Providers(l *slog.Logger) providers.Config {
	return providers.Config{
		Provider: c.LLM.Provider,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
		Model:    c.LLM.Model,
		Logger:   l,
	}
}

// Completer builds the configured completion provider
func (c *Config) Completer(l *slog.Logger) (completion.Completer, error) {
	if c.LLM.APIKey == "" {
		name := EnvAPIKey
		if c.LLM.APIKeyEnv != "" {
			name = c.LLM.APIKeyEnv
		}
		return nil, fmt.Errorf("%w: set %s", ErrMissingAPIKey, name)
	}
	return providers.New(c.Providers(l))
}
