// Package providers builds a completion.Completer for a configured vendor.
package providers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/completion/anthropic"
	"github.com/bububa/wowagent/completion/cohere"
	"github.com/bububa/wowagent/completion/openai"
)

type Provider = string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderCohere    Provider = "cohere"
)

// Config describes how to reach a provider
type Config struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Model    string
	Logger   *slog.Logger
}

// New returns the Completer for cfg.Provider. An empty provider means openai,
// which covers every OpenAI compatible endpoint.
func New(cfg Config) (completion.Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return openai.NewWithToken(cfg.APIKey, cfg.BaseURL, openai.WithModel(cfg.Model), openai.WithLogger(cfg.Logger)), nil
	case ProviderAnthropic:
		return anthropic.NewWithToken(cfg.APIKey, cfg.BaseURL, anthropic.WithModel(cfg.Model), anthropic.WithLogger(cfg.Logger)), nil
	case ProviderCohere:
		return cohere.NewWithToken(cfg.APIKey, cfg.BaseURL, cohere.WithModel(cfg.Model), cohere.WithLogger(cfg.Logger)), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
