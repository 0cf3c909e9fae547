package agents

import (
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/systemprompt"
)

type Option func(a *Config)

func WithClient(clt *openai.Client) Option {
	return func(c *Config) {
		c.client = clt
	}
}

func WithMemory(m *components.Memory) Option {
	return func(c *Config) {
		c.memory = m
	}
}

func WithSystemPromptGenerator(g *systemprompt.Generator) Option {
	return func(c *Config) {
		c.systemPromptGenerator = g
	}
}

func WithOptions(opts completion.Options) Option {
	return func(c *Config) {
		c.options = opts
	}
}

func WithModel(model string) Option {
	return func(c *Config) {
		c.options.Model = model
	}
}

func WithTemperature(temperature float32) Option {
	return func(c *Config) {
		c.options.Temperature = temperature
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(c *Config) {
		c.options.MaxTokens = maxTokens
	}
}

func WithName(name string) Option {
	return func(c *Config) {
		c.name = name
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.logger = l
	}
}
