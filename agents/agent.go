// Package agents holds the LLM driven agents built on the completion and tools packages
package agents

import (
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
	"github.com/bububa/wowagent/components/systemprompt"
)

// Config represents general agents configuration
type Config struct {
	// client Client for interacting with the language model
	client *openai.Client
	// memory Memory component for storing chat history
	memory *components.Memory
	// systemPromptGenerator Component for generating system prompts
	systemPromptGenerator *systemprompt.Generator
	options               completion.Options
	// name is Agent name presentation
	name   string
	logger *slog.Logger
}

func (c *Config) SetClient(clt *openai.Client) {
	c.client = clt
}

func (c *Config) SetMemory(m *components.Memory) {
	c.memory = m
}

func (c *Config) SetSystemPromptGenerator(g *systemprompt.Generator) {
	c.systemPromptGenerator = g
}

func (c *Config) SetModel(model string) {
	c.options.Model = model
}

func (c *Config) SetTemperature(temperature float32) {
	c.options.Temperature = temperature
}

func (c *Config) SetMaxTokens(maxTokens int) {
	c.options.MaxTokens = maxTokens
}

func (c Config) Name() string {
	return c.name
}

func (c *Config) SetName(name string) {
	c.name = name
}

func (c *Config) Memory() *components.Memory {
	return c.memory
}

// ResetMemory clears the chat history
func (c *Config) ResetMemory() {
	c.memory.Reset()
}

// SystemPrompt returns the rendered system prompt
func (c *Config) SystemPrompt() string {
	if c.systemPromptGenerator == nil {
		return ""
	}
	return c.systemPromptGenerator.Generate()
}

// RegisterSystemPromptContextProvider registers a new context provider
func (c *Config) RegisterSystemPromptContextProvider(provider systemprompt.ContextProvider) {
	if c.systemPromptGenerator == nil {
		c.systemPromptGenerator = systemprompt.New()
	}
	c.systemPromptGenerator.AddContextProviders(provider)
}

func (c *Config) setDefaults() {
	if c.memory == nil {
		c.memory = components.NewMemory(0)
	}
	if c.logger == nil {
		c.logger = logger.Default()
	}
}
