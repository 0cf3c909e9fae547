package tools

import (
	"context"
	"encoding/json"
)

// Config common settings of a tool
type Config struct {
	// title the name the model calls the tool by
	title string
	// description what the tool does, shown to the model
	description string
	startHook   func(context.Context, Tool, json.RawMessage)
	endHook     func(context.Context, Tool, json.RawMessage, string)
	errorHook   func(context.Context, Tool, json.RawMessage, error)
}

func (c *Config) SetTitle(v string) {
	c.title = v
}

func (c Config) Title() string {
	return c.title
}

func (c *Config) SetDescription(v string) {
	c.description = v
}

func (c Config) Description() string {
	return c.description
}

// SetStartHook fn is called before the tool runs
func (c *Config) SetStartHook(fn func(context.Context, Tool, json.RawMessage)) {
	c.startHook = fn
}

// SetEndHook fn is called with the rendered result
func (c *Config) SetEndHook(fn func(context.Context, Tool, json.RawMessage, string)) {
	c.endHook = fn
}

func (c *Config) SetErrorHook(fn func(context.Context, Tool, json.RawMessage, error)) {
	c.errorHook = fn
}
