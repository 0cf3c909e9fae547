package tools

import (
	"context"
	"encoding/json"
)

type Option func(c *Config)

func WithTitle(title string) Option {
	return func(c *Config) {
		c.SetTitle(title)
	}
}

func WithDescription(desc string) Option {
	return func(c *Config) {
		c.SetDescription(desc)
	}
}

func WithStartHook(fn func(context.Context, Tool, json.RawMessage)) Option {
	return func(c *Config) {
		c.SetStartHook(fn)
	}
}

func WithEndHook(fn func(context.Context, Tool, json.RawMessage, string)) Option {
	return func(c *Config) {
		c.SetEndHook(fn)
	}
}

func WithErrorHook(fn func(context.Context, Tool, json.RawMessage, error)) Option {
	return func(c *Config) {
		c.SetErrorHook(fn)
	}
}
