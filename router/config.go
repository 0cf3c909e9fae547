package router

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components/systemprompt"
)

// ScannerType selects how replies are inspected for routing decisions
type ScannerType = string

const (
	// TokenScannerType looks for marker substrings anywhere in the reply
	TokenScannerType ScannerType = "token"
	// StructuredScannerType expects a {"intent","payload"} JSON object
	StructuredScannerType ScannerType = "structured"
)

// ContextConfig describes one conversational persona
type ContextConfig struct {
	// Name unique context name
	Name string `json:"name" yaml:"name" validate:"required"`
	// Preamble system prompt seeded as the first message of the history
	Preamble string `json:"preamble,omitempty" yaml:"preamble,omitempty"`
	// Prompt sectioned preamble, rendered after Preamble when both are set
	Prompt *systemprompt.Generator `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	// Options completion options used for every call in this context
	Options completion.Options `json:"options,omitempty" yaml:"options,omitempty"`
}

// Route maps a marker found in a reply to the destination context
type Route struct {
	Token   string `json:"token" yaml:"token" validate:"required"`
	Context string `json:"context" yaml:"context" validate:"required"`
}

// Config is the routing table. It is immutable once an engine has been built from it.
type Config struct {
	// Default is the entry and exit context
	Default string `json:"default" yaml:"default" validate:"required"`
	// Contexts fixed set of contexts
	Contexts []ContextConfig `json:"contexts" yaml:"contexts" validate:"required,min=1,dive"`
	// Routes in priority order, the first token found wins
	Routes []Route `json:"routes,omitempty" yaml:"routes,omitempty" validate:"dive"`
	// MergeToken returns to the default context and folds the active history into it
	MergeToken string `json:"merge_token,omitempty" yaml:"merge_token,omitempty"`
	// Scanner token (default) or structured
	Scanner ScannerType `json:"scanner,omitempty" yaml:"scanner,omitempty" validate:"omitempty,oneof=token structured"`
	// Streaming accumulate streamed fragments instead of blocking completions
	Streaming bool `json:"streaming,omitempty" yaml:"streaming,omitempty"`
	// MaxHops maximum context switches inside one turn, zero means the number of contexts
	MaxHops int `json:"max_hops,omitempty" yaml:"max_hops,omitempty" validate:"gte=0"`
	// ResetOnFold clears a sub context after it has been folded into the default context
	ResetOnFold bool `json:"reset_on_fold,omitempty" yaml:"reset_on_fold,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the table against the configured context set
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	names := make(map[string]struct{}, len(c.Contexts))
	for _, ctx := range c.Contexts {
		if _, found := names[ctx.Name]; found {
			return fmt.Errorf("%w: duplicate context %q", ErrInvalidConfig, ctx.Name)
		}
		names[ctx.Name] = struct{}{}
	}
	if _, found := names[c.Default]; !found {
		return fmt.Errorf("%w: default %q", ErrUnknownContext, c.Default)
	}
	tokens := make(map[string]struct{}, len(c.Routes))
	for _, route := range c.Routes {
		if _, found := names[route.Context]; !found {
			return fmt.Errorf("%w: route %q targets %q", ErrUnknownContext, route.Token, route.Context)
		}
		if route.Context == c.Default {
			return fmt.Errorf("%w: route %q targets the default context", ErrInvalidConfig, route.Token)
		}
		if _, found := tokens[route.Token]; found {
			return fmt.Errorf("%w: duplicate token %q", ErrInvalidConfig, route.Token)
		}
		if route.Token == c.MergeToken {
			return fmt.Errorf("%w: token %q is also the merge token", ErrInvalidConfig, route.Token)
		}
		tokens[route.Token] = struct{}{}
	}
	if c.ScannerType() == TokenScannerType && len(c.Routes) > 0 && c.MergeToken == "" {
		return fmt.Errorf("%w: merge_token is required when routes are configured", ErrInvalidConfig)
	}
	return nil
}

// ScannerType returns the configured scanner, defaulting to token
func (c *Config) ScannerType() ScannerType {
	if c.Scanner == "" {
		return TokenScannerType
	}
	return c.Scanner
}

// Hops returns the effective switch limit per turn
func (c *Config) Hops() int {
	if c.MaxHops > 0 {
		return c.MaxHops
	}
	return len(c.Contexts)
}

// Context returns the configuration of name
func (c *Config) Context(name string) (ContextConfig, error) {
	for _, v := range c.Contexts {
		if v.Name == name {
			return v, nil
		}
	}
	return ContextConfig{}, fmt.Errorf("%w: %s", ErrUnknownContext, name)
}

// SystemPrompt renders the preamble of ctx. In structured mode the decision contract is appended.
func (c *Config) SystemPrompt(ctx ContextConfig) string {
	parts := make([]string, 0, 3)
	if v := strings.TrimSpace(ctx.Preamble); v != "" {
		parts = append(parts, v)
	}
	if ctx.Prompt != nil {
		if v := ctx.Prompt.Generate(); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 && c.ScannerType() == StructuredScannerType {
		parts = append(parts, c.structuredInstructions(ctx.Name))
	}
	return strings.Join(parts, "\n\n")
}

func (c *Config) structuredInstructions(current string) string {
	var others []string
	for _, v := range c.Contexts {
		if v.Name != current && v.Name != c.Default {
			others = append(others, v.Name)
		}
	}
	lines := []string{
		"# ROUTING",
		"- Always answer with one JSON object matching this schema:",
		"```json\n" + DecisionSchema() + "\n```",
		`- Use intent "stay" to keep handling the conversation yourself.`,
	}
	if len(others) > 0 {
		lines = append(lines, fmt.Sprintf("- Use one of %s as intent to hand the conversation over.", strings.Join(others, ", ")))
	}
	if current != c.Default {
		lines = append(lines, fmt.Sprintf(`- Use intent "%s" when the request is completed.`, IntentReturn))
	}
	return strings.Join(lines, "\n")
}
