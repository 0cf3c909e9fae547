// Package systemprompt renders sectioned system prompts
package systemprompt

import (
	"fmt"
	"strings"
)

// ContextProvider contributes an extra titled section to a system prompt
type ContextProvider interface {
	Title() string
	Info() string
}

// StaticProvider a ContextProvider with fixed content
type StaticProvider struct {
	title string
	info  string
}

var _ ContextProvider = (*StaticProvider)(nil)

func NewStaticProvider(title string, info string) *StaticProvider {
	return &StaticProvider{title: title, info: info}
}

func (p *StaticProvider) Title() string { return p.title }

func (p *StaticProvider) Info() string { return p.info }

// Generator is a chain-of-thought style system prompt: identity, steps and output instructions
type Generator struct {
	Background         []string `json:"background,omitempty" yaml:"background,omitempty"`
	Steps              []string `json:"steps,omitempty" yaml:"steps,omitempty"`
	OutputInstructions []string `json:"output_instructions,omitempty" yaml:"output_instructions,omitempty"`
	contextProviders   []ContextProvider
}

type Option = func(g *Generator)

// WithBackground set Generator background
func WithBackground(background ...string) Option {
	return func(g *Generator) {
		g.Background = background
	}
}

// WithSteps set Generator steps
func WithSteps(steps ...string) Option {
	return func(g *Generator) {
		g.Steps = steps
	}
}

// WithOutputInstructions set Generator output instructions
func WithOutputInstructions(instructions ...string) Option {
	return func(g *Generator) {
		g.OutputInstructions = instructions
	}
}

func WithContextProviders(providers ...ContextProvider) Option {
	return func(g *Generator) {
		g.AddContextProviders(providers...)
	}
}

func New(options ...Option) *Generator {
	ret := new(Generator)
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// ContextProvider retrieves a context provider by title
func (g *Generator) ContextProvider(title string) (ContextProvider, error) {
	for _, p := range g.contextProviders {
		if p.Title() == title {
			return p, nil
		}
	}
	return nil, fmt.Errorf("context provider '%s' not found", title)
}

// AddContextProviders registers providers, ignoring titles already present
func (g *Generator) AddContextProviders(providers ...ContextProvider) {
	for _, provider := range providers {
		if _, err := g.ContextProvider(provider.Title()); err != nil {
			g.contextProviders = append(g.contextProviders, provider)
		}
	}
}

func (g *Generator) RemoveContextProviders(titles ...string) {
	mp := make(map[string]struct{}, len(titles))
	for _, v := range titles {
		mp[v] = struct{}{}
	}
	providers := g.contextProviders[:0]
	for _, p := range g.contextProviders {
		if _, found := mp[p.Title()]; found {
			continue
		}
		providers = append(providers, p)
	}
	g.contextProviders = providers
}

func bullets(lines []string) []string {
	ret := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "- ") {
			line = "- " + line
		}
		ret = append(ret, line)
	}
	return ret
}

func (g *Generator) Generate() string {
	var (
		sections = []struct {
			title string
			lines []string
		}{
			{"IDENTITY and PURPOSE", g.Background},
			{"INTERNAL ASSISTANT STEPS", g.Steps},
			{"OUTPUT INSTRUCTIONS", g.OutputInstructions},
		}
		promptParts []string
	)
	for _, section := range sections {
		if content := bullets(section.lines); len(content) > 0 {
			promptParts = append(promptParts, fmt.Sprintf("# %s", section.title))
			promptParts = append(promptParts, content...)
			promptParts = append(promptParts, "")
		}
	}
	if len(g.contextProviders) > 0 {
		promptParts = append(promptParts, "# EXTRA INFORMATION AND CONTEXT")
		for _, provider := range g.contextProviders {
			if info := provider.Info(); info != "" {
				promptParts = append(promptParts, fmt.Sprintf("## %s", provider.Title()))
				promptParts = append(promptParts, info)
				promptParts = append(promptParts, "")
			}
		}
	}
	return strings.TrimSpace(strings.Join(promptParts, "\n"))
}
