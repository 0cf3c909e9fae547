package router

import (
	"fmt"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
)

type slot struct {
	config   ContextConfig
	preamble string
	memory   *components.Memory
}

// Store holds the history of every configured context.
// It is owned by a single engine and is not shared between sessions.
type Store struct {
	slots       map[string]*slot
	names       []string
	defaultName string
	resetOnFold bool
}

// NewStore creates one history per context and seeds each with its preamble
func NewStore(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ret := &Store{
		slots:       make(map[string]*slot, len(cfg.Contexts)),
		names:       make([]string, 0, len(cfg.Contexts)),
		defaultName: cfg.Default,
		resetOnFold: cfg.ResetOnFold,
	}
	for _, ctx := range cfg.Contexts {
		ret.slots[ctx.Name] = &slot{
			config:   ctx,
			preamble: cfg.SystemPrompt(ctx),
			memory:   components.NewMemory(0),
		}
		ret.names = append(ret.names, ctx.Name)
		if err := ret.Seed(ctx.Name); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (s *Store) slot(name string) (*slot, error) {
	v, found := s.slots[name]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContext, name)
	}
	return v, nil
}

// Names returns context names in configuration order
func (s *Store) Names() []string {
	ret := make([]string, len(s.names))
	copy(ret, s.names)
	return ret
}

// Default returns the default context name
func (s *Store) Default() string {
	return s.defaultName
}

// Has reports whether name is a configured context
func (s *Store) Has(name string) bool {
	_, found := s.slots[name]
	return found
}

// History returns a copy of the ordered history of name
func (s *Store) History(name string) ([]components.Message, error) {
	v, err := s.slot(name)
	if err != nil {
		return nil, err
	}
	return v.memory.History(), nil
}

// Len returns the number of messages in name, zero for unknown contexts
func (s *Store) Len(name string) int {
	v, err := s.slot(name)
	if err != nil {
		return 0
	}
	return v.memory.MessageCount()
}

// Options returns the completion options of name
func (s *Store) Options(name string) (completion.Options, error) {
	v, err := s.slot(name)
	if err != nil {
		return completion.Options{}, err
	}
	return v.config.Options, nil
}

// Preamble returns the system preamble of name
func (s *Store) Preamble(name string) (string, error) {
	v, err := s.slot(name)
	if err != nil {
		return "", err
	}
	return v.preamble, nil
}

// Append adds msgs at the end of the history of name
func (s *Store) Append(name string, msgs ...components.Message) error {
	v, err := s.slot(name)
	if err != nil {
		return err
	}
	v.memory.Append(msgs...)
	return nil
}

// Seed appends the preamble when the history of name is empty
func (s *Store) Seed(name string) error {
	v, err := s.slot(name)
	if err != nil {
		return err
	}
	if v.memory.MessageCount() > 0 || v.preamble == "" {
		return nil
	}
	v.memory.Append(components.SystemMessage(v.preamble))
	return nil
}

// Fold appends every message of src, in order, to dst.
// src keeps its history unless the store resets on fold.
func (s *Store) Fold(src string, dst string) error {
	from, err := s.slot(src)
	if err != nil {
		return err
	}
	to, err := s.slot(dst)
	if err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("cannot fold context %s into itself", src)
	}
	to.memory.Append(from.memory.History()...)
	if s.resetOnFold {
		from.memory.Reset()
	}
	return nil
}

// Reset empties the history of name and seeds it again
func (s *Store) Reset(name string) error {
	v, err := s.slot(name)
	if err != nil {
		return err
	}
	v.memory.Reset()
	return s.Seed(name)
}
