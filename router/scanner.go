package router

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/bububa/wowagent/components/extractor"
	"github.com/bububa/wowagent/components/logger"
)

// DecisionKind is the transition chosen for a reply
type DecisionKind int

const (
	// Stay keeps the active context and records the reply
	Stay DecisionKind = iota
	// Switch moves to another context and resends the user input there
	Switch
	// Merge folds the active context into the default one and returns to it
	Merge
)

func (k DecisionKind) String() string {
	switch k {
	case Switch:
		return "switch"
	case Merge:
		return "merge"
	default:
		return "stay"
	}
}

// Decision is the result of scanning one completion reply
type Decision struct {
	Kind DecisionKind
	// Context destination of a Switch
	Context string
	// Token marker that triggered the decision
	Token string
	// Reply text shown to the user
	Reply string
	// Raw reply as returned by the completion service
	Raw string
}

// Scanner inspects a complete reply for a routing decision
type Scanner interface {
	Scan(reply string) Decision
}

// TokenScanner matches marker substrings. Switch tokens are checked in priority order
// before the merge token; the first match wins.
type TokenScanner struct {
	routes     []Route
	mergeToken string
	logger     *slog.Logger
}

var _ Scanner = (*TokenScanner)(nil)

func NewTokenScanner(routes []Route, mergeToken string, l *slog.Logger) *TokenScanner {
	if l == nil {
		l = logger.Default()
	}
	list := make([]Route, len(routes))
	copy(list, routes)
	return &TokenScanner{
		routes:     list,
		mergeToken: mergeToken,
		logger:     l,
	}
}

func (s *TokenScanner) Scan(reply string) Decision {
	ret := Decision{Kind: Stay, Reply: reply, Raw: reply}
	var matched []string
	for _, route := range s.routes {
		if !strings.Contains(reply, route.Token) {
			continue
		}
		if len(matched) == 0 {
			ret.Kind = Switch
			ret.Context = route.Context
			ret.Token = route.Token
		}
		matched = append(matched, route.Token)
	}
	if s.mergeToken != "" && strings.Contains(reply, s.mergeToken) {
		if ret.Kind == Stay {
			ret.Kind = Merge
			ret.Token = s.mergeToken
		}
		matched = append(matched, s.mergeToken)
	}
	if len(matched) > 1 {
		s.logger.Warn("reply contains several routing tokens, first one wins", "tokens", matched, "chosen", ret.Token)
	}
	return ret
}

// Intents reserved by the structured scanner
const (
	IntentStay   = "stay"
	IntentReturn = "return"
)

// StructuredDecision is the object the completion service emits in structured mode
type StructuredDecision struct {
	Intent  string `json:"intent" jsonschema:"title=intent,description=Destination context name or return or stay"`
	Payload string `json:"payload" jsonschema:"title=payload,description=Text shown to the user"`
}

var decisionSchema = sync.OnceValue(func() string {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	bs, err := json.MarshalIndent(r.Reflect(new(StructuredDecision)), "", "  ")
	if err != nil {
		return ""
	}
	return string(bs)
})

// DecisionSchema returns the JSON schema of StructuredDecision
func DecisionSchema() string {
	return decisionSchema()
}

// StructuredScanner switches on the intent field of a JSON decision object.
// Replies that are not a decision object keep the active context.
type StructuredScanner struct {
	contexts    map[string]struct{}
	defaultName string
	logger      *slog.Logger
}

var _ Scanner = (*StructuredScanner)(nil)

func NewStructuredScanner(cfg *Config, l *slog.Logger) *StructuredScanner {
	if l == nil {
		l = logger.Default()
	}
	contexts := make(map[string]struct{}, len(cfg.Contexts))
	for _, v := range cfg.Contexts {
		contexts[v.Name] = struct{}{}
	}
	return &StructuredScanner{
		contexts:    contexts,
		defaultName: cfg.Default,
		logger:      l,
	}
}

func (s *StructuredScanner) Scan(reply string) Decision {
	ret := Decision{Kind: Stay, Reply: reply, Raw: reply}
	var v StructuredDecision
	if err := json.Unmarshal([]byte(extractor.ExtractJSON(reply)), &v); err != nil {
		s.logger.Debug("reply is not a structured decision", "error", err)
		return ret
	}
	if v.Payload != "" {
		ret.Reply = v.Payload
	}
	intent := strings.TrimSpace(v.Intent)
	switch intent {
	case "", IntentStay:
	case IntentReturn, s.defaultName:
		ret.Kind = Merge
		ret.Token = intent
	default:
		if _, found := s.contexts[intent]; !found {
			s.logger.Warn("structured decision names an unknown context", "intent", intent)
			return ret
		}
		ret.Kind = Switch
		ret.Context = intent
		ret.Token = intent
	}
	return ret
}

// NewScanner returns the scanner configured in cfg
func NewScanner(cfg *Config, l *slog.Logger) Scanner {
	if cfg.ScannerType() == StructuredScannerType {
		return NewStructuredScanner(cfg, l)
	}
	return NewTokenScanner(cfg.Routes, cfg.MergeToken, l)
}
