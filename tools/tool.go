package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrToolNotFound no tool registered under the requested name
	ErrToolNotFound = errors.New("tool not found")
	// ErrDuplicateTool a tool with the same name is already registered
	ErrDuplicateTool = errors.New("duplicate tool")
)

// Tool is a function the model may call. Arguments and results travel as JSON text.
type Tool interface {
	Name() string
	Description() string
	// Parameters JSON schema of the arguments
	Parameters() json.RawMessage
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Schema reflects the JSON schema of T with every definition inlined
func Schema[T any]() json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		RequiredFromJSONSchemaTags: false,
	}
	s := r.Reflect(new(T))
	s.Version = ""
	bs, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return bs
}

// Func adapts a typed function to the Tool interface
type Func[I any, O any] struct {
	Config
	fn     func(context.Context, *I) (*O, error)
	params json.RawMessage
}

var _ Tool = (*Func[struct{}, struct{}])(nil)

func NewFunc[I any, O any](name string, fn func(context.Context, *I) (*O, error), opts ...Option) *Func[I, O] {
	ret := &Func[I, O]{
		fn:     fn,
		params: Schema[I](),
	}
	ret.SetTitle(name)
	for _, opt := range opts {
		opt(&ret.Config)
	}
	return ret
}

func (f *Func[I, O]) Name() string {
	return f.Title()
}

func (f *Func[I, O]) Parameters() json.RawMessage {
	return f.params
}

// Run calls the function with typed input
func (f *Func[I, O]) Run(ctx context.Context, input *I) (*O, error) {
	if err := validate.Struct(input); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			return nil, fmt.Errorf("tool %s: %w", f.Name(), err)
		}
	}
	return f.fn(ctx, input)
}

func (f *Func[I, O]) Call(ctx context.Context, args json.RawMessage) (string, error) {
	input := new(I)
	if len(args) > 0 {
		if err := json.Unmarshal(args, input); err != nil {
			return "", fmt.Errorf("tool %s: invalid arguments: %w", f.Name(), err)
		}
	}
	if fn := f.startHook; fn != nil {
		fn(ctx, f, args)
	}
	output, err := f.Run(ctx, input)
	if err != nil {
		if fn := f.errorHook; fn != nil {
			fn(ctx, f, args, err)
		}
		return "", err
	}
	ret := Stringify(output)
	if fn := f.endHook; fn != nil {
		fn(ctx, f, args, ret)
	}
	return ret, nil
}

// Stringify renders a tool result for the model
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		return *t
	case fmt.Stringer:
		return t.String()
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(bs)
}

// Registry indexes tools by name
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

func NewRegistry(list ...Tool) (*Registry, error) {
	ret := &Registry{
		tools: make(map[string]Tool, len(list)),
	}
	if err := ret.Register(list...); err != nil {
		return nil, err
	}
	return ret, nil
}

func (r *Registry) Register(list ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range list {
		if _, found := r.tools[t.Name()]; found {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
		}
		r.tools[t.Name()] = t
	}
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, found := r.tools[name]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Call runs the tool registered as name
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return t.Call(ctx, args)
}

// Names sorted tool names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.tools))
	for name := range r.tools {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// OpenAI returns the function definitions sent with chat completion requests
func (r *Registry) OpenAI() []openai.Tool {
	names := r.Names()
	ret := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		t, _ := r.Get(name)
		ret = append(ret, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return ret
}
