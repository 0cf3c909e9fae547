package calculator

import (
	"context"
	"errors"

	"github.com/Knetic/govaluate"

	"github.com/bububa/wowagent/tools"
)

var (
	errArity    = errors.New("wrong number of arguments")
	errArgument = errors.New("arguments must be numbers")
)

// Input for evaluating a mathematical expression. Supports basic arithmetic
// like addition, subtraction, multiplication and division, exponentiation
// and functions such as sqrt, pow, sin and cos.
type Input struct {
	// Expression Mathematical expression to evaluate. For example, '2 + 2'.
	Expression string `json:"expression" jsonschema:"title=expression,description=Mathematical expression to evaluate. For example, '2 + 2'." validate:"required"`
	// Params represents expressions's parameters
	Params map[string]interface{} `json:"params,omitempty" jsonschema:"title=params,description=Parameters for the expression."`
}

func NewInput(exp string, params map[string]interface{}) *Input {
	return &Input{
		Expression: exp,
		Params:     params,
	}
}

// Operands of a binary operation
type Operands struct {
	A float64 `json:"a" jsonschema:"title=a,description=First number."`
	B float64 `json:"b" jsonschema:"title=b,description=Second number."`
}

// Output result of the calculation
type Output struct {
	// Result Result of the calculation
	Result interface{} `json:"result" jsonschema:"title=result,description=Result of the calculation."`
}

func NewOutput(result interface{}) *Output {
	return &Output{
		Result: result,
	}
}

// Evaluate computes input.Expression with govaluate
func Evaluate(_ context.Context, input *Input) (*Output, error) {
	exp, err := govaluate.NewEvaluableExpressionWithFunctions(input.Expression, functions)
	if err != nil {
		return nil, err
	}
	params := make(map[string]interface{}, len(input.Params)+len(constParams))
	for k, v := range input.Params {
		params[k] = v
	}
	for k, v := range constParams {
		if _, ok := params[k]; ok {
			continue
		}
		params[k] = v
	}
	result, err := exp.Evaluate(params)
	if err != nil {
		return nil, err
	}
	return NewOutput(result), nil
}

func Add(_ context.Context, in *Operands) (*Output, error) {
	return NewOutput(in.A + in.B), nil
}

func Multiply(_ context.Context, in *Operands) (*Output, error) {
	return NewOutput(in.A * in.B), nil
}

// New returns the evaluate tool
func New(opts ...tools.Option) *tools.Func[Input, Output] {
	opts = append([]tools.Option{tools.WithDescription("Evaluates a mathematical expression and returns the result.")}, opts...)
	return tools.NewFunc("evaluate", Evaluate, opts...)
}

// Tools returns add, multiply and evaluate
func Tools(opts ...tools.Option) []tools.Tool {
	return []tools.Tool{
		tools.NewFunc("add", Add, append([]tools.Option{tools.WithDescription("Adds two numbers and returns the sum.")}, opts...)...),
		tools.NewFunc("multiply", Multiply, append([]tools.Option{tools.WithDescription("Multiplies two numbers and returns the product.")}, opts...)...),
		New(opts...),
	}
}
