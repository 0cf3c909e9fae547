package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type greetInput struct {
	Name string `json:"name" jsonschema:"title=name,description=Who to greet" validate:"required"`
}

type greetOutput struct {
	Greeting string `json:"greeting"`
}

func greet(_ context.Context, in *greetInput) (*greetOutput, error) {
	return &greetOutput{Greeting: "hello " + in.Name}, nil
}

func TestFunc(t *testing.T) {
	var started, ended bool
	tool := NewFunc("greet", greet,
		WithDescription("Greets somebody"),
		WithStartHook(func(context.Context, Tool, json.RawMessage) { started = true }),
		WithEndHook(func(context.Context, Tool, json.RawMessage, string) { ended = true }),
	)
	if tool.Name() != "greet" || tool.Description() != "Greets somebody" {
		t.Errorf("name %q description %q", tool.Name(), tool.Description())
	}
	var schema map[string]any
	if err := json.Unmarshal(tool.Parameters(), &schema); err != nil {
		t.Fatalf("parameters are not json: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("schema type = %v", schema["type"])
	}
	props, _ := schema["properties"].(map[string]any)
	if _, found := props["name"]; !found {
		t.Errorf("schema misses the name property: %s", tool.Parameters())
	}
	ret, err := tool.Call(context.Background(), json.RawMessage(`{"name":"Ann"}`))
	if err != nil {
		t.Fatal(err)
	}
	if ret != `{"greeting":"hello Ann"}` {
		t.Errorf("Call() = %s", ret)
	}
	if !started || !ended {
		t.Error("hooks not called")
	}
	if _, err := tool.Call(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("missing required argument should fail validation")
	}
	if _, err := tool.Call(context.Background(), json.RawMessage(`not json`)); err == nil {
		t.Error("invalid arguments should fail")
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(NewFunc("greet", greet))
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(NewFunc("greet", greet)); !errors.Is(err, ErrDuplicateTool) {
		t.Errorf("Register duplicate: %v", err)
	}
	if _, err := reg.Call(context.Background(), "missing", nil); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Call missing: %v", err)
	}
	ret, err := reg.Call(context.Background(), "greet", json.RawMessage(`{"name":"Bo"}`))
	if err != nil || !strings.Contains(ret, "hello Bo") {
		t.Errorf("Call() = %s, %v", ret, err)
	}
	specs := reg.OpenAI()
	if len(specs) != 1 || specs[0].Function.Name != "greet" {
		t.Errorf("OpenAI() = %+v", specs)
	}
}

func TestStringify(t *testing.T) {
	s := "plain"
	if Stringify(&s) != "plain" || Stringify(nil) != "" || Stringify(map[string]int{"a": 1}) != `{"a":1}` {
		t.Error("unexpected rendering")
	}
}
