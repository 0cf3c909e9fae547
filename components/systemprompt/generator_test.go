package systemprompt

import "testing"

func TestGenerate(t *testing.T) {
	g := New(
		WithBackground("You are a customer service agent."),
		WithSteps("Understand the request", "- Pick a department"),
		WithContextProviders(NewStaticProvider("Departments", "register, query, delete")),
	)
	g.AddContextProviders(NewStaticProvider("Departments", "duplicate"))
	want := `# IDENTITY and PURPOSE
- You are a customer service agent.

# INTERNAL ASSISTANT STEPS
- Understand the request
- Pick a department

# EXTRA INFORMATION AND CONTEXT
## Departments
register, query, delete`
	if got := g.Generate(); got != want {
		t.Errorf("Generate() =\n%s\nwant\n%s", got, want)
	}
	g.RemoveContextProviders("Departments")
	if _, err := g.ContextProvider("Departments"); err == nil {
		t.Error("provider not removed")
	}
	if New().Generate() != "" {
		t.Error("empty generator should render nothing")
	}
}
