// agent is a function calling assistant with calculator, SQL, web search,
// web scraping and, given --docs, local knowledge base tools.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/philippgille/chromem-go"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/pflag"

	"github.com/bububa/wowagent/agents"
	oai "github.com/bububa/wowagent/completion/openai"
	"github.com/bububa/wowagent/components/document"
	"github.com/bububa/wowagent/components/knowledge"
	"github.com/bububa/wowagent/components/logger"
	"github.com/bububa/wowagent/components/systemprompt"
	"github.com/bububa/wowagent/config"
	"github.com/bububa/wowagent/tools"
	"github.com/bububa/wowagent/tools/calculator"
	knowledgetool "github.com/bububa/wowagent/tools/knowledge"
	"github.com/bububa/wowagent/tools/sqlquery"
	"github.com/bububa/wowagent/tools/webscraper"
	"github.com/bububa/wowagent/tools/websearch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type params struct {
	configPath     string
	envFile        string
	dbPath         string
	docsDir        string
	embeddingModel string
	searxng        string
	maxSteps       int
	verbose        bool
}

func run() error {
	var p params
	flagSet := pflag.NewFlagSet("agent", pflag.ContinueOnError)
	flagSet.StringVarP(&p.configPath, "config", "c", "", "YAML configuration file (default: embedded)")
	flagSet.StringVar(&p.envFile, "env", ".env", ".env file to load before reading the environment")
	flagSet.StringVar(&p.dbPath, "db", "data/wowagent.db", "sqlite database for the sql_query tool")
	flagSet.StringVar(&p.docsDir, "docs", "", "directory of documents for the knowledge_base tool")
	flagSet.StringVar(&p.embeddingModel, "embedding-model", "", "embedding model for --docs")
	flagSet.StringVar(&p.searxng, "searxng", "", "search through this SearxNG instance instead of DuckDuckGo")
	flagSet.IntVar(&p.maxSteps, "max-steps", agents.DefaultMaxSteps, "maximum model calls per question")
	flagSet.BoolVarP(&p.verbose, "verbose", "v", false, "debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	logger.SetVerbose(p.verbose)
	if err := config.LoadEnv(p.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(p.configPath)
	if err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("%w: set %s", config.ErrMissingAPIKey, cfg.LLM.APIKeyEnv)
	}
	clt := oai.NewWithToken(cfg.LLM.APIKey, cfg.LLM.BaseURL, oai.WithModel(cfg.LLM.Model)).Client()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	registry, cleanup, err := buildTools(ctx, clt, p)
	if err != nil {
		return err
	}
	defer cleanup()

	prompt := systemprompt.New(
		systemprompt.WithBackground("You are a helpful assistant that answers questions with the help of tools."),
		systemprompt.WithSteps(
			"Decide whether a tool can answer the question more reliably than you can.",
			"Call the tools you need, one question at a time.",
			"Answer from the tool results.",
		),
		systemprompt.WithOutputInstructions("Reply in the language of the question."),
	)
	agent := agents.NewToolAgent(registry, p.maxSteps,
		agents.WithClient(clt),
		agents.WithModel(cfg.LLM.Model),
		agents.WithSystemPromptGenerator(prompt),
		agents.WithName("agent"),
	)
	agent.SetToolHook(func(_ context.Context, _ *agents.ToolAgent, call openai.ToolCall, result string, err error) {
		if err != nil {
			fmt.Printf("[%s] %s -> error: %v\n", call.Function.Name, call.Function.Arguments, err)
			return
		}
		fmt.Printf("[%s] %s -> %s\n", call.Function.Name, call.Function.Arguments, truncate(result, 200))
	})
	return chat(ctx, agent, os.Stdin, os.Stdout)
}

func buildTools(ctx context.Context, clt *openai.Client, p params) (*tools.Registry, func(), error) {
	registry, err := tools.NewRegistry(calculator.Tools()...)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlquery.Open(p.dbPath)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { db.Close() }
	if err := sqlquery.Seed(ctx, db, sqlquery.DefaultDepartments); err != nil {
		cleanup()
		return nil, nil, err
	}
	searchOpts := []websearch.Option{websearch.WithMaxResults(5)}
	if p.searxng != "" {
		searchOpts = append(searchOpts, websearch.WithSearxng(p.searxng))
	}
	list := append(sqlquery.New(db, sqlquery.DefaultMaxRows).Tools(),
		websearch.New(searchOpts...).Tool(),
		webscraper.New().Tool(),
	)
	if p.docsDir != "" {
		docs, err := document.LoadDir(ctx, p.docsDir)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		base, err := knowledge.New(chromem.NewDB(), "docs", knowledge.OpenAIEmbedding(clt, p.embeddingModel))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if _, err := base.AddDocuments(ctx, docs...); err != nil {
			cleanup()
			return nil, nil, err
		}
		list = append(list, knowledgetool.New(base))
	}
	if err := registry.Register(list...); err != nil {
		cleanup()
		return nil, nil, err
	}
	return registry, cleanup, nil
}

func chat(ctx context.Context, agent *agents.ToolAgent, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "User: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "/exit", "/quit":
			usage, _ := json.Marshal(agent.Usage())
			fmt.Fprintf(out, "tool calls: %d, usage: %s\n", agent.ToolCalls(), usage)
			return nil
		case "/reset":
			agent.ResetMemory()
			continue
		}
		reply, err := agent.Run(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", reply)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
