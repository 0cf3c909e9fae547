// assistant is the multi context customer service assistant.
//
// By default it runs an interactive conversation on the terminal and prints
// "switch to <context>" whenever the routing engine changes context. With
// --serve it exposes one conversation per session over HTTP instead.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
	"github.com/bububa/wowagent/config"
	"github.com/bububa/wowagent/router"
	"github.com/bububa/wowagent/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		envFile    string
		serveAddr  string
		sessionTTL time.Duration
		streaming  bool
		verbose    bool
	)
	flagSet := pflag.NewFlagSet("assistant", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML configuration file (default: embedded customer service assistant)")
	flagSet.StringVar(&envFile, "env", ".env", ".env file to load before reading the environment")
	flagSet.StringVar(&serveAddr, "serve", "", "serve sessions over HTTP on this address, e.g. :8080")
	flagSet.DurationVar(&sessionTTL, "session-ttl", time.Hour, "evict HTTP sessions idle for this long, 0 keeps them until deleted")
	flagSet.BoolVar(&streaming, "stream", false, "use streaming completions")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	logger.SetVerbose(verbose)

	if err := config.LoadEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	completer, err := cfg.Completer(logger.Default())
	if err != nil {
		return err
	}
	if streaming {
		cfg.Router.Streaming = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		sessions, err := router.NewSessions(completer, &cfg.Router)
		if err != nil {
			return err
		}
		return serve(ctx, server.New(sessions, server.WithSessionTTL(sessionTTL)), serveAddr)
	}

	engine, err := router.NewEngine(completer, &cfg.Router,
		router.WithTransitionHook(func(_ context.Context, t router.Transition) {
			fmt.Printf("switch to <%s>\n", t.To)
		}),
	)
	if err != nil {
		return err
	}
	return converse(ctx, engine, os.Stdin, os.Stdout)
}

func serve(ctx context.Context, srv *server.Server, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}

// converse reads user lines until EOF or an exit keyword
func converse(ctx context.Context, engine *router.Engine, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	var counter components.TokenCounter
	for {
		fmt.Fprint(out, "User: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		var (
			reply string
			err   error
		)
		switch {
		case line == "":
			continue
		case isExit(line):
			fmt.Fprintln(out, "Exiting conversation.")
			return nil
		case line == "/retry":
			reply, err = engine.Retry(ctx)
		case line == "/reset":
			if err := engine.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(out, "conversation reset")
			continue
		case line == "/stats":
			if counter == nil {
				counter = tokenCounter()
			}
			for name, st := range engine.Stats(counter) {
				fmt.Fprintf(out, "%s: %d messages, %d tokens\n", name, st.Messages, st.Tokens)
			}
			continue
		default:
			reply, err = engine.Submit(ctx, line)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v (type /retry to resend)\n", err)
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", reply)
	}
}

// tokenCounter prefers the cl100k_base encoding and falls back to counting words
// when the encoding cannot be loaded.
func tokenCounter() components.TokenCounter {
	c, err := components.NewTikTokenCounter("cl100k_base")
	if err != nil {
		logger.Warn("tiktoken unavailable, counting words", "error", err)
		return components.WordsTokenCounter{}
	}
	return c
}
