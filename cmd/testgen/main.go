// testgen reads a workbook of software test cases and asks a language model
// to write a new case for every row.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/bububa/wowagent/agents/testcase"
	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components/logger"
	"github.com/bububa/wowagent/config"
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
		input      string
		output     string
		retries    int
		verbose    bool
	)
	flagSet := pflag.NewFlagSet("testgen", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML configuration file (default: embedded)")
	flagSet.StringVar(&envFile, "env", ".env", ".env file to load before reading the environment")
	flagSet.StringVarP(&input, "input", "i", "test_cases.xlsx", "workbook of source test cases")
	flagSet.StringVarP(&output, "output", "o", "", "output workbook (default: generated_test_cases_<time>.xlsx)")
	flagSet.IntVar(&retries, "retries", 2, "attempts per case when the reply is not valid JSON")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	logger.SetVerbose(verbose)
	if output == "" {
		output = fmt.Sprintf("generated_test_cases_%s.xlsx", time.Now().Format("20060102_150405"))
	}
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

	logger.Info("reading test cases", "file", input)
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	cases, err := testcase.ReadXLSX(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}
	logger.Info("test cases loaded", "cases", len(cases))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	gen := testcase.NewGenerator(completer, completion.Options{Model: cfg.LLM.Model}, retries)
	generated, err := gen.Generate(ctx, cases)
	if err != nil {
		return err
	}
	if len(generated) == 0 {
		return errors.New("no test cases were generated")
	}

	out, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := testcase.WriteXLSX(out, generated); err != nil {
		out.Close()
		return err
	}
	logger.Info("generated test cases saved", "file", output, "cases", len(generated))
	return out.Close()
}
