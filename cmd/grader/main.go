// grader scores exam answers with a language model.
//
// The input workbook holds one question per row: ques_title, answer,
// fullscore and reply. Graded rows are written to --output, or printed as
// JSON when no output file is given.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/bububa/wowagent/agents/grading"
	"github.com/bububa/wowagent/completion"
	oai "github.com/bububa/wowagent/completion/openai"
	"github.com/bububa/wowagent/components/extractor"
	"github.com/bububa/wowagent/components/logger"
	"github.com/bububa/wowagent/config"
)

// sample questions graded when no input file is given
var sample = []grading.Item{
	{
		Question:  "请解释共有技术特征、区别技术特征、附加技术特征、必要技术特征的含义",
		Answer:    "共有技术特征：与最接近的现有技术共有的技术特征（2.5分）； 区别技术特征：区别于最接近的现有技术的技术特征（2.5分）； 附加技术特征：对所引用的技术特征进一步限定的技术特征，增加的技术特征（2.5分）； 必要技术特征：为解决其技术问题所不可缺少的技术特征（2.5分）。",
		FullScore: 10,
		Reply:     "共有技术特征：与所对比的技术方案相同的技术特征\n区别技术特征：与所对比的技术方案相区别的技术特征\n附加技术特征：对引用的技术特征进一步限定的技术特征\n必要技术特征：解决技术问题必须可少的技术特征",
	},
	{
		Question:  "请解释前序部分、特征部分、引用部分、限定部分",
		Answer:    "前序部分：独权中，主题+与最接近的现有技术共有的技术特征，在其特征在于之前（2.5分）； 特征部分：独权中，与区别于最接近的现有技术的技术特征，在其特征在于之后（2.5分）；引用部分：从权中引用的权利要求编号及主题 （2.5分）；限定部分：从权中附加技术特征（2.5分）。",
		FullScore: 10,
		Reply:     "前序部分：独立权利要求中与现有技术相同的技术特征\n特征部分：独立权利要求中区别于现有技术的技术特征\n引用部分：从属权利要求中引用其他权利要求的部分\n限定部分：对所引用的权利要求进一步限定的技术特征",
	},
}

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
		useInstr   bool
	)
	flagSet := pflag.NewFlagSet("grader", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML configuration file (default: embedded)")
	flagSet.StringVar(&envFile, "env", ".env", ".env file to load before reading the environment")
	flagSet.StringVarP(&input, "input", "i", "", "workbook of answers to grade (default: built in sample)")
	flagSet.StringVarP(&output, "output", "o", "", "write graded rows to this workbook instead of stdout")
	flagSet.IntVar(&retries, "retries", 3, "attempts per answer when the reply is not valid JSON")
	flagSet.BoolVar(&useInstr, "instructor", false, "extract grades through instructor-go JSON mode (openai compatible providers only)")
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

	items := sample
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		items, err = grading.LoadXLSX(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", input, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	grader, err := newGrader(completer, cfg.LLM.Model, retries, useInstr)
	if err != nil {
		return err
	}
	graded, err := grader.Run(ctx, items)
	if err != nil {
		return err
	}
	if output == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(graded)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := grading.SaveXLSX(f, graded); err != nil {
		f.Close()
		return err
	}
	logger.Info("graded answers saved", "file", output, "items", len(graded))
	return f.Close()
}

// ErrInstructorProvider the instructor extractor needs an OpenAI compatible client
var ErrInstructorProvider = errors.New("--instructor needs an openai compatible provider")

func newGrader(completer completion.Completer, model string, retries int, useInstr bool) (*grading.Grader, error) {
	opts := completion.Options{Model: model}
	if !useInstr {
		return grading.New(completer, opts, retries), nil
	}
	clt, ok := completer.(*oai.Completer)
	if !ok {
		return nil, ErrInstructorProvider
	}
	if opts.Model == "" {
		opts.Model = clt.Model()
	}
	opts.Temperature = grading.DefaultTemperature
	ex := extractor.NewInstructor[grading.Grade](clt.Client(), opts, retries)
	return grading.New(completer, opts, retries, grading.WithExtractor(ex)), nil
}
