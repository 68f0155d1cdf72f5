// cmd/symcheck runs YAML tool scenarios in-process or against a server.
//
// Usage:
//
//	go run ./cmd/symcheck 'scenarios/**/*.yaml'
//	go run ./cmd/symcheck -remote http://localhost:8080 'scenarios/**/*.yaml'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/njchilds90/symcanon/client"
	"github.com/njchilds90/symcanon/internal/logging"
	"github.com/njchilds90/symcanon/internal/scenario"
)

func main() {
	remote := flag.String("remote", "", "Tool server base URL; empty runs in-process")
	timeout := flag.Duration("timeout", time.Minute, "Overall deadline")
	verbose := flag.Bool("v", false, "Print passing steps and debug logs")
	flag.Parse()

	patterns := flag.Args()
	if len(patterns) == 0 {
		fmt.Fprintln(os.Stderr, "usage: symcheck [-remote URL] [-v] PATTERN...")
		os.Exit(2)
	}

	cfg := logging.DefaultConfig()
	cfg.OutputPaths = []string{"stderr"}
	if *verbose {
		cfg = logging.DevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
	}
	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Install()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var exec scenario.Executor = scenario.Local{}
	if *remote != "" {
		c := client.New(*remote)
		if err := c.Health(ctx); err != nil {
			logger.Error("server unavailable", zap.String("remote", *remote), zap.Error(err))
			os.Exit(1)
		}
		exec = c
	}

	failed, err := run(ctx, exec, patterns, *verbose)
	if err != nil {
		logger.Error("scenario run aborted", zap.Error(err))
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func run(ctx context.Context, exec scenario.Executor, patterns []string, verbose bool) (int, error) {
	files, err := scenario.Discover(patterns...)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no scenario files match %v", patterns)
	}

	failed := 0
	for _, f := range files {
		sc, err := scenario.Load(f)
		if err != nil {
			return failed, err
		}
		rep := scenario.Run(ctx, exec, sc)
		for _, res := range rep.Results {
			switch {
			case !res.Passed:
				fmt.Printf("FAIL %s / %s: %s\n", rep.Scenario, res.Step, res.Message)
			case verbose:
				fmt.Printf("ok   %s / %s (%s)\n", rep.Scenario, res.Step, res.Duration)
			}
		}
		failed += rep.Failed()
		fmt.Printf("%-4s %s: %d/%d steps passed\n", status(rep), f, len(rep.Results)-rep.Failed(), len(rep.Results))
	}
	return failed, nil
}

func status(r scenario.Report) string {
	if r.Passed() {
		return "PASS"
	}
	return "FAIL"
}
