// cmd/mcp-server/main.go: standalone HTTP MCP server for symcanon
//
// Exposes symcanon tools as an HTTP endpoint for AI agent frameworks.
//
// Usage:
//   go run ./cmd/mcp-server -port 8080 [-config symcanon.toml]
//
// Tool call endpoint: POST /tool
// Schema endpoint:    GET  /schema
// Health endpoint:    GET  /health
// Metrics endpoint:   GET  /metrics
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/njchilds90/symcanon"
	"github.com/njchilds90/symcanon/internal/config"
	"github.com/njchilds90/symcanon/internal/logging"
	"github.com/njchilds90/symcanon/internal/server"
)

func main() {
	configPath := flag.String("config", "", "TOML config file; environment variables override it")
	port := flag.String("port", "", "Port to listen on (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, port string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Server.Port = port
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger.Install()

	symcanon.SetDefault(symcanon.NewCanonicalizer(cfg.Canonicalizer.Options()))

	logger.Info("symcanon MCP server configured",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_iterations", cfg.Canonicalizer.MaxIterations),
		zap.Int("cache_size", cfg.Canonicalizer.CacheSize),
		zap.Int("max_unroll", cfg.Canonicalizer.MaxUnroll),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, logger).Run(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
