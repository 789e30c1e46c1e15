// ticketsearch indexes support tickets and answers similarity queries over
// HTTP, MCP stdio or the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dshills/ticketsearch/internal/app"
	"github.com/dshills/ticketsearch/internal/config"
	"github.com/dshills/ticketsearch/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// command is one subcommand; args exclude the subcommand name
type command struct {
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

func commands() map[string]command {
	return map[string]command{
		"serve":    {summary: "run the HTTP API", run: runServe},
		"mcp":      {summary: "run the MCP server on stdio", run: runMCP},
		"ingest":   {summary: "ingest a JSON file of tickets", run: runIngest},
		"search":   {summary: "search indexed tickets", run: runSearch},
		"generate": {summary: "write a synthetic ticket data set", run: runGenerate},
		"version":  {summary: "print build information", run: runVersion},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return nil
	}
	if args[0] == "--version" {
		return runVersion(ctx, nil, stdout, stderr)
	}

	cmd, ok := commands()[args[0]]
	if !ok {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(ctx, args[1:], stdout, stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: ticketsearch <command> [flags]\n\nCommands:\n")
	for _, name := range []string{"serve", "mcp", "ingest", "search", "generate", "version"} {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands()[name].summary)
	}
	fmt.Fprintf(w, "\nRun 'ticketsearch <command> --help' for command flags.\n")
}

// commonFlags are accepted by every command that builds the engine
type commonFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	envFile    string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "config.yaml", "path to YAML config (defaults are used when missing)")
	fs.StringVar(&c.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	fs.StringVar(&c.logFormat, "log-format", "", "override log format (text, json)")
	fs.StringVar(&c.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
}

// load reads configuration and builds the logger it describes.
// Logs always go to stderr so stdout stays usable for output and MCP frames.
func (c *commonFlags) load(stderr io.Writer) (*config.AppConfig, *slog.Logger, io.Closer, error) {
	if err := config.LoadEnv(c.envFile); err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}

	logger, closer, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Writer: stderr,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closer, nil
}

// build loads configuration and wires the application
func (c *commonFlags) build(ctx context.Context, stderr io.Writer) (*app.App, func(), error) {
	cfg, logger, closer, err := c.load(stderr)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
		_ = closer.Close()
	}
	return a, cleanup, nil
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("ticketsearch "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}
