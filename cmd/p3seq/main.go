package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hpungsan/p3seq/internal/collect"
	"github.com/hpungsan/p3seq/internal/config"
	"github.com/hpungsan/p3seq/internal/db"
	"github.com/hpungsan/p3seq/internal/logging"
	"github.com/hpungsan/p3seq/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"search": true, "years": true, "runs": true,
	"update": true, "update-all": true, "sync": true, "schedule": true,
	"import": true, "export": true, "serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	args := commandArgs()
	if len(args) == 0 {
		return false // No args → MCP server
	}
	arg := args[0]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	args := commandArgs()
	if len(args) == 0 {
		return false
	}
	arg := args[0]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// commandArgs returns the arguments after any leading --verbose flags.
func commandArgs() []string {
	args := os.Args[1:]
	for len(args) > 0 && args[0] == "--verbose" {
		args = args[1:]
	}
	return args
}

// wantsVerbose reports whether --verbose appears before the subcommand.
func wantsVerbose(args []string) bool {
	for _, a := range args {
		if a == "--verbose" {
			return true
		}
		if len(a) == 0 || a[0] != '-' {
			return false
		}
	}
	return false
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ ____
  | _ \__ / ___ ___ __ _
  |  _/|_ \(_-</ -_) _' |
  |_| |___//__/\___\__, |
                      |_|

  Three-digit draw history sequence finder

  Usage: p3seq <command> [options]
         p3seq --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(&env{})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	os.Exit(run())
}

// run wires storage, logging and the collector, then dispatches to the CLI
// or the MCP server. It returns the process exit code.
func run() int {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		return 1
	}

	baseDir := filepath.Join(homeDir, ".p3seq")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	log, closeLog, err := logging.New(logging.Options{
		Dir:       cfg.LogPath(baseDir),
		Level:     cfg.LogLevel,
		Retention: cfg.LogRetention,
		Stderr:    wantsVerbose(os.Args[1:]),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize logging: %v\n", err)
		return 1
	}
	defer func() { _ = closeLog() }()

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		return 1
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	fetcher := collect.NewBrowserFetcher(cfg, log.Named("fetch"))
	defer func() { _ = fetcher.Close() }()
	collector := collect.New(database, fetcher, log.Named("collect"), collect.OptionsFromConfig(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := &env{
		db:        database,
		cfg:       cfg,
		log:       log,
		baseDir:   baseDir,
		collector: collector,
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(e)
		if err := app.RunContext(ctx, os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'p3seq --help' for usage.\n")
		return 1
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, log.Named("mcp"), collector, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
