package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/p3seq/internal/collect"
	"github.com/hpungsan/p3seq/internal/config"
	"github.com/hpungsan/p3seq/internal/db"
	"github.com/hpungsan/p3seq/internal/errors"
	"github.com/hpungsan/p3seq/internal/mcp"
	"github.com/hpungsan/p3seq/internal/ops"
	"github.com/hpungsan/p3seq/internal/present"
	"github.com/hpungsan/p3seq/internal/web"
)

// env carries the dependencies shared by all commands.
type env struct {
	db        *sql.DB
	cfg       *config.Config
	log       *zap.Logger
	baseDir   string
	collector ops.Collector
	stdout    io.Writer
}

func (e *env) out() io.Writer {
	if e.stdout != nil {
		return e.stdout
	}
	return os.Stdout
}

func (e *env) logger() *zap.Logger {
	if e.log == nil {
		return zap.NewNop()
	}
	return e.log
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "p3seq",
		Usage:   "Three-digit draw history sequence finder",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Also write log entries to stderr"},
		},
		Commands: []*cli.Command{
			searchCmd(e),
			yearsCmd(e),
			runsCmd(e),
			updateCmd(e),
			updateAllCmd(e),
			syncCmd(e),
			scheduleCmd(e),
			importCmd(e),
			exportCmd(e),
			serveCmd(e),
			mcpCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// searchCmd creates the search command.
func searchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find runs of draws whose indicator digits equal a query",
		ArgsUsage: "<digits>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "indicator", Aliases: []string{"i"}, Value: "all", Usage: "tail|gap|hundred|ten|unit|all"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "forward", Usage: "forward|reverse|both"},
			&cli.IntFlag{Name: "pad", Usage: "Draws shown on each side of a match (default: config window_pad)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "text|markdown|json"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SearchInput{
				Indicator: c.String("indicator"),
				Query:     c.Args().First(),
				Mode:      c.String("mode"),
			}
			if c.IsSet("pad") {
				pad := c.Int("pad")
				input.WindowPad = &pad
			}

			output, err := ops.Search(c.Context, e.db, e.cfg, e.logger(), input)
			if err != nil {
				return outputError(err)
			}

			switch c.String("format") {
			case "json":
				return outputJSON(e.out(), output)
			case "markdown", "md":
				fmt.Fprintf(e.out(), "# %s (%s)\n\n", output.Query, output.Mode)
				return present.FormatMarkdown(e.out(), output.Sections)
			case "text":
				styles := present.PlainStyles()
				if e.stdout == nil && isStdoutTerminal() {
					styles = present.DefaultStyles()
				}
				fmt.Fprintf(e.out(), "query %s, %s, %d years searched, %d matches\n\n",
					output.Query, output.Mode, output.Years, output.TotalHits)
				return present.FormatText(e.out(), output.Sections, styles)
			}
			return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown format %q (want text, markdown or json)", c.String("format"))))
		},
	}
}

// yearsCmd creates the years command.
func yearsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "years",
		Usage: "List stored years with draw counts",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "year", Aliases: []string{"y"}, Usage: "Only this year"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Years(c.Context, e.db, ops.YearsInput{Year: c.Int("year")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.out(), output)
		},
	}
}

// runsCmd creates the runs command.
func runsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List collector and import runs, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Runs(c.Context, e.db, ops.RunsInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.out(), output)
		},
	}
}

// updateCmd creates the update command.
func updateCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Fetch one year (default: the current year) and append unseen draws",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "year", Aliases: []string{"y"}, Usage: "Year to fetch"},
		},
		Action: func(c *cli.Context) error {
			input := ops.UpdateInput{Scope: ops.ScopeCurrent}
			if c.IsSet("year") {
				input = ops.UpdateInput{Scope: ops.ScopeYear, Year: c.Int("year")}
			}
			return runUpdate(c, e, input)
		},
	}
}

// updateAllCmd creates the update-all command.
func updateAllCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "update-all",
		Usage: "Fetch every year from first_year to the current year",
		Action: func(c *cli.Context) error {
			return runUpdate(c, e, ops.UpdateInput{Scope: ops.ScopeAll})
		},
	}
}

// syncCmd creates the sync command.
func syncCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch all years into an empty store, otherwise only the current year",
		Action: func(c *cli.Context) error {
			return runUpdate(c, e, ops.UpdateInput{Scope: ops.ScopeSync})
		},
	}
}

func runUpdate(c *cli.Context, e *env, input ops.UpdateInput) error {
	output, err := ops.Update(c.Context, e.collector, input)
	if output != nil {
		if jerr := outputJSON(e.out(), output); jerr != nil {
			return jerr
		}
	}
	if err != nil {
		return outputError(err)
	}
	if output.Status == db.RunFailed {
		return cli.Exit("[SOURCE_UNAVAILABLE] no year could be fetched", 1)
	}
	return nil
}

// scheduleCmd creates the schedule command.
func scheduleCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Update the current year every day at schedule_time until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "at", Usage: "Local HH:MM (default: config schedule_time)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *e.cfg
			if at := c.String("at"); at != "" {
				cfg.ScheduleTime = at
			}
			hour, minute, err := cfg.ScheduleClock()
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			fmt.Fprintf(os.Stderr, "Updating daily at %02d:%02d. Press Ctrl+C to stop.\n", hour, minute)
			s := collect.NewScheduler(e.collector, hour, minute, e.logger().Named("schedule"))
			if err := s.Run(c.Context); err != nil && c.Context.Err() == nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write stored draws as sort3_<year>.csv files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Target directory (default: <base>/exports)"},
			&cli.IntFlag{Name: "year", Aliases: []string{"y"}, Usage: "Only this year"},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("dir")
			if dir == "" {
				dir = filepath.Join(e.baseDir, "exports")
			}

			output, err := ops.Export(c.Context, e.db, ops.ExportInput{
				Dir:  dir,
				Year: c.Int("year"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.out(), output)
		},
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Append unseen draws from sort3_<year>.csv files",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Directory holding the year files"},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("dir")
			if dir == "" {
				dir = c.Args().First()
			}
			if dir == "" {
				return outputError(errors.NewInvalidRequest("--dir is required"))
			}

			output, err := ops.Import(c.Context, e.db, e.logger().Named("import"), ops.ImportInput{Dir: dir})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.out(), output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the search web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8501, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			log := e.logger().Named("web")
			srv := web.NewServer(e.db, e.cfg, log, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(c.Context, srv, log); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve draw tools over MCP on stdio",
		Action: func(_ *cli.Context) error {
			return mcp.Run(e.db, e.cfg, e.logger().Named("mcp"), e.collector, Version)
		},
	}
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := err.(*errors.Error); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// isStdoutTerminal returns true if stdout is a terminal, so colour is worth emitting.
func isStdoutTerminal() bool {
	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
