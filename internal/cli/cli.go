package cli

import (
	"fmt"
	"io"
	"os"

	goflags "github.com/jessevdk/go-flags"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Source  string `long:"source" short:"s" description:"Sales table to read (.xlsx, .xls or .csv); defaults to the configured source"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" short:"v" description:"Log dataset loading to stderr"`
}

// env is shared by every command. loader and out are swapped in tests.
type env struct {
	globals *GlobalFlags
	loader  services.Loader
	out     io.Writer
}

type commands struct {
	Years   *YearsCommand
	Summary *SummaryCommand
	Changes *ChangesCommand
}

func buildParser(e *env) (*goflags.Parser, *commands) {
	parser := goflags.NewParser(e.globals, goflags.Default)
	parser.Name = "salesctl"
	parser.LongDescription = "Query the sales table the dashboard serves, without starting the server."

	cmds := &commands{
		Years:   &YearsCommand{env: e},
		Summary: &SummaryCommand{env: e},
		Changes: &ChangesCommand{env: e},
	}

	parser.AddCommand("years", "List order years", "List the order years present in the sales table.", cmds.Years)
	parser.AddCommand("summary", "Show the dashboard for a selection", "Show KPIs, top products and shipping time for one year or All.", cmds.Summary)
	parser.AddCommand("changes", "Show year-over-year change series", "Show the year-over-year percent change of every KPI.", cmds.Changes)

	return parser, cmds
}

// Run parses os.Args and executes the matched subcommand.
func Run() error {
	return RunWithArgs(os.Args[1:])
}

func RunWithArgs(args []string) error {
	return runWith(&env{globals: &GlobalFlags{}, out: os.Stdout}, args)
}

func runWith(e *env, args []string) error {
	parser, _ := buildParser(e)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}

// analytics builds the same service the server uses, reading the source
// named on the command line or in the configuration.
func (e *env) analytics() (*services.Analytics, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := "error"
	if e.globals.Verbose {
		level = "debug"
	}
	logger := observability.NewLoggerTo(os.Stderr, config.LoggerConfig{Level: level, Format: "text"})

	loader := e.loader
	if loader == nil {
		source := cfg.Dataset.Source
		if e.globals.Source != "" {
			source = e.globals.Source
		}
		loader = &services.FileLoader{Path: source, Logger: logger}
	}

	cache := services.NewCache(loader, cfg.Dataset.CacheTTL, logger, nil)
	return services.NewAnalytics(cache, cfg.Dataset.TopN, logger), nil
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}
