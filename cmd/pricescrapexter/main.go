// cmd/pricescrapexter/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/PriceScrapexter/internal/config"
	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/output"
	"github.com/valpere/PriceScrapexter/internal/pipeline"
	"github.com/valpere/PriceScrapexter/internal/storage/sqlstore"
	"github.com/valpere/PriceScrapexter/internal/tracker"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const defaultConfigFile = "config.yaml"

// options are the flags shared by every command.
type options struct {
	configFile string
	verbose    bool
	userID     int64
	all        bool
}

func parseOptions(name string, args []string, stderr io.Writer) (options, []string, error) {
	var opts options
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.configFile, "config", os.Getenv("PRICESCRAPEXTER_CONFIG"), "configuration file")
	flags.StringVar(&opts.configFile, "c", os.Getenv("PRICESCRAPEXTER_CONFIG"), "configuration file (shorthand)")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	flags.BoolVar(&opts.verbose, "v", false, "enable debug logging (shorthand)")
	flags.Int64Var(&opts.userID, "user", 0, "user whose API key is used by analyze")
	flags.BoolVar(&opts.all, "all", false, "sync every due source")
	if err := flags.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, flags.Args(), nil
}

// loadConfig reads the configuration file. Without an explicit file a
// missing config.yaml falls back to the defaults.
func loadConfig(opts options) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	file := opts.configFile
	if file == "" {
		if _, err := os.Stat(defaultConfigFile); errors.Is(err, fs.ErrNotExist) {
			cfg := config.Default()
			if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
				cfg.Database.Driver, cfg.Database.DSN = sqlstore.DriverPostgres, dsn
			}
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
			return cfg, nil
		}
		file = defaultConfigFile
	}
	return config.LoadFromFile(file)
}

func newLogger(cfg *config.Config, verbose bool) (*utils.ZapLogger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return utils.NewZapLogger(cfg.Logging.Mode, level)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	command := args[0]
	switch command {
	case "version", "--version":
		printVersion(stdout)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	case "template":
		data, err := config.GenerateTemplate()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		stdout.Write(data)
		return 0
	case "serve", "sync", "analyze", "migrate", "export":
	default:
		fmt.Fprintf(stderr, "Error: unknown command '%s'\n", command)
		printUsage(stderr)
		return 1
	}

	opts, rest, err := parseOptions(command, args[1:], stderr)
	if err != nil {
		return 2
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	logger, err := newLogger(cfg, opts.verbose)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	defer a.close()

	switch command {
	case "serve":
		err = runServe(ctx, a)
	case "migrate":
		err = runMigrate(ctx, a, stdout)
	case "sync":
		err = runSync(ctx, a, opts, rest, stdout)
	case "analyze":
		err = runAnalyze(ctx, a, opts, rest, stdout)
	case "export":
		err = runExport(ctx, a, rest, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

func runServe(ctx context.Context, a *app) error {
	if err := sqlstore.Migrate(ctx, a.db); err != nil {
		return err
	}
	a.health.RunChecks(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.newServer().ListenAndServe(ctx) })
	if a.cfg.Scheduler.Enabled {
		g.Go(func() error { return a.newScheduler().Start(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runMigrate(ctx context.Context, a *app, stdout io.Writer) error {
	if err := sqlstore.Migrate(ctx, a.db); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Database schema is up to date (%s)\n", a.cfg.Database.Driver)
	return nil
}

func runSync(ctx context.Context, a *app, opts options, args []string, stdout io.Writer) error {
	if opts.all {
		res, err := a.newScheduler().RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Due: %d  succeeded: %d  failed: %d  skipped: %d\n", res.Due, res.Succeeded, res.Failed, res.Skipped)
		return nil
	}
	if len(args) < 1 {
		return usageError("pricescrapexter sync [--all] <source-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return usageError("source id must be a number")
	}

	entry, err := a.orchestrator.SyncSource(ctx, id)
	if err != nil {
		return err
	}
	if entry.ErrorMessage != "" {
		return fmt.Errorf("sync %d failed: %s", entry.ID, entry.ErrorMessage)
	}
	fmt.Fprintf(stdout, "✓ Sync %d: found %d, added %d, updated %d, tokens %d\n",
		entry.ID, entry.ProductsFound, entry.ProductsAdded, entry.ProductsUpdated, entry.TokensUsed)
	if entry.SelectorsRegenerated {
		fmt.Fprintln(stdout, "  selectors were regenerated")
	}
	return nil
}

func runAnalyze(ctx context.Context, a *app, opts options, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return usageError("pricescrapexter analyze [--user <id>] <url>")
	}
	analyzer, err := a.analyzerFor(ctx, opts.userID)
	if err != nil {
		return err
	}

	final := analyzer.Analyze(ctx, args[0], pipeline.SinkFunc(func(ev pipeline.Event) {
		if ev.Type == pipeline.EventProgress || (ev.Type == pipeline.EventError && ev.Error == "") {
			fmt.Fprintf(stdout, "  %s\n", ev.Message)
		}
	}))
	if final.Type == pipeline.EventError {
		return fmt.Errorf("analysis failed: %s", final.Error)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(final)
}

func runExport(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if len(args) < 2 {
		return usageError("pricescrapexter export <source-id> <file.xlsx|file.csv|file.json>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return usageError("source id must be a number")
	}
	if _, err := a.sources.Get(ctx, id); err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return tracker.ErrSourceNotFound
		}
		return err
	}

	products, err := a.products.ListBySource(ctx, id)
	if err != nil {
		return err
	}
	format, err := output.ExportFile(args[1], output.Records(products), a.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Exported %d products to %s (%s)\n", len(products), args[1], format)
	return nil
}

func usageError(msg string) error {
	return utils.NewError(utils.ErrCodeValidation, "usage: "+msg).Build()
}

// exitCode maps error codes onto process exit statuses.
func exitCode(err error) int {
	switch utils.CodeOf(err) {
	case utils.ErrCodeValidation, utils.ErrCodeInvalidConfig:
		return 2
	case utils.ErrCodeNoCredential:
		return 3
	case utils.ErrCodeFetchBlocked, utils.ErrCodeFetchFailed, utils.ErrCodeRenderFailed:
		return 4
	case utils.ErrCodeLLMFailed, utils.ErrCodeParseFailed, utils.ErrCodeExtractionEmpty:
		return 5
	case utils.ErrCodeDatabaseError:
		return 6
	}
	if errors.Is(err, tracker.ErrSourceNotFound) {
		return 2
	}
	return 1
}

// printUsage displays help information
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "PriceScrapexter - LLM-assisted product discovery and price tracking")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pricescrapexter serve                       Run the HTTP API and the sync scheduler")
	fmt.Fprintln(w, "  pricescrapexter sync [--all] <source-id>    Sync one source now (or every due source)")
	fmt.Fprintln(w, "  pricescrapexter analyze [--user N] <url>    Analyze a listing page and preview products")
	fmt.Fprintln(w, "  pricescrapexter migrate                     Create or update the database schema")
	fmt.Fprintln(w, "  pricescrapexter export <source-id> <file>   Export products to .xlsx, .csv or .json")
	fmt.Fprintln(w, "  pricescrapexter template                    Print a default configuration file")
	fmt.Fprintln(w, "  pricescrapexter version                     Show version information")
	fmt.Fprintln(w, "  pricescrapexter help                        Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -c, --config <file>   Configuration file (default config.yaml, $PRICESCRAPEXTER_CONFIG)")
	fmt.Fprintln(w, "  -v, --verbose         Enable debug logging")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Default model: %s\n", llm.DefaultModel)
}

// printVersion displays version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "PriceScrapexter %s\n", version)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
	fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
}
