package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/xhad/primarysources/internal/types"
	cfgPkg "github.com/xhad/primarysources/pkg/config"
	"github.com/xhad/primarysources/pkg/composer"
	"github.com/xhad/primarysources/pkg/extract"
	"github.com/xhad/primarysources/pkg/fetcher"
	"github.com/xhad/primarysources/pkg/store"
	"github.com/xhad/primarysources/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	ConfigPath string
	DBUrl      string
	UserAgent  string
	Timeout    time.Duration
	Serve      bool
	Addr       string
	Debug      bool
	Quiet      bool
}

func main() {
	opts := parseFlags()

	config, err := cfgPkg.LoadConfig(opts.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}
	applyFlags(config, opts)

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(2)
	}

	logger, err := newLogger(config, opts.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, opts, logger); err != nil {
		color.Red("\n✗ %v\n", err)
		stop()
		os.Exit(1)
	}
}

func parseFlags() Options {
	var opts Options

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&opts.DBUrl, "db-url", "", "PostgreSQL connection string for the run ledger")
	flag.StringVar(&opts.UserAgent, "user-agent", "", "User-Agent sent with every request")
	flag.DurationVar(&opts.Timeout, "timeout", 0, "Per-request timeout")
	flag.BoolVar(&opts.Serve, "serve", false, "Serve /token and /ws instead of running once")
	flag.StringVar(&opts.Addr, "addr", "", "Listen address for -serve")
	flag.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&opts.Quiet, "quiet", false, "Only print the token and digest")
	flag.Parse()

	return opts
}

// applyFlags overrides config values with flags that were set explicitly.
func applyFlags(config *cfgPkg.Config, opts Options) {
	if opts.DBUrl != "" {
		config.Database.URL = opts.DBUrl
	}
	if opts.UserAgent != "" {
		config.Fetcher.UserAgent = opts.UserAgent
	}
	if opts.Timeout != 0 {
		config.Fetcher.Timeout = opts.Timeout
	}
	if opts.Addr != "" {
		config.Server.Addr = opts.Addr
	}
}

func newLogger(config *cfgPkg.Config, debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if config.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(config.Log.Level)
	if err != nil {
		return nil, err
	}
	if debug {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(ctx context.Context, config *cfgPkg.Config, opts Options, logger *zap.Logger) error {
	// Initialize components
	fc := config.FetcherConfig()
	fc.Logger = logger.Named("fetcher")
	f := fetcher.NewWithConfig(fc)

	ec := config.ExtractConfig()
	ec.Logger = logger.Named("extract")
	extractors := extract.All(f, ec)

	var runStore types.RunStore
	if config.Database.URL != "" {
		rs, err := store.NewWithConfig(ctx, store.RunStoreConfig{
			ConnString:  config.Database.URL,
			TablePrefix: config.Database.TablePrefix,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize run store: %w", err)
		}
		defer rs.Close()
		runStore = rs
	}

	if opts.Serve {
		srv, err := server.NewWSServer(server.Config{
			Addr:           config.Server.Addr,
			Prefix:         config.Composer.Prefix,
			Extractors:     extractors,
			Store:          runStore,
			AllowedOrigins: config.Server.AllowedOrigins,
			Logger:         logger.Named("server"),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		color.Cyan("Serving on %s (GET /token, /runs, /health; websocket /ws)", config.Server.Addr)
		return srv.ListenAndServe(ctx)
	}

	if !opts.Quiet {
		color.Blue("\nCollecting %d facts from primary sources\n", len(extractors))
	}
	bar := getProgressBar(len(extractors), " Fetching sources...", opts.Quiet)

	c := composer.NewWithConfig(composer.ComposerConfig{
		Prefix:     config.Composer.Prefix,
		Logger:     logger.Named("composer"),
		OnProgress: progressReporter(bar),
	}, extractors...)

	result, err := c.Assemble(ctx)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("failed to assemble token: %w", err)
	}

	if runStore != nil {
		if err := runStore.Save(ctx, result); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	if !opts.Quiet {
		fmt.Println()
		for _, o := range result.Outcomes {
			printOutcome(o)
		}
		fmt.Println(strings.Repeat("=", 50))
	}
	printToken(result)
	return nil
}
