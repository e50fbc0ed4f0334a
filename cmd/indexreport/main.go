// Command indexreport computes every index over one flight table and writes
// indices.json, ledger.csv and summary.csv into an output directory.
//
// Usage:
//
//	indexreport -in flights.csv -out reports/ [-config config.yaml] [-base-start 2024-01-01] [-base-end 2024-03-31] [-xlsx]
//
// Exit status is 2 when the input lacks a required column, 1 on any other
// failure and 64 on bad usage.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/internal/config"
	"github.com/LASER-IDEA/white-paper-sub000/internal/engine"
	apierrors "github.com/LASER-IDEA/white-paper-sub000/internal/errors"
	"github.com/LASER-IDEA/white-paper-sub000/internal/exporter"
	"github.com/LASER-IDEA/white-paper-sub000/internal/infrastructure"
	"github.com/LASER-IDEA/white-paper-sub000/internal/schema"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts"
)

const (
	exitOK            = 0
	exitFailure       = 1
	exitMissingColumn = 2
	exitUsage         = 64
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

type options struct {
	in        string
	out       string
	config    string
	baseStart string
	baseEnd   string
	workbook  bool
	timeout   time.Duration
	version   bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("indexreport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.in, "in", "", "input table (.csv, .json or .xlsx)")
	fs.StringVar(&opts.out, "out", "reports", "output directory")
	fs.StringVar(&opts.config, "config", "", "YAML configuration file")
	fs.StringVar(&opts.baseStart, "base-start", "", "traffic index base period start (YYYY-MM-DD)")
	fs.StringVar(&opts.baseEnd, "base-end", "", "traffic index base period end (YYYY-MM-DD)")
	fs.BoolVar(&opts.workbook, "xlsx", false, "also write an XLSX workbook")
	fs.DurationVar(&opts.timeout, "timeout", 0, "overall run budget, 0 for none")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.in == "" && !opts.version {
		return opts, errors.New("-in is required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return exitUsage
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer infrastructure.CloseLogFile()

	// batch runs have no scrape endpoint
	cfg.Telemetry.EnableMetrics = false
	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", slog.String("error", err.Error()))
		return exitFailure
	}
	defer providers.Shutdown(context.WithoutCancel(ctx))

	eng, err := engine.NewFromConfig(cfg.Engine,
		engine.WithLogger(infrastructure.WithComponent(logger, "engine")),
		engine.WithTracer(providers.Tracer),
	)
	if err != nil {
		logger.Error("failed to create engine", slog.String("error", err.Error()))
		return exitFailure
	}

	raw, err := schema.ReadFile(opts.in)
	if err != nil {
		logger.Error("failed to read input", slog.String("input", opts.in), slog.String("error", err.Error()))
		return exitFailure
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	result, err := eng.Run(ctx, raw)
	if err != nil {
		var missing *apierrors.MissingColumnError
		if errors.As(err, &missing) {
			logger.Error("input is missing required columns",
				slog.String("input", opts.in),
				slog.Any("missing_fields", missing.Fields))
			fmt.Fprintf(stderr, "missing required columns: %v\n", missing.Fields)
			return exitMissingColumn
		}
		logger.Error("run failed", slog.String("error", err.Error()))
		return exitFailure
	}

	files, err := exporter.NewRunExporter(opts.out, logger).Export(result, exporter.Options{Workbook: opts.workbook})
	if err != nil {
		logger.Error("export failed", slog.String("error", err.Error()))
		return exitFailure
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]interface{}{
		"run_id":   result.RunID,
		"results":  len(result.Results),
		"failures": len(result.Failures),
		"files":    files,
	}); err != nil {
		return exitFailure
	}
	return exitOK
}

// loadConfig loads the configuration and applies the base period flags
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.config)
	if err != nil {
		return nil, err
	}
	if opts.baseStart != "" {
		cfg.Engine.BaseStart = opts.baseStart
	}
	if opts.baseEnd != "" {
		cfg.Engine.BaseEnd = opts.baseEnd
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
