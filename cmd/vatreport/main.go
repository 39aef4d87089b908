// Command vatreport classifies marketplace VAT exports from the command line.
//
//	vatreport [flags] export.csv [more.csv ...]
//
// Use "-" to read an export from standard input.
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
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/vatdesk/api/internal/config"
	"github.com/vatdesk/api/internal/export"
	"github.com/vatdesk/api/internal/services/analysis"
	"github.com/vatdesk/api/internal/vat"
)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitUsage   = 2
	exitInvalid = 3 // -strict and a reconciliation check failed
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	format    string
	output    string
	dir       string
	mapping   string
	workers   int
	rateCheck bool
	tolerance float64
	strict    bool
	logLevel  string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "vatreport: %v\n", err)
		return exitUsage
	}

	var opts options
	fs := flag.NewFlagSet("vatreport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.format, "format", "json", "Output format: json, csv (breakdown) or transactions")
	fs.StringVar(&opts.output, "o", "", "Output file for a single input (default stdout)")
	fs.StringVar(&opts.dir, "dir", ".", "Output directory for csv and transactions formats with several inputs")
	fs.StringVar(&opts.mapping, "mapping", cfg.VAT.MappingFile, "JSON file with column and scheme mapping rules")
	fs.IntVar(&opts.workers, "workers", 4, "Number of files analysed concurrently")
	fs.BoolVar(&opts.rateCheck, "rate-check", cfg.VAT.RateCheckEnabled, "Flag VAT amounts that match no known rate")
	fs.Float64Var(&opts.tolerance, "tolerance", cfg.VAT.RateTolerance, "Rate check tolerance in percentage points")
	fs.BoolVar(&opts.strict, "strict", false, "Exit with status 3 when a reconciliation check fails")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: vatreport [flags] export.csv [more.csv ...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	paths := fs.Args()
	if len(paths) == 0 {
		fs.Usage()
		return exitUsage
	}
	switch opts.format {
	case "json", "csv", "transactions":
	default:
		fmt.Fprintf(stderr, "vatreport: unknown format %q\n", opts.format)
		return exitUsage
	}
	if opts.output != "" && len(paths) > 1 && opts.format != "json" {
		fmt.Fprintln(stderr, "vatreport: -o takes a single input for csv and transactions formats; use -dir")
		return exitUsage
	}

	level, err := config.ParseLogLevel(opts.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "vatreport: %v\n", err)
		return exitUsage
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rules, err := analysis.LoadMappingRules(opts.mapping)
	if err != nil {
		fmt.Fprintf(stderr, "vatreport: %v\n", err)
		return exitError
	}

	inputs, err := readInputs(paths, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "vatreport: %v\n", err)
		return exitError
	}

	var rates *vat.RateCache
	if opts.rateCheck {
		rates = vat.NewDefaultRateCache()
	}
	engine := vat.NewEngine(rates, vat.DiagnosticOptions{
		RateCheck:     opts.rateCheck,
		RateTolerance: decimal.NewFromFloat(opts.tolerance),
	})
	svc := analysis.NewService(engine, rules, logger)
	svc.SetWorkers(opts.workers)

	results, err := svc.AnalyzeAll(ctx, inputs, vat.MappingRules{})
	if err != nil {
		fmt.Fprintf(stderr, "vatreport: %v\n", err)
		return exitError
	}

	if err := writeResults(opts, engine, rules, inputs, results, stdout); err != nil {
		fmt.Fprintf(stderr, "vatreport: %v\n", err)
		return exitError
	}

	if opts.strict {
		for _, res := range results {
			if !res.Report.SanityCheckGlobal.IsValid {
				fmt.Fprintf(stderr, "vatreport: %s: reconciliation outside tolerance\n", res.Source)
				return exitInvalid
			}
			for _, c := range res.Report.SanityCheckByCountry {
				if !c.IsValid {
					fmt.Fprintf(stderr, "vatreport: %s: %s reconciliation off by %s\n", res.Source, c.Country, c.Difference)
					return exitInvalid
				}
			}
		}
	}
	return exitOK
}

func readInputs(paths []string, stdin io.Reader) ([]analysis.Input, error) {
	inputs := make([]analysis.Input, 0, len(paths))
	usedStdin := false
	for _, p := range paths {
		if p == "-" {
			if usedStdin {
				return nil, errors.New("standard input given more than once")
			}
			usedStdin = true
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("reading standard input: %w", err)
			}
			inputs = append(inputs, analysis.Input{Name: "stdin", Data: data})
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, analysis.Input{Name: p, Data: data})
	}
	return inputs, nil
}

func writeResults(opts options, engine *vat.Engine, rules vat.MappingRules, inputs []analysis.Input, results []*analysis.Result, stdout io.Writer) error {
	if opts.format == "json" {
		return withOutput(opts.output, stdout, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if len(results) == 1 {
				return enc.Encode(results[0])
			}
			return enc.Encode(results)
		})
	}

	var names []string
	if len(results) > 1 {
		sources := make([]string, len(results))
		for i, res := range results {
			sources[i] = res.Source
		}
		names = outputNames(sources, opts.format)
	}

	for i, res := range results {
		write := func(w io.Writer) error {
			if opts.format == "csv" {
				return export.WriteBreakdown(w, res.Report.Breakdown)
			}
			stream, err := engine.Classified(inputs[i].Data, rules)
			if err != nil {
				return err
			}
			return export.WriteTransactions(w, stream)
		}

		target := opts.output
		if len(results) > 1 {
			target = filepath.Join(opts.dir, names[i])
		}
		if err := withOutput(target, stdout, write); err != nil {
			return fmt.Errorf("%s: %w", res.Source, err)
		}
	}
	return nil
}

// outputName derives the per-input file name used with several inputs.
func outputName(source, format string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	suffix := "-breakdown.csv"
	if format == "transactions" {
		suffix = "-transactions.csv"
	}
	return base + suffix
}

// outputNames returns one distinct file name per source. When two sources
// share a base name, later ones get a numeric suffix (jan-2-breakdown.csv).
func outputNames(sources []string, format string) []string {
	names := make([]string, len(sources))
	taken := make(map[string]bool, len(sources))
	for i, src := range sources {
		name := outputName(src, format)
		for n := 2; taken[name]; n++ {
			name = outputName(fmt.Sprintf("%s-%d", strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)), n), format)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// withOutput runs write against path, or stdout when path is empty.
func withOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
