// Command coronary-score scores patient files from the command line.
//
//	coronary-score --input patients.xlsx --output results.xlsx --calculator all
//	coronary-score --input patients.json --validate
//	coronary-score --create-sample --output sample.json
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/coronary-score-server/internal/dataio"
	"github.com/coronary-score-server/internal/domain"
	"github.com/coronary-score-server/internal/logging"
	"github.com/coronary-score-server/internal/service"
	"github.com/coronary-score-server/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	input        string
	output       string
	calculator   string
	dominance    string
	storePath    string
	createSample bool
	validate     bool
	verbose      bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var opts options
	flags := pflag.NewFlagSet("coronary-score", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&opts.input, "input", "i", "", "patient file (.json, .csv, .xlsx)")
	flags.StringVarP(&opts.output, "output", "o", "", "results file (.json, .csv, .xlsx)")
	flags.StringVarP(&opts.calculator, "calculator", "c", "all", "syntax, gensini, cadrads or all")
	flags.StringVar(&opts.dominance, "dominance", "right", "dominance for records that do not state one")
	flags.StringVar(&opts.storePath, "store", "", "SQLite file to record score runs in")
	flags.BoolVar(&opts.createSample, "create-sample", false, "write sample patients to --output")
	flags.BoolVar(&opts.validate, "validate", false, "validate the input without scoring")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: coronary-score --input FILE [options]\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		flags.Usage()
		return nil, fmt.Errorf("no arguments given")
	}
	return &opts, nil
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	if opts.createSample {
		if opts.output == "" {
			fmt.Fprintln(stderr, "Error: --create-sample requires --output")
			return 1
		}
		if err := dataio.WriteSample(opts.output); err != nil {
			fmt.Fprintf(stderr, "Error: failed to create sample: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Sample data written to %s\n", opts.output)
		return 0
	}

	if opts.input == "" {
		fmt.Fprintln(stderr, "Error: --input is required")
		return 1
	}

	calc, err := domain.ParseCalculator(opts.calculator)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := "warn"
	if opts.verbose {
		level = "info"
	}
	logger, _, err := logging.New(domain.LoggingConfig{Level: level, Format: "text", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger.SetOutput(stderr)

	patients, err := dataio.NewImporter(logger).ImportFile(opts.input)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to load %s: %v\n", opts.input, err)
		return 1
	}
	if opts.verbose {
		fmt.Fprintf(stdout, "Loaded %d patients from %s\n", len(patients), opts.input)
	}

	var recorder service.RunRecorder
	if opts.storePath != "" {
		runs, err := store.NewSQLiteStore(opts.storePath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer runs.Close()
		recorder = runs
	}

	scoring, err := service.NewScoringService(logger, nil, recorder, domain.ScoringConfig{
		DefaultDominance: opts.dominance,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.validate {
		if validateAll(stdout, scoring, patients) {
			return 0
		}
		return 1
	}

	items := scoring.ScoreBatch(context.Background(), patients, calc)

	if opts.output != "" {
		written, err := dataio.ExportResults(opts.output, items)
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to save results: %v\n", err)
			return 1
		}
		for _, path := range written {
			fmt.Fprintf(stdout, "Results saved to %s\n", path)
		}
	}

	printSummary(stdout, items, opts.verbose)
	return 0
}

func validateAll(w io.Writer, scoring *service.ScoringService, patients []domain.PatientRecord) bool {
	allValid := true
	for i := range patients {
		p := &patients[i]
		report := scoring.Validate(p)

		fmt.Fprintf(w, "\nPatient %d (ID: %s)\n", i+1, orNA(p.ID))
		if report.Valid {
			fmt.Fprintln(w, "  OK")
		} else {
			allValid = false
			fmt.Fprintln(w, "  Validation failed:")
			for _, msg := range report.Messages() {
				fmt.Fprintf(w, "    - %s\n", msg)
			}
		}
		if len(report.Warnings) > 0 {
			fmt.Fprintln(w, "  Consistency warnings:")
			for _, warning := range report.Warnings {
				fmt.Fprintf(w, "    - %s\n", warning)
			}
		}
	}
	return allValid
}

func printSummary(w io.Writer, items []domain.BatchItem, verbose bool) {
	fmt.Fprintf(w, "\nProcessed %d patients\n", len(items))
	fmt.Fprintln(w, "============================================================")

	for i, s := range dataio.Summarize(items) {
		fmt.Fprintf(w, "\nPatient: %s\n", orNA(s.PatientID))
		if s.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", s.Error)
			continue
		}
		if s.SyntaxScore != "" {
			fmt.Fprintf(w, "  SYNTAX:   %s (%s)\n", s.SyntaxScore, s.SyntaxRisk)
		}
		if s.CadRads != "" {
			fmt.Fprintf(w, "  CAD-RADS: %s\n", s.CadRads)
		}
		if s.GensiniScore != "" {
			fmt.Fprintf(w, "  Gensini:  %s (%s)\n", s.GensiniScore, s.GensiniSeverity)
		}
		if verbose && items[i].Bundle != nil {
			for _, warning := range items[i].Bundle.Warnings() {
				fmt.Fprintf(w, "  Warning: %s\n", warning)
			}
		}
	}
}

func orNA(id string) string {
	if id == "" {
		return "N/A"
	}
	return id
}
