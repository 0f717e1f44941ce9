// Package main provides the Harvest headless scraper for batch policy
// enrichment. It reads a CSV/XLSX dataset, scrapes the portal for each
// row, and writes the enriched dataset back out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/coverscope/harvest/pkg/config"
	"github.com/coverscope/harvest/pkg/dataset"
	"github.com/coverscope/harvest/pkg/engine"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	InputFile   string
	OutputFile  string
	ConfigFile  string
	LocatorFile string
	Template    string
	Headless    bool
	Hybrid      bool
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("Harvest v%s\n", version)
		return
	}

	// Set up signal handling for graceful shutdown. The engine finishes
	// the in-flight row and marks the rest as errors.
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, finishing current row...")
		cancel()
	}()

	if err := run(ctx, cli); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "harvest: %v\n", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.InputFile, "input", "", "Input dataset (.csv or .xlsx)")
	flag.StringVar(&cli.OutputFile, "output", "", "Output path (defaults to <input>-enriched.csv)")
	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (JSON)")
	flag.StringVar(&cli.LocatorFile, "locators", "", "Path to locator overrides (YAML)")
	flag.StringVar(&cli.Template, "template", "", "Write an input template to this path and exit")
	flag.BoolVar(&cli.Headless, "headless", true, "Run the browser headless")
	flag.BoolVar(&cli.Hybrid, "hybrid", false, "Enable the HTTP fast path for detail pages")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Harvest - Batch Policy Portal Scraper\n\n")
		fmt.Fprintf(os.Stderr, "Usage: harvest [options]\n\n")
		fmt.Fprintf(os.Stderr, "Credentials are read from %s and %s.\n\n",
			appconfig.EnvUsername, appconfig.EnvPassword)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Enrich a CSV export\n")
		fmt.Fprintf(os.Stderr, "  harvest -input policies.csv -output enriched.csv\n\n")
		fmt.Fprintf(os.Stderr, "  # Get a starter input file\n")
		fmt.Fprintf(os.Stderr, "  harvest -template policies.xlsx\n\n")
		fmt.Fprintf(os.Stderr, "  # Watch the browser while debugging selectors\n")
		fmt.Fprintf(os.Stderr, "  harvest -input policies.csv -headless=false\n\n")
	}

	flag.Parse()
	return cli
}

// run executes one batch end to end.
func run(ctx context.Context, cli *CLIConfig) error {
	if cli.Template != "" {
		if err := dataset.Template().WriteFile(cli.Template); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Template written to %s\n", cli.Template)
		return nil
	}

	if cli.InputFile == "" {
		flag.Usage()
		return fmt.Errorf("-input is required")
	}
	if cli.OutputFile == "" {
		cli.OutputFile = cli.InputFile + "-enriched.csv"
	}

	cfg, err := appconfig.Load(cli.ConfigFile)
	if err != nil {
		return err
	}
	cfg.Headless = cli.Headless
	cfg.Hybrid = cli.Hybrid
	if cli.LocatorFile != "" {
		cfg.LocatorFile = cli.LocatorFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	creds, err := appconfig.CredentialsFromEnv()
	if err != nil {
		return err
	}

	input, err := dataset.ReadFile(cli.InputFile)
	if err != nil {
		return err
	}

	eng := engine.New(cfg)
	quit := make(chan struct{})
	progressDone := make(chan struct{})
	go renderProgress(eng.Events(), quit, progressDone)

	enriched, runErr := eng.Run(ctx, creds, input)
	close(quit)
	<-progressDone

	// A canceled batch still has a full merged dataset worth writing.
	if runErr != nil && len(enriched.Rows) == 0 {
		return runErr
	}

	if err := enriched.WriteFile(cli.OutputFile); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Output written to %s\n", cli.OutputFile)

	if errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("batch interrupted; partial results written")
	}
	return runErr
}

// renderProgress prints batch progress to stderr as events arrive.
// When quit closes it drains whatever is still buffered, then signals
// done.
func renderProgress(events <-chan engine.Event, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case ev := <-events:
			printEvent(ev)
		case <-quit:
			for {
				select {
				case ev := <-events:
					printEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func printEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventBatchStart:
		fmt.Fprintf(os.Stderr, "Processing %d rows (batch %s)\n", ev.Total, ev.BatchID)
	case engine.EventRowDone:
		line := fmt.Sprintf("[%d/%d] %s: %s", ev.RowIndex+1, ev.Total, ev.Term, ev.Status)
		if ev.Error != "" {
			line += " (" + ev.Error + ")"
		}
		fmt.Fprintln(os.Stderr, line)
	case engine.EventReauthenticated:
		fmt.Fprintln(os.Stderr, "Session expired, logged in again")
	case engine.EventBatchDone:
		fmt.Fprintf(os.Stderr, "Done: %d processed, %d matched, %d failed\n",
			ev.Processed, ev.Matched, ev.Failed)
	}
}
