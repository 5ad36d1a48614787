// Command mosaic matches a grid of target cells against a tile database and
// writes the chosen tile for every cell.
//
//	mosaic [flags] tile_bin.db < input.csv > output.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/mosaic/internal/config"
	"github.com/banshee-data/mosaic/internal/csvio"
	"github.com/banshee-data/mosaic/internal/db"
	"github.com/banshee-data/mosaic/internal/monitoring"
	"github.com/banshee-data/mosaic/internal/mosaic"
	"github.com/banshee-data/mosaic/internal/report"
	"github.com/banshee-data/mosaic/internal/tiledb"
	"github.com/banshee-data/mosaic/internal/timeutil"
	"github.com/banshee-data/mosaic/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON tuning file (defaults built in)")
	workers     = flag.Int("workers", 1, "Scoring goroutines; 0 uses every CPU (overrides config)")
	window      = flag.String("window", "rank", "Window policy: rank or stream (overrides config)")
	margin      = flag.Int("margin", 0, "Extra candidates kept per cell (overrides config)")
	runsDB      = flag.String("runs-db", "", "SQLite file recording run history and assignments")
	plotsDir    = flag.String("plots", "", "Directory for convergence plots")
	reportPath  = flag.String("report", "", "Write an HTML report of the assignment to this path")
	metricsFile = flag.String("metrics-file", "", "Write Prometheus metrics to this file on exit")
	verbose     = flag.Bool("v", false, "Verbose logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// runOptions carries everything main resolves from flags and config.
type runOptions struct {
	LibraryPath string
	Config      *config.MatchConfig
	RunsDB      string
	PlotsDir    string
	ReportPath  string
	Clock       timeutil.Clock
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] tile_bin.db < input.csv > output.csv\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("mosaic %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	overrides := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { overrides[f.Name] = true })
	if err := applyFlags(cfg, overrides, *workers, *window, *margin); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := run(ctx, runOptions{
		LibraryPath: flag.Arg(0),
		Config:      cfg,
		RunsDB:      *runsDB,
		PlotsDir:    *plotsDir,
		ReportPath:  *reportPath,
		Clock:       timeutil.RealClock{},
	}, os.Stdin, os.Stdout)

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, prometheus.DefaultGatherer); err != nil {
			log.Printf("failed to write metrics: %v", err)
		}
	}
	if runErr != nil {
		log.Fatalf("mosaic: %v", runErr)
	}
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.MatchConfig, error) {
	if path == "" {
		return config.DefaultMatchConfig(), nil
	}
	return config.LoadMatchConfig(path)
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cfg *config.MatchConfig, set map[string]bool, workers int, window string, margin int) error {
	if set["workers"] {
		cfg.Workers = &workers
	}
	if set["window"] {
		window = strings.ToLower(strings.TrimSpace(window))
		cfg.WindowPolicy = &window
	}
	if set["margin"] {
		cfg.WindowMargin = &margin
	}
	return cfg.Validate()
}

// run matches one grid read from in against the library and writes the
// assignment to out. When a run store is configured the run is recorded
// whether it succeeds or fails.
func run(ctx context.Context, o runOptions, in io.Reader, out io.Writer) (err error) {
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	start := o.Clock.Now()

	header, cells, err := csvio.ReadGrid(in)
	if err != nil {
		return fmt.Errorf("failed to read grid: %w", err)
	}

	opts := header.Options()
	o.Config.ApplyTo(&opts)

	var (
		store    *db.RunStore
		runID    string
		matcher  *mosaic.Matcher
		assigned []mosaic.Assignment
	)
	if o.RunsDB != "" {
		database, dbErr := db.NewDB(o.RunsDB)
		if dbErr != nil {
			return dbErr
		}
		defer database.Close()

		store = db.NewRunStoreWithClock(database, o.Clock)
		runID, err = store.StartRun(db.RunParams{
			LibraryPath:  o.LibraryPath,
			Cells:        len(cells),
			Dups:         header.Dups,
			XBlocks:      header.XBlocks,
			YBlocks:      header.YBlocks,
			Flags:        header.Flags,
			Wy:           header.Wy,
			Wc:           header.Wc,
			We:           header.We,
			WindowPolicy: opts.Policy.String(),
			WindowMargin: opts.WindowMargin,
			Workers:      opts.Workers,
		})
		if err != nil {
			return err
		}
		defer func() {
			processed := 0
			if matcher != nil {
				processed = matcher.Store().Processed()
			}
			elapsed := o.Clock.Since(start)
			var recErr error
			if err != nil {
				recErr = store.FailRun(runID, processed, elapsed, err)
			} else {
				recErr = store.CompleteRun(runID, processed, elapsed, assigned)
			}
			if recErr != nil {
				monitoring.Logf("[RunStore] failed to record run %s: %v", runID, recErr)
			}
		}()
	}

	lib, err := tiledb.Open(o.LibraryPath)
	if err != nil {
		return err
	}
	defer lib.Close()

	// Compressed libraries have no size-derived count; progress lines then
	// omit the percentage.
	total := 0
	if !lib.Compressed() {
		total, _ = tiledb.CountRecords(o.LibraryPath)
	}

	observers := mosaic.Observers{&mosaic.ProgressLogger{
		Every:    o.Config.GetProgressEvery(),
		Total:    total,
		Interval: o.Config.GetProgressInterval(),
		Clock:    o.Clock,
	}}
	var plots *report.Plotter
	if o.PlotsDir != "" {
		plots, err = report.NewPlotter(cells, header.XTiles, o.Config.GetPlotEvery())
		if err != nil {
			return err
		}
		observers = append(observers, plots)
	}
	opts.Observer = observers

	matcher, err = mosaic.NewMatcher(cells, opts)
	if err != nil {
		return err
	}
	if err := matcher.Run(ctx, lib); err != nil {
		return err
	}
	if plots != nil {
		// Always finish with the final state.
		plots.Sample(matcher.Store().Processed(), matcher.Store())
	}

	assigned, err = mosaic.Resolve(cells, matcher.Store())
	if err != nil {
		return err
	}
	if err := csvio.WriteAssignments(out, header, assigned); err != nil {
		return err
	}

	if plots != nil {
		if _, err := plots.GeneratePlots(o.PlotsDir); err != nil {
			return fmt.Errorf("failed to generate plots: %w", err)
		}
	}
	if o.ReportPath != "" {
		if err := writeReport(o.ReportPath, header, assigned); err != nil {
			return err
		}
	}

	monitoring.Logf("[Mosaic] %d cells assigned from %d library tiles in %s",
		len(assigned), matcher.Store().Processed(), o.Clock.Since(start).Round(time.Millisecond))
	return nil
}

func writeReport(path string, h csvio.Header, out []mosaic.Assignment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := report.WriteHeatmap(f, h, out); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
