// Command filterdb copies a tile database, dropping tiles with the wrong
// aspect ratio and near-duplicates of recently seen tiles.
//
//	filterdb [-r ratio+delta] [-d score] [-n lastnum] -i in.db -o out.db
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/mosaic/internal/config"
	"github.com/banshee-data/mosaic/internal/filter"
	"github.com/banshee-data/mosaic/internal/monitoring"
	"github.com/banshee-data/mosaic/internal/tiledb"
	"github.com/banshee-data/mosaic/internal/version"
)

var (
	ratio       = flag.String("r", "", "Keep tiles with width/height in ratio+delta, e.g. 1.5+0.05")
	dupeScore   = flag.Int("d", -1, "Drop tiles scoring at or below this against a recent tile")
	lastNum     = flag.Int("n", 0, "Number of recent tiles compared for dupes (default from config)")
	inPath      = flag.String("i", "", "Input tile database")
	outPath     = flag.String("o", "", "Output tile database (.zst suffix compresses)")
	configPath  = flag.String("config", "", "Path to a JSON tuning file (defaults built in)")
	verbose     = flag.Bool("v", false, "Verbose logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("filterdb %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *inPath == "" || *outPath == "" {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-r ratio+delta] [-d score] [-n lastnum] -i in.db -o out.db\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	monitoring.SetVerbose(*verbose)

	mc := config.DefaultMatchConfig()
	if *configPath != "" {
		var err error
		if mc, err = config.LoadMatchConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	cfg, err := buildConfig(mc, *ratio, *dupeScore, *lastNum)
	if err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}
	if _, err := filterFile(cfg, *inPath, *outPath); err != nil {
		log.Fatalf("filterdb: %v", err)
	}
}

// buildConfig turns the flags into a filter.Config. A negative score leaves
// the dupe filter off; lastNum 0 takes the config default.
func buildConfig(mc *config.MatchConfig, ratio string, dupeScore, lastNum int) (filter.Config, error) {
	cfg := filter.Config{ProgressEvery: mc.GetFilterProgressEvery()}
	if ratio != "" {
		r, d, err := filter.ParseRatio(ratio)
		if err != nil {
			return cfg, err
		}
		cfg.Ratio, cfg.RatioValue, cfg.RatioDelta = true, r, d
	}
	if dupeScore >= 0 {
		cfg.Dupes = true
		cfg.DupeScore = dupeScore
		cfg.LastNum = mc.GetFilterLastNum()
		if lastNum != 0 {
			cfg.LastNum = lastNum
		}
	}
	return cfg, cfg.Validate()
}

// filterFile copies in to out through the filter. A failed copy removes the
// partial output.
func filterFile(cfg filter.Config, in, out string) (filter.Stats, error) {
	f, err := filter.New(cfg)
	if err != nil {
		return filter.Stats{}, err
	}

	src, err := tiledb.Open(in)
	if err != nil {
		return filter.Stats{}, err
	}
	defer src.Close()

	total := 0
	if !src.Compressed() {
		total, _ = tiledb.CountRecords(in)
	}

	dst, err := tiledb.Create(out)
	if err != nil {
		return filter.Stats{}, err
	}

	stats, err := f.Copy(src, dst, total)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return stats, err
	}
	return stats, nil
}
