// Package filter drops unwanted tiles from a tile database before matching:
// tiles whose aspect ratio is out of range and near-duplicates of recently
// seen tiles.
package filter

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/mosaic/internal/monitoring"
	"github.com/banshee-data/mosaic/internal/mosaic"
	"github.com/banshee-data/mosaic/internal/tile"
)

// Dupe window limits.
const (
	DEFAULT_LAST_NUM = 100
	MAX_LAST_NUM     = 999
)

// dupeWeights scores near-duplicates on luma and chroma with raw luma.
var dupeWeights = mosaic.Weights{Luma: 1, Chroma: 1}

// Config selects the active filters. A zero Config copies every tile.
type Config struct {
	Ratio      bool
	RatioValue float64 // wanted width/height
	RatioDelta float64 // accepted deviation either side

	Dupes     bool
	DupeScore int // tiles scoring at or below this against a recent tile are dropped
	LastNum   int // number of recent tiles compared, 1..MAX_LAST_NUM

	// ProgressEvery logs a progress line every this many records; 0 disables.
	ProgressEvery int
}

// Validate checks the filter parameters.
func (c Config) Validate() error {
	if c.Ratio && (c.RatioValue <= 0 || c.RatioDelta < 0) {
		return fmt.Errorf("invalid ratio %g with delta %g", c.RatioValue, c.RatioDelta)
	}
	if c.Dupes {
		if c.DupeScore < 0 {
			return fmt.Errorf("invalid dupe score %d", c.DupeScore)
		}
		if c.LastNum < 1 || c.LastNum > MAX_LAST_NUM {
			return fmt.Errorf("last num of tiles must be in [1, %d], got %d", MAX_LAST_NUM, c.LastNum)
		}
	}
	return nil
}

// ParseRatio parses "ratio+delta" or "ratio-delta" as accepted by the -r
// flag, for example "1.5+0.05". The sign of the delta is ignored.
func ParseRatio(s string) (ratio, delta float64, err error) {
	s = strings.TrimSpace(s)
	split := -1
	for i := 1; i < len(s); i++ {
		if (s[i] == '+' || s[i] == '-') && s[i-1] != 'e' && s[i-1] != 'E' {
			split = i
			break
		}
	}
	if split < 0 {
		return 0, 0, fmt.Errorf("invalid ratio + delta %q", s)
	}
	if ratio, err = strconv.ParseFloat(s[:split], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid ratio %q: %w", s[:split], err)
	}
	if delta, err = strconv.ParseFloat(s[split:], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid delta %q: %w", s[split:], err)
	}
	return ratio, math.Abs(delta), nil
}

// Stats counts records by outcome. A tile failing both filters counts once
// in each rejection column.
type Stats struct {
	In            int
	Out           int
	RatioRejected int
	DupeRejected  int
}

// Sink receives the tiles that pass.
type Sink interface {
	Write(t *tile.Tile) error
}

// Filter applies Config to a stream of tiles.
type Filter struct {
	cfg    Config
	recent []tile.Cell // ring of recently seen tiles, scored as cells
	next   int
	stats  Stats
}

// New returns a Filter for cfg.
func New(cfg Config) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Filter{cfg: cfg}
	if cfg.Dupes {
		f.recent = make([]tile.Cell, 0, cfg.LastNum)
	}
	return f, nil
}

// Keep reports whether t passes the filters. Every tile enters the dupe
// window whether or not it is kept. A bad magic is an integrity violation.
func (f *Filter) Keep(t *tile.Tile) (bool, error) {
	if t.Magic != tile.MAGIC {
		return false, &mosaic.IntegrityError{Record: f.stats.In, Magic: t.Magic}
	}
	f.stats.In++

	keep := true
	if f.cfg.Ratio {
		r := t.AspectRatio()
		if r < f.cfg.RatioValue-f.cfg.RatioDelta || r > f.cfg.RatioValue+f.cfg.RatioDelta {
			f.stats.RatioRejected++
			keep = false
		}
	}
	if f.cfg.Dupes {
		if best, ok := f.minRecentScore(t); ok && best <= f.cfg.DupeScore {
			f.stats.DupeRejected++
			keep = false
		}
		f.remember(t)
	}

	if keep {
		f.stats.Out++
	}
	return keep, nil
}

// minRecentScore compares t with every tile in the window. The earlier tile
// plays the cell so the brightness correction runs from it to t.
func (f *Filter) minRecentScore(t *tile.Tile) (int, bool) {
	if len(f.recent) == 0 {
		return 0, false
	}
	best := math.MaxInt
	for i := range f.recent {
		if s := mosaic.Score(&f.recent[i], t, dupeWeights, tile.MAX_BLOCKS); s < best {
			best = s
		}
	}
	return best, true
}

func (f *Filter) remember(t *tile.Tile) {
	c := tile.Cell{Pos: t.Identity.ID, YDelta: t.YDelta, Blocks: t.Blocks}
	if len(f.recent) < f.cfg.LastNum {
		f.recent = append(f.recent, c)
		return
	}
	f.recent[f.next] = c
	f.next = (f.next + 1) % f.cfg.LastNum
}

// Stats returns the counts so far.
func (f *Filter) Stats() Stats {
	return f.stats
}

// Copy streams every tile from src through f into dst. total, when known,
// enables percentages in progress lines.
func (f *Filter) Copy(src mosaic.Source, dst Sink, total int) (Stats, error) {
	for {
		t, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return f.stats, fmt.Errorf("failed to read tile record %d: %w", f.stats.In, err)
		}

		keep, err := f.Keep(&t)
		if err != nil {
			return f.stats, err
		}
		if keep {
			if err := dst.Write(&t); err != nil {
				return f.stats, err
			}
		}

		if f.cfg.ProgressEvery > 0 && f.stats.In%f.cfg.ProgressEvery == 0 {
			if total > 0 {
				monitoring.Logf("[Filter] in: %d (%.1f%%) out: %d", f.stats.In, 100*float64(f.stats.In)/float64(total), f.stats.Out)
			} else {
				monitoring.Logf("[Filter] in: %d out: %d", f.stats.In, f.stats.Out)
			}
		}
	}

	monitoring.Logf("[Filter] tiles copied: %d of %d (ratio rejected %d, dupes rejected %d)",
		f.stats.Out, f.stats.In, f.stats.RatioRejected, f.stats.DupeRejected)
	return f.stats, nil
}
