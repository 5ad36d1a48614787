package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/mosaic/internal/monitoring"
	"github.com/banshee-data/mosaic/internal/mosaic"
	"github.com/banshee-data/mosaic/internal/tile"
)

// Output file names written by GeneratePlots.
const (
	BEST_SCORE_PLOT   = "best_score_rows.png"
	WINDOW_DEPTH_PLOT = "window_depth.png"
)

// Sample is one snapshot of the ranking store.
type Sample struct {
	Processed int
	// RowBest is the mean rank-0 score of each grid row. Rows with no
	// candidate yet are NaN and skipped when plotting.
	RowBest    []float64
	MeanWindow float64
	MeanRanked float64
}

// Plotter samples the ranking store every Every records and plots how the
// best scores and list depths settle as the library is consumed.
type Plotter struct {
	mu      sync.Mutex
	every   int
	rows    int
	rowOf   []int // cell index -> grid row
	samples []Sample
}

// NewPlotter returns a Plotter for cells laid out xTiles to a row. A cell's
// row is taken from its position, not its index in the input.
func NewPlotter(cells []tile.Cell, xTiles, every int) (*Plotter, error) {
	if xTiles <= 0 {
		return nil, fmt.Errorf("xTiles must be positive, got %d", xTiles)
	}
	if every <= 0 {
		return nil, fmt.Errorf("plot interval must be positive, got %d", every)
	}
	p := &Plotter{every: every, rowOf: make([]int, len(cells))}
	for i, c := range cells {
		row := int(c.Pos) / xTiles
		p.rowOf[i] = row
		if row+1 > p.rows {
			p.rows = row + 1
		}
	}
	return p, nil
}

// OnRecord implements mosaic.Observer.
func (p *Plotter) OnRecord(processed int, store *mosaic.RankStore) {
	if processed%p.every != 0 {
		return
	}
	p.Sample(processed, store)
}

// Sample records the store's current state unconditionally.
func (p *Plotter) Sample(processed int, store *mosaic.RankStore) {
	sums := make([]float64, p.rows)
	counts := make([]int, p.rows)
	var window, ranked int
	for i, row := range p.rowOf {
		window += store.Window(i)
		ranked += store.Len(i)
		if best, ok := store.Best(i); ok {
			sums[row] += float64(best.Score)
			counts[row]++
		}
	}

	s := Sample{Processed: processed, RowBest: make([]float64, p.rows)}
	for r := range sums {
		if counts[r] == 0 {
			s.RowBest[r] = math.NaN()
			continue
		}
		s.RowBest[r] = sums[r] / float64(counts[r])
	}
	if n := len(p.rowOf); n > 0 {
		s.MeanWindow = float64(window) / float64(n)
		s.MeanRanked = float64(ranked) / float64(n)
	}

	p.mu.Lock()
	p.samples = append(p.samples, s)
	p.mu.Unlock()
}

// Samples returns a copy of the recorded samples.
func (p *Plotter) Samples() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sample(nil), p.samples...)
}

// GeneratePlots writes BEST_SCORE_PLOT and WINDOW_DEPTH_PLOT into dir and
// returns the number of files written. No samples means no plots.
func (p *Plotter) GeneratePlots(dir string) (int, error) {
	samples := p.Samples()
	if len(samples) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	pBest := plot.New()
	pBest.Title.Text = "Best score per grid row"
	pBest.X.Label.Text = "Library tiles processed"
	pBest.Y.Label.Text = "Mean rank-0 score"

	colors := generateColors(p.rows)
	for row := 0; row < p.rows; row++ {
		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			if v := s.RowBest[row]; !math.IsNaN(v) {
				pts = append(pts, plotter.XY{X: float64(s.Processed), Y: v})
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return 0, err
		}
		line.Color = colors[row]
		line.Width = vg.Points(1)
		pBest.Add(line)
		// Legends past a dozen rows are unreadable.
		if p.rows <= 12 {
			pBest.Legend.Add(fmt.Sprintf("row %d", row), line)
		}
	}
	pBest.Legend.Top = true
	pBest.Legend.Left = false
	pBest.Legend.XOffs = -10
	pBest.Legend.YOffs = -10

	pDepth := plot.New()
	pDepth.Title.Text = "Ranked list depth"
	pDepth.X.Label.Text = "Library tiles processed"
	pDepth.Y.Label.Text = "Candidates per cell"

	windowPts := make(plotter.XYs, len(samples))
	rankedPts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		windowPts[i] = plotter.XY{X: float64(s.Processed), Y: s.MeanWindow}
		rankedPts[i] = plotter.XY{X: float64(s.Processed), Y: s.MeanRanked}
	}
	windowLine, err := plotter.NewLine(windowPts)
	if err != nil {
		return 0, err
	}
	windowLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	windowLine.Width = vg.Points(1.5)
	rankedLine, err := plotter.NewLine(rankedPts)
	if err != nil {
		return 0, err
	}
	rankedLine.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	rankedLine.Width = vg.Points(1.5)
	pDepth.Add(windowLine, rankedLine)
	pDepth.Legend.Add("mean window", windowLine)
	pDepth.Legend.Add("mean held", rankedLine)
	pDepth.Legend.Top = true
	pDepth.Legend.Left = true

	if err := pBest.Save(14*vg.Inch, 6*vg.Inch, filepath.Join(dir, BEST_SCORE_PLOT)); err != nil {
		return 0, fmt.Errorf("save best score plot: %w", err)
	}
	if err := pDepth.Save(14*vg.Inch, 6*vg.Inch, filepath.Join(dir, WINDOW_DEPTH_PLOT)); err != nil {
		return 1, fmt.Errorf("save window depth plot: %w", err)
	}

	monitoring.Logf("[Plotter] Wrote 2 plots from %d samples to %s", len(samples), dir)
	return 2, nil
}

// generateColors creates a palette of distinct colors, one per row.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
