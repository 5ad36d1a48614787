package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/mosaic/internal/csvio"
	"github.com/banshee-data/mosaic/internal/mosaic"
	"github.com/banshee-data/mosaic/internal/tile"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteHeatmap renders an HTML page for one resolved grid: the committed
// score of every cell as a coloured scatter laid out like the mosaic, and
// a bar chart of how deep into its ranked list each cell had to go.
func WriteHeatmap(w io.Writer, h csvio.Header, out []mosaic.Assignment) error {
	if h.XTiles <= 0 || h.YTiles <= 0 {
		return fmt.Errorf("invalid grid %dx%d", h.XTiles, h.YTiles)
	}

	page := components.NewPage()
	page.PageTitle = "Mosaic assignment"
	page.AddCharts(scoreScatter(h, out), rankBar(out))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

func scoreScatter(h csvio.Header, out []mosaic.Assignment) *charts.Scatter {
	maxScore := 0
	mirrored := 0
	points := make([]opts.ScatterData, 0, len(out))
	for _, a := range out {
		x := int(a.Pos) % h.XTiles
		// Row 0 is the top of the mosaic.
		y := h.YTiles - 1 - int(a.Pos)/h.XTiles
		points = append(points, opts.ScatterData{
			Value: []interface{}{x, y, a.Score},
			Name:  fmt.Sprintf("pos %d: tile %d rank %d", a.Pos, a.TileID, a.Rank),
		})
		if a.Score > maxScore {
			maxScore = a.Score
		}
		if a.Orientation == tile.Mirrored {
			mirrored++
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Mosaic Scores", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Committed score per cell", Subtitle: fmt.Sprintf("grid=%dx%d dups=%d mirrored=%d", h.XTiles, h.YTiles, h.Dups, mirrored)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: h.XTiles, Name: "X tile", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: h.YTiles, Name: "Y tile", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxScore),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("score", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: symbolSize(h)}))
	return scatter
}

// symbolSize scales markers so a grid roughly fills the 900px chart.
func symbolSize(h csvio.Header) int {
	side := h.XTiles
	if h.YTiles > side {
		side = h.YTiles
	}
	size := 700 / side
	if size < 2 {
		size = 2
	}
	if size > 40 {
		size = 40
	}
	return size
}

// RankHistogram counts assignments by committed rank; index i holds the
// number of cells that took their i-th candidate.
func RankHistogram(out []mosaic.Assignment) []int {
	var hist []int
	for _, a := range out {
		for len(hist) <= a.Rank {
			hist = append(hist, 0)
		}
		hist[a.Rank]++
	}
	return hist
}

func rankBar(out []mosaic.Assignment) *charts.Bar {
	hist := RankHistogram(out)
	x := make([]string, len(hist))
	y := make([]opts.BarData, len(hist))
	for i, n := range hist {
		x[i] = strconv.Itoa(i)
		y[i] = opts.BarData{Value: n}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Committed rank depth", Subtitle: fmt.Sprintf("cells=%d", len(out))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("cells", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
