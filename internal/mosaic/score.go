package mosaic

import (
	"fmt"

	"github.com/banshee-data/mosaic/internal/tile"
)

// Weights configures the distance score.
type Weights struct {
	Luma   int
	Chroma int
	Edge   int

	// NormalizedLuma disables the per-tile brightness correction. Set it when
	// both sides carry normalised luma.
	NormalizedLuma bool
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	if w.Luma < 0 || w.Chroma < 0 || w.Edge < 0 {
		return fmt.Errorf("weights must be non-negative, got luma=%d chroma=%d edge=%d", w.Luma, w.Chroma, w.Edge)
	}
	return nil
}

// Score returns the dissimilarity between a grid cell and a library tile over
// the first n blocks. Lower is more similar.
//
// Without normalised luma the brightness offset (cell minus tile) is added to
// every luma difference. Chroma contributes half the summed U and V
// differences, truncated per block.
func Score(c *tile.Cell, t *tile.Tile, w Weights, n int) int {
	d := 0
	if !w.NormalizedLuma {
		d = int(c.YDelta) - int(t.YDelta)
	}

	var luma, chroma, edge int
	for i := 0; i < n; i++ {
		cb, tb := &c.Blocks[i], &t.Blocks[i]
		luma += abs(int(cb.Y) - int(tb.Y) + d)
		chroma += (abs(int(cb.U)-int(tb.U)) + abs(int(cb.V)-int(tb.V))) >> 1
	}
	if w.Edge != 0 {
		for i := 0; i < n; i++ {
			edge += abs(int(c.Blocks[i].E) - int(t.Blocks[i].E))
		}
	}
	return w.Luma*luma + w.Chroma*chroma + w.Edge*edge
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
