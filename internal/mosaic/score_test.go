package mosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/mosaic/internal/tile"
)

func TestScore_LumaDeltaIsDirectional(t *testing.T) {
	c := tile.Cell{YDelta: 10}
	c.Blocks[0] = tile.Block{Y: 50}
	lib := tile.Tile{YDelta: 4}
	lib.Blocks[0] = tile.Block{Y: 60}

	// |50 - 60 + (10 - 4)|
	assert.Equal(t, 4, Score(&c, &lib, Weights{Luma: 1}, 1))
	assert.Equal(t, 10, Score(&c, &lib, Weights{Luma: 1, NormalizedLuma: true}, 1))

	// Swapping the offsets changes the sign of the correction.
	c.YDelta, lib.YDelta = 4, 10
	assert.Equal(t, 16, Score(&c, &lib, Weights{Luma: 1}, 1))
}

func TestScore_ChromaTruncates(t *testing.T) {
	c := tile.Cell{}
	lib := tile.Tile{}
	c.Blocks[0] = tile.Block{U: 10, V: 20}
	lib.Blocks[0] = tile.Block{U: 13, V: 20}
	c.Blocks[1] = tile.Block{U: 10, V: 20}
	lib.Blocks[1] = tile.Block{U: 9, V: 20}

	// (3>>1) + (1>>1) = 1 + 0
	assert.Equal(t, 1, Score(&c, &lib, Weights{Chroma: 1}, 2))
	assert.Equal(t, 3, Score(&c, &lib, Weights{Chroma: 3}, 2))
}

func TestScore_EdgeOnlyWhenWeighted(t *testing.T) {
	c := tile.Cell{}
	lib := tile.Tile{}
	c.Blocks[0] = tile.Block{Y: 1, E: 200}
	lib.Blocks[0] = tile.Block{Y: 1, E: 50}

	assert.Equal(t, 0, Score(&c, &lib, Weights{Luma: 1, Chroma: 1}, 1))
	assert.Equal(t, 300, Score(&c, &lib, Weights{Luma: 1, Chroma: 1, Edge: 2}, 1))
}

func TestScore_WeightedSumOverBlocks(t *testing.T) {
	var c tile.Cell
	var lib tile.Tile
	for i := 0; i < 4; i++ {
		c.Blocks[i] = tile.Block{Y: 100, U: 100, V: 100, E: 100}
		lib.Blocks[i] = tile.Block{Y: 90, U: 104, V: 96, E: 101}
	}
	w := Weights{Luma: 2, Chroma: 3, Edge: 5}

	// per block: luma 10, chroma (4+4)>>1 = 4, edge 1
	assert.Equal(t, 4*(2*10+3*4+5*1), Score(&c, &lib, w, 4))
	// blocks beyond n are ignored
	assert.Equal(t, 2*(2*10+3*4+5*1), Score(&c, &lib, w, 2))
}

func TestScore_Deterministic(t *testing.T) {
	l := tile.DefaultLayout()
	c := gradientCell(3, 17)
	lib := gradientTile(9, 40)
	w := Weights{Luma: 1, Chroma: 2, Edge: 1}

	first := Score(&c, &lib, w, l.NumBlocks())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Score(&c, &lib, w, l.NumBlocks()))
	}
	assert.GreaterOrEqual(t, first, 0)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, Weights{Luma: 1, Chroma: 1}.Validate())
	assert.NoError(t, Weights{}.Validate())
	assert.Error(t, Weights{Luma: -1}.Validate())
	assert.Error(t, Weights{Edge: -3}.Validate())
}
