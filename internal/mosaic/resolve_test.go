package mosaic

import (
	"context"
	"errors"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mosaic/internal/tile"
)

func matchAndResolve(t *testing.T, cells []tile.Cell, opts Options, tiles ...tile.Tile) ([]Assignment, error) {
	t.Helper()
	m, err := NewMatcher(cells, opts)
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background(), &sliceSource{tiles: tiles}))
	return Resolve(cells, m.Store())
}

func tileIDs(out []Assignment) []int32 {
	ids := make([]int32, len(out))
	for i, a := range out {
		ids[i] = a.TileID
	}
	return ids
}

func TestResolve_DistinctBestTiles(t *testing.T) {
	// A scores (5, 9) and B scores (9, 5) against the two cells.
	cells := []tile.Cell{lumaCell(0, 0), lumaCell(1, 14)}
	out, err := matchAndResolve(t, cells, lumaOptions(1, 1, 1), lumaTile(1, 5), lumaTile(2, 9))
	require.NoError(t, err)

	assert.Equal(t, []int32{1, 2}, tileIDs(out))
	assert.Equal(t, 5, out[0].Score)
	assert.Equal(t, 5, out[1].Score)
	assert.Equal(t, 0, out[1].Rank)
}

func TestResolve_SingleTileExhausts(t *testing.T) {
	cells := []tile.Cell{lumaCell(0, 0), lumaCell(1, 0)}
	before := promtest.ToFloat64(resolveExhausted)

	out, err := matchAndResolve(t, cells, lumaOptions(1, 1, 1), lumaTile(1, 3))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, ErrResolutionExhausted))

	var ee *ExhaustedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.Cell)
	assert.Equal(t, int32(1), ee.Pos)
	assert.Equal(t, 1, ee.Ranked)
	assert.Equal(t, 1, ee.Dups)
	assert.Equal(t, before+1, promtest.ToFloat64(resolveExhausted))
}

func TestResolve_MirroredWinCommitsPositiveID(t *testing.T) {
	opts := lumaOptions(2, 1, 1)
	opts.Mirror = true
	cells := []tile.Cell{lumaCell(0, 0, 100), lumaCell(1, 100, 0)}

	// Tile 7 matches cell 1 as stored and cell 0 only when mirrored; tile 8
	// is a poor match for both.
	out, err := matchAndResolve(t, cells, opts, lumaTile(7, 100, 0), lumaTile(8, 50, 50))
	require.NoError(t, err)

	assert.Equal(t, int32(7), out[0].TileID)
	assert.Equal(t, tile.Mirrored, out[0].Orientation)
	assert.Equal(t, 0, out[0].Score)

	// Both orientations share one cap, so cell 1 falls back to tile 8.
	assert.Equal(t, int32(8), out[1].TileID)
	assert.Equal(t, 1, out[1].Rank)
	for _, a := range out {
		assert.Positive(t, a.TileID)
	}
}

func TestResolve_FastPathTakesBest(t *testing.T) {
	cells, tiles := randomGrid(11, 9, 30)
	opts := Options{Layout: tile.Layout{XBlocks: 4, YBlocks: 4}, Weights: Weights{Luma: 1, Chroma: 1}, Dups: len(cells)}

	out, err := matchAndResolve(t, cells, opts, tiles...)
	require.NoError(t, err)

	for i := range cells {
		bestScore, bestID := -1, int32(0)
		for _, tl := range tiles {
			s := Score(&cells[i], &tl, opts.Weights, opts.Layout.NumBlocks())
			if bestScore < 0 || s < bestScore {
				bestScore, bestID = s, tl.Identity.ID
			}
		}
		assert.Equal(t, bestID, out[i].TileID, "cell %d", i)
		assert.Equal(t, bestScore, out[i].Score, "cell %d", i)
		assert.Equal(t, cells[i].Pos, out[i].Pos)
		assert.Equal(t, cells[i].YDelta, out[i].YDelta)
	}
}

func TestResolve_FastPathEmptyLibrary(t *testing.T) {
	cells := []tile.Cell{lumaCell(0, 1)}
	_, err := matchAndResolve(t, cells, lumaOptions(1, 1, 1))
	assert.True(t, errors.Is(err, ErrResolutionExhausted))
}

func TestResolve_RespectsReuseCap(t *testing.T) {
	for _, dups := range []int{1, 2, 3, 5} {
		cells, tiles := randomGrid(int64(100+dups), 40, 60)
		opts := Options{
			Layout:  tile.Layout{XBlocks: 8, YBlocks: 8},
			Weights: Weights{Luma: 1, Chroma: 1, Edge: 1},
			Dups:    dups,
			Mirror:  true,
		}
		out, err := matchAndResolve(t, cells, opts, tiles...)
		require.NoError(t, err, "dups=%d", dups)
		require.Len(t, out, len(cells))

		uses := map[int32]int{}
		for i, a := range out {
			assert.Equal(t, i, a.Cell)
			uses[a.TileID]++
		}
		for id, n := range uses {
			assert.LessOrEqual(t, n, dups, "dups=%d tile %d used %d times", dups, id, n)
		}
	}
}

func TestResolve_StreamWindowCanExhaust(t *testing.T) {
	// Every cell prefers tile 1, then tile 2. With the stream window capped at
	// dups=1 a cell only remembers tile 1.
	cells := []tile.Cell{lumaCell(0, 0), lumaCell(1, 0), lumaCell(2, 0)}
	opts := lumaOptions(1, 1, 1)
	opts.Policy = WindowByStream

	_, err := matchAndResolve(t, cells, opts, lumaTile(1, 0), lumaTile(2, 1), lumaTile(3, 2))
	assert.True(t, errors.Is(err, ErrResolutionExhausted))

	// The rank window keeps enough alternates for the same input.
	opts.Policy = WindowByRank
	out, err := matchAndResolve(t, cells, opts, lumaTile(1, 0), lumaTile(2, 1), lumaTile(3, 2))
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, tileIDs(out))
}

func TestResolve_Deterministic(t *testing.T) {
	cells, tiles := randomGrid(5, 25, 50)
	opts := Options{Layout: tile.DefaultLayout(), Weights: Weights{Luma: 1, Chroma: 2}, Dups: 2, Mirror: true}

	first, err := matchAndResolve(t, cells, opts, tiles...)
	require.NoError(t, err)
	second, err := matchAndResolve(t, cells, opts, tiles...)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_CellCountMismatch(t *testing.T) {
	s, err := NewRankStore(3, 1, WindowByRank, 0)
	require.NoError(t, err)
	_, err = Resolve([]tile.Cell{lumaCell(0)}, s)
	assert.Error(t, err)
}

func TestUsageCounter(t *testing.T) {
	u := NewUsageCounter()
	assert.Equal(t, 0, u.Count(5))
	assert.True(t, u.TryUse(5, 2))
	assert.True(t, u.TryUse(5, 2))
	assert.False(t, u.TryUse(5, 2))
	assert.Equal(t, 2, u.Count(5))
	assert.True(t, u.TryUse(6, 2))
	assert.Equal(t, 2, u.Len())
}
