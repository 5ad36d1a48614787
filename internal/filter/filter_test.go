package filter

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mosaic/internal/monitoring"
	"github.com/banshee-data/mosaic/internal/mosaic"
	"github.com/banshee-data/mosaic/internal/tile"
)

func init() {
	monitoring.SetLogger(nil)
}

func flatTile(id int32, y uint8, xres, yres int16) tile.Tile {
	t := tile.Tile{Magic: tile.MAGIC, Identity: tile.Identity{ID: id}, XRes: xres, YRes: yres}
	for i := range t.Blocks {
		t.Blocks[i] = tile.Block{Y: y, U: 128, V: 128}
	}
	return t
}

type tileSlice struct {
	tiles []tile.Tile
	i     int
}

func (s *tileSlice) Next() (tile.Tile, error) {
	if s.i >= len(s.tiles) {
		return tile.Tile{}, io.EOF
	}
	s.i++
	return s.tiles[s.i-1], nil
}

type collect struct{ ids []int32 }

func (c *collect) Write(t *tile.Tile) error {
	c.ids = append(c.ids, t.Identity.ID)
	return nil
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in      string
		ratio   float64
		delta   float64
		wantErr bool
	}{
		{"1.5+0.05", 1.5, 0.05, false},
		{"0.75-0.1", 0.75, 0.1, false},
		{" 1.333+0.01 ", 1.333, 0.01, false},
		{"1e0+2e-1", 1, 0.2, false},
		{"1.5", 0, 0, true},
		{"abc+0.1", 0, 0, true},
		{"1.5+x", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, d, err := ParseRatio(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.ratio, r, 1e-9)
			assert.InDelta(t, tt.delta, d, 1e-9)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{Dupes: true, LastNum: DEFAULT_LAST_NUM}.Validate())
	assert.Error(t, Config{Dupes: true, LastNum: 0}.Validate())
	assert.Error(t, Config{Dupes: true, LastNum: MAX_LAST_NUM + 1}.Validate())
	assert.Error(t, Config{Dupes: true, LastNum: 5, DupeScore: -1}.Validate())
	assert.Error(t, Config{Ratio: true, RatioValue: 0}.Validate())
}

func TestFilter_Ratio(t *testing.T) {
	f, err := New(Config{Ratio: true, RatioValue: 1.5, RatioDelta: 0.1})
	require.NoError(t, err)

	src := &tileSlice{tiles: []tile.Tile{
		flatTile(1, 10, 300, 200), // 1.5
		flatTile(2, 10, 200, 300), // 0.67
		flatTile(3, 10, 310, 200), // 1.55
		flatTile(4, 10, 340, 200), // 1.7
	}}
	var out collect
	st, err := f.Copy(src, &out, 0)
	require.NoError(t, err)

	assert.Equal(t, []int32{1, 3}, out.ids)
	assert.Equal(t, Stats{In: 4, Out: 2, RatioRejected: 2}, st)
}

func TestFilter_Dupes(t *testing.T) {
	f, err := New(Config{Dupes: true, DupeScore: 64, LastNum: 2})
	require.NoError(t, err)

	src := &tileSlice{tiles: []tile.Tile{
		flatTile(1, 100, 1, 1),
		flatTile(2, 101, 1, 1), // score 64 against tile 1: dupe
		flatTile(3, 150, 1, 1),
		flatTile(4, 200, 1, 1),
		flatTile(5, 100, 1, 1), // tile 1 has left the window of 2
		flatTile(6, 200, 1, 1), // tile 4 still in the window
	}}
	var out collect
	st, err := f.Copy(src, &out, len(src.tiles))
	require.NoError(t, err)

	assert.Equal(t, []int32{1, 3, 4, 5}, out.ids)
	assert.Equal(t, 2, st.DupeRejected)
	assert.Equal(t, 6, st.In)
	assert.Equal(t, 4, st.Out)
}

func TestFilter_DupeWindowIncludesRejected(t *testing.T) {
	f, err := New(Config{Dupes: true, DupeScore: 0, LastNum: 1})
	require.NoError(t, err)

	for i, want := range []bool{true, false, false} {
		tl := flatTile(int32(i+1), 50, 1, 1)
		keep, err := f.Keep(&tl)
		require.NoError(t, err)
		assert.Equal(t, want, keep, "tile %d", i)
	}
}

func TestFilter_DupeUsesBrightnessOffset(t *testing.T) {
	f, err := New(Config{Dupes: true, DupeScore: 0, LastNum: 10})
	require.NoError(t, err)

	a := flatTile(1, 100, 1, 1)
	a.YDelta = 5
	b := flatTile(2, 105, 1, 1)
	b.YDelta = 0

	keep, err := f.Keep(&a)
	require.NoError(t, err)
	assert.True(t, keep)

	// |100 - 105 + (5 - 0)| = 0 per block
	keep, err = f.Keep(&b)
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestFilter_BadMagic(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)

	bad := flatTile(9, 1, 1, 1)
	bad.Magic = 1
	src := &tileSlice{tiles: []tile.Tile{flatTile(1, 1, 1, 1), bad}}
	var out collect
	_, err = f.Copy(src, &out, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mosaic.ErrIntegrityViolation))

	var ie *mosaic.IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 1, ie.Record)
	assert.Equal(t, []int32{1}, out.ids)
}

func TestFilter_NoFiltersCopiesAll(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	src := &tileSlice{tiles: []tile.Tile{flatTile(1, 1, 1, 1), flatTile(1, 1, 1, 1)}}
	var out collect
	st, err := f.Copy(src, &out, 0)
	require.NoError(t, err)
	assert.Equal(t, Stats{In: 2, Out: 2}, st)
}
