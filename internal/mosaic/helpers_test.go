package mosaic

import (
	"io"
	"math/rand"

	"github.com/banshee-data/mosaic/internal/tile"
)

// sliceSource replays tiles and then returns err, or io.EOF when err is nil.
type sliceSource struct {
	tiles []tile.Tile
	i     int
	err   error
}

func (s *sliceSource) Next() (tile.Tile, error) {
	if s.i < len(s.tiles) {
		t := s.tiles[s.i]
		s.i++
		return t, nil
	}
	if s.err != nil {
		return tile.Tile{}, s.err
	}
	return tile.Tile{}, io.EOF
}

// lumaCell returns a cell whose leading blocks carry the given luma values.
func lumaCell(pos int32, ys ...uint8) tile.Cell {
	c := tile.Cell{Pos: pos}
	for i, y := range ys {
		c.Blocks[i].Y = y
	}
	return c
}

// lumaTile returns a valid library tile whose leading blocks carry ys.
func lumaTile(id int32, ys ...uint8) tile.Tile {
	t := tile.Tile{Magic: tile.MAGIC, Identity: tile.Identity{ID: id}}
	for i, y := range ys {
		t.Blocks[i].Y = y
	}
	return t
}

func gradientCell(pos int32, seed int) tile.Cell {
	c := tile.Cell{Pos: pos, YDelta: int16(seed % 7)}
	for i := range c.Blocks {
		v := uint8(seed + 5*i)
		c.Blocks[i] = tile.Block{Y: v, U: v / 2, V: 255 - v, E: v / 3}
	}
	return c
}

func gradientTile(id int32, seed int) tile.Tile {
	t := tile.Tile{Magic: tile.MAGIC, Identity: tile.Identity{ID: id}, YDelta: int16(seed % 5)}
	for i := range t.Blocks {
		v := uint8(seed + 3*i)
		t.Blocks[i] = tile.Block{Y: v, U: v / 3, V: 200 - v/2, E: v / 2}
	}
	return t
}

// randomGrid builds n cells and m library tiles with small block values so
// that ties occur.
func randomGrid(seed int64, n, m int) ([]tile.Cell, []tile.Tile) {
	rng := rand.New(rand.NewSource(seed))
	cells := make([]tile.Cell, n)
	for i := range cells {
		cells[i].Pos = int32(i)
		cells[i].YDelta = int16(rng.Intn(21) - 10)
		for b := range cells[i].Blocks {
			cells[i].Blocks[b] = tile.Block{
				Y: uint8(rng.Intn(16)), U: uint8(rng.Intn(16)),
				V: uint8(rng.Intn(16)), E: uint8(rng.Intn(16)),
			}
		}
	}
	tiles := make([]tile.Tile, m)
	for i := range tiles {
		tiles[i] = tile.Tile{Magic: tile.MAGIC, Identity: tile.Identity{ID: int32(i + 1)}, YDelta: int16(rng.Intn(21) - 10)}
		for b := range tiles[i].Blocks {
			tiles[i].Blocks[b] = tile.Block{
				Y: uint8(rng.Intn(16)), U: uint8(rng.Intn(16)),
				V: uint8(rng.Intn(16)), E: uint8(rng.Intn(16)),
			}
		}
	}
	return cells, tiles
}
