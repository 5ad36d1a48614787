package mosaic

import (
	"fmt"

	"github.com/banshee-data/mosaic/internal/monitoring"
	"github.com/banshee-data/mosaic/internal/tile"
)

// Assignment is the tile committed to one grid cell.
type Assignment struct {
	Cell   int   // cell index
	Pos    int32 // cell position, copied from the grid
	YDelta int16 // cell brightness offset, copied from the grid
	TileID int32 // absolute library identity
	Score  int
	Rank   int // position of the committed candidate in the cell's list

	// Orientation that produced Score. It never affects TileID.
	Orientation tile.Orientation
}

// UsageCounter counts committed uses per physical tile. Only identities that
// have been used are stored.
type UsageCounter struct {
	counts map[int32]int
}

// NewUsageCounter returns an empty counter.
func NewUsageCounter() *UsageCounter {
	return &UsageCounter{counts: make(map[int32]int)}
}

// Count returns the uses recorded for key.
func (u *UsageCounter) Count(key int32) int {
	return u.counts[key]
}

// TryUse records one more use of key if it has fewer than dups uses.
func (u *UsageCounter) TryUse(key int32, dups int) bool {
	n := u.counts[key]
	if n >= dups {
		return false
	}
	u.counts[key] = n + 1
	return true
}

// Len returns the number of distinct identities used.
func (u *UsageCounter) Len() int {
	return len(u.counts)
}

// Resolve commits one tile per cell in cell order, each cell taking its best
// ranked candidate whose physical tile is still under the reuse cap. Earlier
// cells win contested tiles. On failure no assignments are returned and the
// error is an *ExhaustedError.
func Resolve(cells []tile.Cell, store *RankStore) ([]Assignment, error) {
	if len(cells) != store.Cells() {
		return nil, fmt.Errorf("grid has %d cells but rank store has %d", len(cells), store.Cells())
	}

	dups := store.Dups()
	out := make([]Assignment, len(cells))

	// Every tile may fill every cell: no sharing constraint to enforce.
	if dups == len(cells) {
		for i := range cells {
			best, ok := store.Best(i)
			if !ok {
				return nil, exhausted(cells, store, i)
			}
			out[i] = assign(i, &cells[i], best, 0)
			resolveRank.Observe(0)
		}
		monitoring.Logf("[Resolver] assigned %d cells from best candidates (dups=%d)", len(cells), dups)
		return out, nil
	}

	usage := NewUsageCounter()
	deepest := 0
	for i := range cells {
		committed := false
		for rank, c := range store.Ranked(i) {
			if !usage.TryUse(c.Tile.Key(), dups) {
				continue
			}
			out[i] = assign(i, &cells[i], c, rank)
			resolveRank.Observe(float64(rank))
			if rank > deepest {
				deepest = rank
			}
			if rank > 0 {
				monitoring.Debugf("[Resolver] cell %d (pos %d) took rank %d, tile %d", i, cells[i].Pos, rank, c.Tile.Key())
			}
			committed = true
			break
		}
		if !committed {
			return nil, exhausted(cells, store, i)
		}
	}

	monitoring.Logf("[Resolver] assigned %d cells using %d distinct tiles (dups=%d, deepest rank=%d)",
		len(cells), usage.Len(), dups, deepest)
	return out, nil
}

func assign(i int, cell *tile.Cell, c Candidate, rank int) Assignment {
	return Assignment{
		Cell:        i,
		Pos:         cell.Pos,
		YDelta:      cell.YDelta,
		TileID:      c.Tile.Key(),
		Score:       c.Score,
		Rank:        rank,
		Orientation: c.Tile.Orientation,
	}
}

func exhausted(cells []tile.Cell, store *RankStore, i int) error {
	resolveExhausted.Inc()
	return &ExhaustedError{Cell: i, Pos: cells[i].Pos, Ranked: store.Len(i), Dups: store.Dups()}
}
