package mosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mosaic/internal/tile"
)

func cand(score int, id int32) Candidate {
	return Candidate{Score: score, Tile: tile.Identity{ID: id}}
}

func scores(l []Candidate) []int {
	out := make([]int, len(l))
	for i, c := range l {
		out[i] = c.Score
	}
	return out
}

func TestNewRankStore_Validation(t *testing.T) {
	tests := []struct {
		name   string
		cells  int
		dups   int
		policy WindowPolicy
		margin int
	}{
		{"no cells", 0, 1, WindowByRank, 0},
		{"zero dups", 4, 0, WindowByRank, 0},
		{"dups above cells", 4, 5, WindowByRank, 0},
		{"negative margin", 4, 2, WindowByRank, -1},
		{"bad policy", 4, 2, WindowPolicy(9), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRankStore(tt.cells, tt.dups, tt.policy, tt.margin)
			assert.Error(t, err)
		})
	}
}

func TestWindowByRank(t *testing.T) {
	s, err := NewRankStore(10, 3, WindowByRank, 0)
	require.NoError(t, err)

	want := []int{1, 1, 1, 2, 2, 2, 3, 3, 3, 4}
	for i, w := range want {
		assert.Equal(t, w, s.Window(i), "cell %d", i)
	}

	// The rank window does not depend on how many tiles were seen.
	for i := 0; i < 20; i++ {
		s.Advance()
	}
	assert.Equal(t, 4, s.Window(9))

	m, err := NewRankStore(10, 3, WindowByRank, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Window(0))
	assert.Equal(t, 6, m.Window(9))
}

func TestWindowByStream(t *testing.T) {
	s, err := NewRankStore(6, 2, WindowByStream, 0)
	require.NoError(t, err)

	// window = 1 + processed/dups, capped at dups
	want := []int{1, 1, 2, 2, 2, 2}
	for processed, w := range want {
		for cell := 0; cell < s.Cells(); cell++ {
			assert.Equal(t, w, s.Window(cell), "processed=%d cell=%d", processed, cell)
		}
		s.Advance()
	}
	assert.Equal(t, 6, s.Processed())

	m, err := NewRankStore(6, 2, WindowByStream, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Window(5))
}

func TestInsert_KeepsAscendingOrder(t *testing.T) {
	// cell 0 with margin 4 has a window of 5
	s, err := NewRankStore(1, 1, WindowByRank, 4)
	require.NoError(t, err)

	for i, sc := range []int{50, 10, 40, 20, 30} {
		assert.True(t, s.Insert(0, cand(sc, int32(i+1))))
		assert.IsNonDecreasing(t, scores(s.Ranked(0)))
	}
	assert.Equal(t, []int{10, 20, 30, 40, 50}, scores(s.Ranked(0)))

	// A better candidate displaces the worst entry.
	assert.True(t, s.Insert(0, cand(15, 6)))
	assert.Equal(t, []int{10, 15, 20, 30, 40}, scores(s.Ranked(0)))
	assert.Equal(t, 5, s.Len(0))

	best, ok := s.Best(0)
	require.True(t, ok)
	assert.Equal(t, cand(10, 2), best)
}

func TestInsert_RejectsAtBoundary(t *testing.T) {
	s, err := NewRankStore(1, 1, WindowByRank, 1)
	require.NoError(t, err)

	require.True(t, s.Insert(0, cand(5, 1)))
	require.True(t, s.Insert(0, cand(8, 2)))
	before := append([]Candidate(nil), s.Ranked(0)...)

	// Equal to the worst tracked score: rejected.
	assert.False(t, s.Insert(0, cand(8, 3)))
	// Worse: rejected.
	assert.False(t, s.Insert(0, cand(100, 4)))
	assert.Equal(t, before, s.Ranked(0))
}

func TestInsert_TiesKeepFirstSeen(t *testing.T) {
	s, err := NewRankStore(1, 1, WindowByRank, 3)
	require.NoError(t, err)

	s.Insert(0, cand(7, 1))
	s.Insert(0, cand(7, 2))
	s.Insert(0, cand(3, 3))
	s.Insert(0, cand(7, 4))

	got := s.Ranked(0)
	require.Len(t, got, 4)
	assert.Equal(t, []int32{3, 1, 2, 4}, []int32{got[0].Tile.ID, got[1].Tile.ID, got[2].Tile.ID, got[3].Tile.ID})
}

func TestInsert_WindowOfOne(t *testing.T) {
	s, err := NewRankStore(2, 2, WindowByRank, 0)
	require.NoError(t, err)

	assert.True(t, s.Insert(1, cand(9, 1)))
	assert.True(t, s.Insert(1, cand(4, 2)))
	assert.False(t, s.Insert(1, cand(4, 3)))
	assert.Equal(t, []Candidate{cand(4, 2)}, s.Ranked(1))

	_, ok := s.Best(0)
	assert.False(t, ok)
}

func TestInsert_StreamWindowGrows(t *testing.T) {
	s, err := NewRankStore(2, 2, WindowByStream, 0)
	require.NoError(t, err)

	s.Insert(0, cand(10, 1))
	s.Advance()
	assert.False(t, s.Insert(0, cand(12, 2)), "window still 1 after one tile")
	s.Advance()
	assert.True(t, s.Insert(0, cand(12, 3)), "window grows to 2 after dups tiles")
	assert.Equal(t, []int{10, 12}, scores(s.Ranked(0)))
}

func TestParseWindowPolicy(t *testing.T) {
	p, err := ParseWindowPolicy("rank")
	require.NoError(t, err)
	assert.Equal(t, WindowByRank, p)

	p, err = ParseWindowPolicy(" Stream ")
	require.NoError(t, err)
	assert.Equal(t, WindowByStream, p)

	p, err = ParseWindowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, WindowByRank, p)

	_, err = ParseWindowPolicy("all")
	assert.Error(t, err)

	assert.Equal(t, "stream", WindowByStream.String())
}
