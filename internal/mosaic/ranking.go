package mosaic

import (
	"fmt"
	"strings"

	"github.com/banshee-data/mosaic/internal/tile"
)

// Candidate is one scored library tile for one cell.
type Candidate struct {
	Score int
	Tile  tile.Identity
}

// WindowPolicy decides how many ranked candidates a cell keeps.
type WindowPolicy int

const (
	// WindowByRank keeps i/dups+1 candidates for cell i. Cells are resolved
	// in index order and the i cells before cell i can exhaust at most i/dups
	// identities, so one eligible candidate always remains.
	WindowByRank WindowPolicy = iota

	// WindowByStream shares one window across all cells. It starts at 1 and
	// grows by one every dups processed library tiles, up to dups. It may
	// keep too few alternates for late cells.
	WindowByStream
)

func (p WindowPolicy) String() string {
	switch p {
	case WindowByRank:
		return "rank"
	case WindowByStream:
		return "stream"
	}
	return fmt.Sprintf("WindowPolicy(%d)", int(p))
}

// ParseWindowPolicy parses "rank" or "stream".
func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rank", "":
		return WindowByRank, nil
	case "stream":
		return WindowByStream, nil
	}
	return 0, fmt.Errorf("unknown window policy %q (want rank or stream)", s)
}

// RankStore holds an ascending list of the best candidates seen so far for
// every cell, plus the count of library tiles processed.
//
// Inserts into different cells may run concurrently. Advance must not run
// concurrently with Insert.
type RankStore struct {
	lists     [][]Candidate
	dups      int
	policy    WindowPolicy
	margin    int
	processed int
}

// NewRankStore creates empty lists for cells grid cells. margin widens every
// window by a fixed number of extra slots.
func NewRankStore(cells, dups int, policy WindowPolicy, margin int) (*RankStore, error) {
	if cells <= 0 {
		return nil, fmt.Errorf("rank store needs at least one cell, got %d", cells)
	}
	if dups <= 0 || dups > cells {
		return nil, fmt.Errorf("dups must be in [1, %d], got %d", cells, dups)
	}
	if margin < 0 {
		return nil, fmt.Errorf("window margin must be non-negative, got %d", margin)
	}
	if policy != WindowByRank && policy != WindowByStream {
		return nil, fmt.Errorf("unknown window policy %d", int(policy))
	}
	return &RankStore{
		lists:  make([][]Candidate, cells),
		dups:   dups,
		policy: policy,
		margin: margin,
	}, nil
}

// Window returns how many candidates cell may currently hold.
func (s *RankStore) Window(cell int) int {
	if s.policy == WindowByStream {
		w := 1 + s.processed/s.dups
		if w > s.dups {
			w = s.dups
		}
		return w + s.margin
	}
	return cell/s.dups + 1 + s.margin
}

// Insert offers c to cell's list and reports whether it was kept. A candidate
// that does not beat the worst entry of a full window is rejected without
// touching the list. Otherwise it is shifted into place; equal scores keep
// the earlier candidate first.
func (s *RankStore) Insert(cell int, c Candidate) bool {
	l := s.lists[cell]
	w := s.Window(cell)

	var pos int
	if len(l) >= w {
		if c.Score >= l[w-1].Score {
			return false
		}
		l = l[:w]
		pos = w - 1
	} else {
		l = append(l, c)
		pos = len(l) - 1
	}

	for pos > 0 && l[pos-1].Score > c.Score {
		l[pos] = l[pos-1]
		pos--
	}
	l[pos] = c
	s.lists[cell] = l
	return true
}

// Advance records that one more library tile has been processed.
func (s *RankStore) Advance() {
	s.processed++
}

// Ranked returns cell's candidates, best first. The slice must not be
// modified.
func (s *RankStore) Ranked(cell int) []Candidate {
	return s.lists[cell]
}

// Best returns cell's best candidate, or false when the list is empty.
func (s *RankStore) Best(cell int) (Candidate, bool) {
	if len(s.lists[cell]) == 0 {
		return Candidate{}, false
	}
	return s.lists[cell][0], true
}

// Len returns the number of candidates held for cell.
func (s *RankStore) Len(cell int) int { return len(s.lists[cell]) }

// Cells returns the number of grid cells.
func (s *RankStore) Cells() int { return len(s.lists) }

// Dups returns the reuse cap.
func (s *RankStore) Dups() int { return s.dups }

// Policy returns the window policy.
func (s *RankStore) Policy() WindowPolicy { return s.policy }

// Processed returns the number of library tiles processed.
func (s *RankStore) Processed() int { return s.processed }
