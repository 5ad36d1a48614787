package mosaic

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/mosaic/internal/monitoring"
	"github.com/banshee-data/mosaic/internal/tile"
)

// Source delivers library tiles in a stable order. Next returns io.EOF after
// the last tile.
type Source interface {
	Next() (tile.Tile, error)
}

// Observer is notified after every processed library record. It runs on the
// goroutine that called Run or Process, between records.
type Observer interface {
	OnRecord(processed int, store *RankStore)
}

// Options configures a Matcher.
type Options struct {
	Layout  tile.Layout
	Weights Weights
	Dups    int // reuse cap, 1..len(cells)
	Mirror  bool

	Policy       WindowPolicy
	WindowMargin int

	// Workers partitions cells across goroutines. Values below 2 score on
	// the calling goroutine. Results do not depend on the worker count.
	Workers int

	Observer Observer
}

// Matcher scores a stream of library tiles against a fixed grid.
type Matcher struct {
	cells   []tile.Cell
	opts    Options
	store   *RankStore
	nblocks int
	parts   []partition
	flushed Stats
}

// partition is a contiguous range of cells owned by one worker, with its own
// tallies so workers never share counters.
type partition struct {
	lo, hi     int
	accepted   int
	rejected   int
	mirrorWins int
}

// NewMatcher validates opts against cells and prepares an empty RankStore.
func NewMatcher(cells []tile.Cell, opts Options) (*Matcher, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("grid has no cells")
	}
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[int32]int, len(cells))
	for i, c := range cells {
		if j, ok := seen[c.Pos]; ok {
			return nil, fmt.Errorf("cells %d and %d share position %d", j, i, c.Pos)
		}
		seen[c.Pos] = i
	}

	store, err := NewRankStore(len(cells), opts.Dups, opts.Policy, opts.WindowMargin)
	if err != nil {
		return nil, err
	}

	return &Matcher{
		cells:   cells,
		opts:    opts,
		store:   store,
		nblocks: opts.Layout.NumBlocks(),
		parts:   splitCells(len(cells), opts.Workers),
	}, nil
}

// splitCells divides n cells into at most workers contiguous ranges.
func splitCells(n, workers int) []partition {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	parts := make([]partition, 0, workers)
	size, extra := n/workers, n%workers
	lo := 0
	for w := 0; w < workers; w++ {
		hi := lo + size
		if w < extra {
			hi++
		}
		parts = append(parts, partition{lo: lo, hi: hi})
		lo = hi
	}
	return parts
}

// Store returns the rank store. It is complete once Run returns nil.
func (m *Matcher) Store() *RankStore {
	return m.store
}

// Cells returns the grid cells.
func (m *Matcher) Cells() []tile.Cell {
	return m.cells
}

// Process scores one library record against every cell. A record with a bad
// magic returns an *IntegrityError and leaves the store unchanged.
func (m *Matcher) Process(t tile.Tile) error {
	defer m.flushMetrics()
	return m.process(&t)
}

func (m *Matcher) process(t *tile.Tile) error {
	if t.Magic != tile.MAGIC {
		integrityViolations.Inc()
		return &IntegrityError{Record: m.store.Processed(), Magic: t.Magic}
	}

	var mt *tile.Tile
	if m.opts.Mirror {
		mirrored := tile.Mirror(*t, m.opts.Layout)
		mt = &mirrored
	}

	if len(m.parts) == 1 {
		m.scoreRange(&m.parts[0], t, mt)
	} else {
		var g errgroup.Group
		for i := range m.parts {
			p := &m.parts[i]
			g.Go(func() error {
				m.scoreRange(p, t, mt)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	m.store.Advance()
	recordsProcessed.Inc()
	if m.opts.Observer != nil {
		m.opts.Observer.OnRecord(m.store.Processed(), m.store)
	}
	return nil
}

// scoreRange offers t to every cell of p. With a mirrored variant only the
// better orientation is offered, the original winning ties, so one physical
// tile takes at most one rank slot per cell.
func (m *Matcher) scoreRange(p *partition, t, mt *tile.Tile) {
	w := m.opts.Weights
	var accepted, rejected, wins int
	for i := p.lo; i < p.hi; i++ {
		c := &m.cells[i]
		cand := Candidate{Score: Score(c, t, w, m.nblocks), Tile: t.Identity}
		if mt != nil {
			if s := Score(c, mt, w, m.nblocks); s < cand.Score {
				cand = Candidate{Score: s, Tile: mt.Identity}
				wins++
			}
		}
		if m.store.Insert(i, cand) {
			accepted++
		} else {
			rejected++
		}
	}
	p.accepted += accepted
	p.rejected += rejected
	p.mirrorWins += wins
}

// Run processes every tile from src. Cancellation is checked between
// records. Any error stops the run; the store is then incomplete and must
// not be resolved.
func (m *Matcher) Run(ctx context.Context, src Source) error {
	defer m.flushMetrics()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read library record %d: %w", m.store.Processed(), err)
		}
		if err := m.process(&t); err != nil {
			return err
		}
	}

	monitoring.Logf("[Matcher] processed %d library tiles against %d cells (workers=%d, mirror=%v, window=%s)",
		m.store.Processed(), len(m.cells), len(m.parts), m.opts.Mirror, m.opts.Policy)
	return nil
}

// flushMetrics adds tallies gathered since the previous flush to the
// exported counters.
func (m *Matcher) flushMetrics() {
	s := m.Stats()
	candidateInserts.WithLabelValues(insertAccepted).Add(float64(s.Accepted - m.flushed.Accepted))
	candidateInserts.WithLabelValues(insertRejected).Add(float64(s.Rejected - m.flushed.Rejected))
	mirrorWins.Add(float64(s.MirrorWins - m.flushed.MirrorWins))
	m.flushed = s
}

// Stats summarises rank store offers.
type Stats struct {
	Accepted   int
	Rejected   int
	MirrorWins int
}

// Stats returns offer outcomes accumulated over the matcher's lifetime.
func (m *Matcher) Stats() Stats {
	var s Stats
	for _, p := range m.parts {
		s.Accepted += p.accepted
		s.Rejected += p.rejected
		s.MirrorWins += p.mirrorWins
	}
	return s
}
