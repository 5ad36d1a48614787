package mosaic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// recordsProcessed counts library records scored against the grid
	recordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mosaic",
		Name:      "library_records_processed_total",
		Help:      "Library tile records scored against every grid cell",
	})

	// candidateInserts counts rank store offers by outcome
	candidateInserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mosaic",
		Name:      "candidate_inserts_total",
		Help:      "Candidates offered to the rank store by outcome",
	}, []string{"result"})

	// mirrorWins counts cells where the mirrored orientation scored better
	mirrorWins = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mosaic",
		Name:      "mirror_wins_total",
		Help:      "Cell offers where the mirrored orientation outscored the original",
	})

	// integrityViolations counts records rejected for a bad magic
	integrityViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mosaic",
		Name:      "integrity_violations_total",
		Help:      "Library records rejected for a bad magic",
	})

	// resolveRank tracks which rank each cell was resolved at
	resolveRank = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mosaic",
		Name:      "resolve_rank",
		Help:      "Rank of the committed candidate per cell (0 is best)",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
	})

	// resolveExhausted counts resolutions that ran out of candidates
	resolveExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mosaic",
		Name:      "resolve_exhausted_total",
		Help:      "Resolutions aborted because a cell had no eligible candidate",
	})
)

// Insert outcome labels.
const (
	insertAccepted = "accepted"
	insertRejected = "rejected"
)
