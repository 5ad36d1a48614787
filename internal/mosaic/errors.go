package mosaic

import (
	"errors"
	"fmt"

	"github.com/banshee-data/mosaic/internal/tile"
)

var (
	// ErrIntegrityViolation marks a library record whose magic is wrong.
	ErrIntegrityViolation = errors.New("tile integrity violation")

	// ErrResolutionExhausted marks a cell whose ranked list held no
	// candidate under the reuse cap.
	ErrResolutionExhausted = errors.New("resolution exhausted")
)

// IntegrityError reports a library record with a bad magic.
type IntegrityError struct {
	Record int   // zero-based record index in the library stream
	Magic  int32 // value found in place of tile.MAGIC
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v: record %d has magic 0x%08X, want 0x%08X",
		ErrIntegrityViolation, e.Record, uint32(e.Magic), uint32(tile.MAGIC))
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityViolation
}

// ExhaustedError reports the first cell that could not be assigned.
type ExhaustedError struct {
	Cell   int   // cell index
	Pos    int32 // cell position in the grid
	Ranked int   // candidates held for the cell
	Dups   int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v: cell %d (pos %d) has no eligible candidate among %d ranked (dups=%d)",
		ErrResolutionExhausted, e.Cell, e.Pos, e.Ranked, e.Dups)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrResolutionExhausted
}
