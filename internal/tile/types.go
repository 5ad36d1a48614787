package tile

import "fmt"

// Tile layout constants. The on-disk record always carries MAX_BLOCKS blocks;
// a grid may use fewer (XBlocks*YBlocks), in which case only the leading
// blocks take part in scoring.
const (
	MAX_BLOCKS       = 8 * 8      // blocks stored per tile record
	DEFAULT_X_BLOCKS = 8          // blocks across a tile
	DEFAULT_Y_BLOCKS = 8          // blocks down a tile
	MAGIC            = 0x454C4954 // ASCII 'TILE' in little-endian byte order
	MAX_Y_DELTA      = 255        // brightness offsets lie in [-255, +255]
)

// Block holds the summary features of one block of a tile.
type Block struct {
	Y uint8 // luma
	U uint8 // chroma (blue difference)
	V uint8 // chroma (red difference)
	E uint8 // edge intensity
}

// Layout describes how blocks are arranged inside a tile.
type Layout struct {
	XBlocks int
	YBlocks int
}

// DefaultLayout returns the 8x8 layout used by the tile database.
func DefaultLayout() Layout {
	return Layout{XBlocks: DEFAULT_X_BLOCKS, YBlocks: DEFAULT_Y_BLOCKS}
}

// NumBlocks returns the number of blocks compared per tile.
func (l Layout) NumBlocks() int {
	return l.XBlocks * l.YBlocks
}

// Validate checks the layout fits inside a tile record.
func (l Layout) Validate() error {
	if l.XBlocks <= 0 || l.YBlocks <= 0 {
		return fmt.Errorf("block layout must be positive, got %dx%d", l.XBlocks, l.YBlocks)
	}
	if l.NumBlocks() > MAX_BLOCKS {
		return fmt.Errorf("block layout %dx%d exceeds %d blocks per tile", l.XBlocks, l.YBlocks, MAX_BLOCKS)
	}
	return nil
}

// Orientation records whether a library tile is evaluated as stored or
// mirrored left to right.
type Orientation uint8

const (
	Original Orientation = iota
	Mirrored
)

func (o Orientation) String() string {
	switch o {
	case Original:
		return "original"
	case Mirrored:
		return "mirrored"
	}
	return fmt.Sprintf("orientation(%d)", uint8(o))
}

// Identity names one library tile in one orientation. ID is the positive
// identity delivered by the tile database.
type Identity struct {
	ID          int32
	Orientation Orientation
}

// Key returns the identity shared by both orientations of a physical tile.
func (id Identity) Key() int32 {
	if id.ID < 0 {
		return -id.ID
	}
	return id.ID
}

// Signed returns the legacy signed form where a negative value marks the
// mirrored orientation.
func (id Identity) Signed() int32 {
	if id.Orientation == Mirrored {
		return -id.Key()
	}
	return id.Key()
}

// FromSigned parses the legacy signed form.
func FromSigned(v int32) Identity {
	if v < 0 {
		return Identity{ID: -v, Orientation: Mirrored}
	}
	return Identity{ID: v, Orientation: Original}
}

func (id Identity) String() string {
	if id.Orientation == Mirrored {
		return fmt.Sprintf("%d(m)", id.Key())
	}
	return fmt.Sprintf("%d", id.Key())
}

// Tile is one record read from the tile library.
type Tile struct {
	Magic    int32 // must equal MAGIC
	Identity Identity
	YDelta   int16 // brightness offset removed when luma was normalised
	XRes     int16 // width of the source image
	YRes     int16 // height of the source image
	Blocks   [MAX_BLOCKS]Block
}

// AspectRatio returns the source image width over height, or 0 when the
// height is unknown.
func (t *Tile) AspectRatio() float64 {
	if t.YRes == 0 {
		return 0
	}
	return float64(t.XRes) / float64(t.YRes)
}

// Cell is one position of the target grid.
type Cell struct {
	Pos    int32 // linear position: y*XTiles + x
	YDelta int16
	Blocks [MAX_BLOCKS]Block
}
