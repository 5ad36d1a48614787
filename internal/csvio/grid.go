package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/mosaic/internal/mosaic"
	"github.com/banshee-data/mosaic/internal/tile"
)

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}

func parseInt(field string, bits int) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(field), 10, bits)
}

func readHeader(cr *csv.Reader) (Header, error) {
	rec, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Header{}, fmt.Errorf("missing header line")
	}
	if err != nil {
		return Header{}, fmt.Errorf("failed to read header: %w", err)
	}
	return parseHeader(rec)
}

// ReadGrid reads a header and up to Xtiles*Ytiles cell rows. Positions must
// lie inside the grid and be unique.
func ReadGrid(r io.Reader) (Header, []tile.Cell, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return Header{}, nil, err
	}

	nblocks := h.Layout().NumBlocks()
	want := 2 + 4*nblocks
	limit := h.Cells()
	seen := make(map[int32]int, limit)
	cells := make([]tile.Cell, 0, limit)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Header{}, nil, fmt.Errorf("failed to read grid row %d: %w", len(cells), err)
		}
		if len(cells) == limit {
			return Header{}, nil, fmt.Errorf("grid has more than %d rows", limit)
		}
		if len(rec) != want {
			return Header{}, nil, fmt.Errorf("grid row %d has %d fields, want %d", len(cells), len(rec), want)
		}

		c, err := parseCell(rec, nblocks, limit)
		if err != nil {
			return Header{}, nil, fmt.Errorf("grid row %d: %w", len(cells), err)
		}
		if j, dup := seen[c.Pos]; dup {
			return Header{}, nil, fmt.Errorf("grid row %d repeats position %d from row %d", len(cells), c.Pos, j)
		}
		seen[c.Pos] = len(cells)
		cells = append(cells, c)
	}

	if len(cells) == 0 {
		return Header{}, nil, fmt.Errorf("grid has no rows")
	}
	if h.Dups > len(cells) {
		return Header{}, nil, fmt.Errorf("dups %d exceeds the %d grid rows present", h.Dups, len(cells))
	}
	return h, cells, nil
}

func parseCell(rec []string, nblocks, limit int) (tile.Cell, error) {
	var c tile.Cell

	pos, err := parseInt(rec[0], 32)
	if err != nil {
		return c, fmt.Errorf("pos: %w", err)
	}
	if pos < 0 || pos >= int64(limit) {
		return c, fmt.Errorf("pos %d outside grid of %d cells", pos, limit)
	}
	yd, err := parseInt(rec[1], 16)
	if err != nil {
		return c, fmt.Errorf("field Ydelta: %w", err)
	}
	if yd < -tile.MAX_Y_DELTA || yd > tile.MAX_Y_DELTA {
		return c, fmt.Errorf("field Ydelta %d outside [-%d, %d]", yd, tile.MAX_Y_DELTA, tile.MAX_Y_DELTA)
	}
	c.Pos = int32(pos)
	c.YDelta = int16(yd)

	for b := 0; b < nblocks; b++ {
		var v [4]uint8
		for k := range v {
			f := rec[2+4*b+k]
			u, err := strconv.ParseUint(strings.TrimSpace(f), 10, 8)
			if err != nil {
				return c, fmt.Errorf("block %d value %q: must be 0..255", b+1, f)
			}
			v[k] = uint8(u)
		}
		c.Blocks[b] = tile.Block{Y: v[0], U: v[1], V: v[2], E: v[3]}
	}
	return c, nil
}

// WriteAssignments writes h then one pos,Ydelta,id row per assignment in
// cell order.
func WriteAssignments(w io.Writer, h Header, out []mosaic.Assignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(h.Record()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	row := make([]string, 3)
	for _, a := range out {
		row[0] = strconv.FormatInt(int64(a.Pos), 10)
		row[1] = strconv.FormatInt(int64(a.YDelta), 10)
		row[2] = strconv.FormatInt(int64(a.TileID), 10)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write cell %d: %w", a.Cell, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush assignments: %w", err)
	}
	return nil
}

// ReadAssignments parses a file written by WriteAssignments. Only Cell, Pos,
// YDelta and TileID are populated.
func ReadAssignments(r io.Reader) (Header, []mosaic.Assignment, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return Header{}, nil, err
	}

	var out []mosaic.Assignment
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Header{}, nil, fmt.Errorf("failed to read assignment row %d: %w", len(out), err)
		}
		if len(rec) != 3 {
			return Header{}, nil, fmt.Errorf("assignment row %d has %d fields, want 3", len(out), len(rec))
		}
		var vals [3]int64
		for i, bits := range []int{32, 16, 32} {
			if vals[i], err = parseInt(rec[i], bits); err != nil {
				return Header{}, nil, fmt.Errorf("assignment row %d field %d: %w", len(out), i+1, err)
			}
		}
		out = append(out, mosaic.Assignment{
			Cell:   len(out),
			Pos:    int32(vals[0]),
			YDelta: int16(vals[1]),
			TileID: int32(vals[2]),
		})
	}
	return h, out, nil
}
