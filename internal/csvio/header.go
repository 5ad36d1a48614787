// Package csvio reads target grids from CSV and writes tile assignments back
// out in the same dialect.
//
// The first line of both files is a header:
//
//	Xtiles,Ytiles,Xblocks,Yblocks,Flags,Wy,Wc,We,dups
//
// Grid rows follow as pos,Ydelta,Y1,U1,V1,E1,...; assignment rows as
// pos,Ydelta,id.
package csvio

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/mosaic/internal/mosaic"
	"github.com/banshee-data/mosaic/internal/tile"
)

// Header flag bits.
const (
	FLAG_NORMALIZED_LUMA = 0x01
	FLAG_MIRROR          = 0x02

	HEADER_FIELDS = 9
)

var headerValidate = validator.New()

// Header is the first line of a grid or assignment file.
type Header struct {
	XTiles  int `validate:"min=1"`
	YTiles  int `validate:"min=1"`
	XBlocks int `validate:"min=1,max=64"`
	YBlocks int `validate:"min=1,max=64"`
	Flags   int `validate:"min=0,max=3"`
	Wy      int `validate:"min=0"`
	Wc      int `validate:"min=0"`
	We      int `validate:"min=0"`
	Dups    int `validate:"min=1"`
}

// Validate checks field ranges, the block layout and the reuse cap.
func (h Header) Validate() error {
	if err := headerValidate.Struct(h); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}
	if err := h.Layout().Validate(); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}
	if h.Dups > h.Cells() {
		return fmt.Errorf("invalid header: dups %d exceeds %d cells", h.Dups, h.Cells())
	}
	return nil
}

// Cells returns Xtiles*Ytiles.
func (h Header) Cells() int { return h.XTiles * h.YTiles }

// Layout returns the block layout of every tile.
func (h Header) Layout() tile.Layout {
	return tile.Layout{XBlocks: h.XBlocks, YBlocks: h.YBlocks}
}

// NormalizedLuma reports flag 0x01.
func (h Header) NormalizedLuma() bool { return h.Flags&FLAG_NORMALIZED_LUMA != 0 }

// Mirror reports flag 0x02.
func (h Header) Mirror() bool { return h.Flags&FLAG_MIRROR != 0 }

// Options maps the header onto matcher options. Policy, margin and workers
// are left at their zero values for the caller to fill.
func (h Header) Options() mosaic.Options {
	return mosaic.Options{
		Layout: h.Layout(),
		Weights: mosaic.Weights{
			Luma:           h.Wy,
			Chroma:         h.Wc,
			Edge:           h.We,
			NormalizedLuma: h.NormalizedLuma(),
		},
		Dups:   h.Dups,
		Mirror: h.Mirror(),
	}
}

// Record returns the header as CSV fields.
func (h Header) Record() []string {
	vals := []int{h.XTiles, h.YTiles, h.XBlocks, h.YBlocks, h.Flags, h.Wy, h.Wc, h.We, h.Dups}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.Itoa(v)
	}
	return out
}

func parseHeader(rec []string) (Header, error) {
	if len(rec) != HEADER_FIELDS {
		return Header{}, fmt.Errorf("header has %d fields, want %d", len(rec), HEADER_FIELDS)
	}
	var vals [HEADER_FIELDS]int
	for i, f := range rec {
		v, err := parseInt(f, 32)
		if err != nil {
			return Header{}, fmt.Errorf("header field %d: %w", i+1, err)
		}
		vals[i] = int(v)
	}
	h := Header{
		XTiles: vals[0], YTiles: vals[1],
		XBlocks: vals[2], YBlocks: vals[3],
		Flags: vals[4],
		Wy:    vals[5], Wc: vals[6], We: vals[7],
		Dups: vals[8],
	}
	return h, h.Validate()
}
