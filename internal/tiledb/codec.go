package tiledb

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/mosaic/internal/tile"
)

/*
Tile database record layout

A tile database is a flat concatenation of fixed-size records with no file
header. Every record is packed (1-byte alignment) and little-endian:

	offset  size  field
	     0     4  magic    int32  'TILE' (0x454C4954)
	     4     4  imageID  int32  library identity, positive
	     8     2  Ydelta   int16  brightness offset, range [-255, +255]
	    10     2  xres     int16  width of the source image
	    12     2  yres     int16  height of the source image
	    14   256  blocks   64 x {Y, U, V, E} uint8, row major

The record count of an uncompressed database is its size / RECORD_SIZE.
*/

// Record layout constants.
const (
	MAGIC_OFFSET    = 0
	ID_OFFSET       = 4
	Y_DELTA_OFFSET  = 8
	X_RES_OFFSET    = 10
	Y_RES_OFFSET    = 12
	HEADER_SIZE     = 14                                // bytes before the block matrix
	BYTES_PER_BLOCK = 4                                 // Y, U, V, E
	BLOCKS_SIZE     = tile.MAX_BLOCKS * BYTES_PER_BLOCK // 256 bytes
	RECORD_SIZE     = HEADER_SIZE + BLOCKS_SIZE         // 270 bytes

	zstdFrameMagic = uint32(0xFD2FB528) // first four bytes of a zstd frame, read little-endian
)

// Decode fills t from one RECORD_SIZE record. The magic is copied through
// unchecked; validating it is the caller's job. Negative identities on disk
// are read as mirrored.
func Decode(buf []byte, t *tile.Tile) error {
	if len(buf) < RECORD_SIZE {
		return fmt.Errorf("record too short: %d bytes (want %d)", len(buf), RECORD_SIZE)
	}

	t.Magic = int32(binary.LittleEndian.Uint32(buf[MAGIC_OFFSET:]))
	t.Identity = tile.FromSigned(int32(binary.LittleEndian.Uint32(buf[ID_OFFSET:])))
	t.YDelta = int16(binary.LittleEndian.Uint16(buf[Y_DELTA_OFFSET:]))
	t.XRes = int16(binary.LittleEndian.Uint16(buf[X_RES_OFFSET:]))
	t.YRes = int16(binary.LittleEndian.Uint16(buf[Y_RES_OFFSET:]))

	p := buf[HEADER_SIZE:RECORD_SIZE]
	for i := range t.Blocks {
		o := i * BYTES_PER_BLOCK
		t.Blocks[i] = tile.Block{Y: p[o], U: p[o+1], V: p[o+2], E: p[o+3]}
	}
	return nil
}

// Encode writes t into buf using the record layout. The identity is stored
// in its signed form.
func Encode(t *tile.Tile, buf []byte) error {
	if len(buf) < RECORD_SIZE {
		return fmt.Errorf("buffer too short: %d bytes (want %d)", len(buf), RECORD_SIZE)
	}

	binary.LittleEndian.PutUint32(buf[MAGIC_OFFSET:], uint32(t.Magic))
	binary.LittleEndian.PutUint32(buf[ID_OFFSET:], uint32(t.Identity.Signed()))
	binary.LittleEndian.PutUint16(buf[Y_DELTA_OFFSET:], uint16(t.YDelta))
	binary.LittleEndian.PutUint16(buf[X_RES_OFFSET:], uint16(t.XRes))
	binary.LittleEndian.PutUint16(buf[Y_RES_OFFSET:], uint16(t.YRes))

	p := buf[HEADER_SIZE:RECORD_SIZE]
	for i, b := range t.Blocks {
		o := i * BYTES_PER_BLOCK
		p[o], p[o+1], p[o+2], p[o+3] = b.Y, b.U, b.V, b.E
	}
	return nil
}
