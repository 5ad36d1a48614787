package tiledb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/mosaic/internal/tile"
)

// readBufferRecords sizes the read buffer in whole records.
const readBufferRecords = 64

// Reader streams tile records in file order. Plain and zstd-compressed
// databases are both accepted; compression is detected from the frame magic.
type Reader struct {
	br     *bufio.Reader
	dec    *zstd.Decoder
	closer io.Closer
	buf    [RECORD_SIZE]byte
	index  int
}

// NewReader wraps r. The caller keeps ownership of r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, readBufferRecords*RECORD_SIZE)
	rd := &Reader{br: br}

	// A short or empty stream is handled by Next; only a full magic counts.
	head, err := br.Peek(4)
	if err == nil && binary.LittleEndian.Uint32(head) == zstdFrameMagic {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		rd.dec = dec
		rd.br = bufio.NewReaderSize(dec, readBufferRecords*RECORD_SIZE)
	}
	return rd, nil
}

// Open opens the tile database at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile database: %w", err)
	}
	rd, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	rd.closer = f
	return rd, nil
}

// Compressed reports whether the stream is zstd-compressed.
func (r *Reader) Compressed() bool {
	return r.dec != nil
}

// Next returns the next record. It returns io.EOF after the last complete
// record; a trailing partial record is reported as io.ErrUnexpectedEOF.
func (r *Reader) Next() (tile.Tile, error) {
	var t tile.Tile
	n, err := io.ReadFull(r.br, r.buf[:])
	switch {
	case err == io.EOF:
		return t, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return t, fmt.Errorf("record %d truncated after %d of %d bytes: %w", r.index, n, RECORD_SIZE, io.ErrUnexpectedEOF)
	case err != nil:
		return t, fmt.Errorf("failed to read record %d: %w", r.index, err)
	}

	if err := Decode(r.buf[:], &t); err != nil {
		return t, fmt.Errorf("record %d: %w", r.index, err)
	}
	r.index++
	return t, nil
}

// Index returns the number of records returned so far.
func (r *Reader) Index() int {
	return r.index
}

// Close releases the decoder and, when opened with Open, the file.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
		r.dec = nil
	}
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

// CountRecords returns the number of records in an uncompressed database
// from its size alone.
func CountRecords(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat tile database: %w", err)
	}
	size := info.Size()
	if size < RECORD_SIZE {
		return 0, fmt.Errorf("tile database %s is empty or too small (%d bytes)", path, size)
	}
	if size%RECORD_SIZE != 0 {
		return 0, fmt.Errorf("tile database %s size %d is not a multiple of %d", path, size, RECORD_SIZE)
	}
	return int(size / RECORD_SIZE), nil
}
