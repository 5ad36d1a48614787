package tiledb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/mosaic/internal/tile"
)

// Writer appends tile records to a database.
type Writer struct {
	bw     *bufio.Writer
	enc    *zstd.Encoder
	closer io.Closer
	buf    [RECORD_SIZE]byte
	count  int
}

// NewWriter writes plain records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, readBufferRecords*RECORD_SIZE)}
}

// NewZstdWriter writes a zstd-compressed stream of records to w.
func NewZstdWriter(w io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Writer{
		bw:  bufio.NewWriterSize(enc, readBufferRecords*RECORD_SIZE),
		enc: enc,
	}, nil
}

// Create creates path, compressing when the name ends in ".zst".
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile database: %w", err)
	}
	var w *Writer
	if strings.HasSuffix(path, ".zst") {
		if w, err = NewZstdWriter(f); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		w = NewWriter(f)
	}
	w.closer = f
	return w, nil
}

// Write appends one record.
func (w *Writer) Write(t *tile.Tile) error {
	if err := Encode(t, w.buf[:]); err != nil {
		return err
	}
	if _, err := w.bw.Write(w.buf[:]); err != nil {
		return fmt.Errorf("failed to write record %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// Flush writes buffered records to the underlying stream. A zstd writer
// still needs Close to finish its frame.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush tile database: %w", err)
	}
	return nil
}

// Close flushes buffered records and finishes the zstd frame. The underlying
// writer is closed only when the Writer was made by Create.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil {
			return fmt.Errorf("failed to finish zstd stream: %w", err)
		}
		w.enc = nil
	}
	if w.closer != nil {
		err := w.closer.Close()
		w.closer = nil
		return err
	}
	return nil
}
