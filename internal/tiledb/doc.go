// Package tiledb reads and writes the binary tile database: a flat sequence
// of fixed 270-byte little-endian records, optionally wrapped in a zstd
// stream.
//
// Readers never validate the record magic. Integrity checking belongs to the
// consumer so that the failing record index is reported where it matters.
package tiledb
