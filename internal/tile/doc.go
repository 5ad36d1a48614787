// Package tile owns the feature-tile data model shared by the tile database
// codec, the grid CSV reader and the matching engine.
//
// A tile is summarised as a fixed matrix of blocks, each block carrying the
// average luma (Y), two chroma components (U, V) and an edge intensity (E).
// Library tiles come from the binary tile database; grid cells come from the
// target image description. Both use the same block layout.
//
// Key types: Block, Layout, Identity, Tile, Cell.
//
// No I/O is allowed in this package.
package tile
