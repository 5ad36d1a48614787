// Package mosaic implements tile matching and duplicate resolution.
//
// A Matcher streams library tiles once, scores each against every grid cell
// and keeps a short ascending list of the best candidates per cell in a
// RankStore. Resolve then walks those lists in cell order and commits one
// tile per cell while no physical tile is used more than the reuse cap.
//
// Both orientations of a tile share one identity for reuse counting; only
// the better orientation of a tile is ranked for any one cell.
package mosaic
