package tile

// Mirror returns a copy of t with the blocks of every row swapped left to
// right and the orientation toggled. Applying Mirror twice restores t.
//
// Blocks outside the layout are left untouched.
func Mirror(t Tile, l Layout) Tile {
	half := l.XBlocks >> 1
	last := l.XBlocks - 1
	for row := 0; row < l.YBlocks; row++ {
		line := row * l.XBlocks
		for x := 0; x < half; x++ {
			t.Blocks[line+x], t.Blocks[line+last-x] = t.Blocks[line+last-x], t.Blocks[line+x]
		}
	}
	if t.Identity.Orientation == Mirrored {
		t.Identity.Orientation = Original
	} else {
		t.Identity.Orientation = Mirrored
	}
	return t
}
