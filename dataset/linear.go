package dataset

import (
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
)

// LinearIndex wraps a Dataset with the contiguous-indexing guarantee of
// spec.md §4.8 ("no holes": if brick (0,1,0) exists at LOD L, then (0,0,0)
// exists at LOD L) and the 4D<->key conversions that formalize it.
type LinearIndex struct {
	*Dataset
}

// NewLinearIndex wraps an already-populated Dataset. The caller is
// responsible for having populated it without holes; LinearIndex does not
// itself validate the no-holes invariant (that would require an O(bricks)
// scan on every open, which the concrete readers already get for free by
// construction: they emit bricks in canonical scanline order).
func NewLinearIndex(d *Dataset) *LinearIndex {
	return &LinearIndex{Dataset: d}
}

// IndexFrom4D converts (x, y, z, lod) brick coordinates at a timestep into
// the canonical BrickKey (spec.md §4.8 "index_from_4d").
func (l *LinearIndex) IndexFrom4D(x, y, z uint64, lod uint32, ts uint64) base.BrickKey {
	coord := base.BrickCoord3D{X: x, Y: y, Z: z}
	return base.BrickKey{Timestep: ts, LOD: lod, Index: layout.BrickCoordsToIndex(l.lods[lod], coord)}
}

// IndexTo4D inverts IndexFrom4D.
func (l *LinearIndex) IndexTo4D(key base.BrickKey) (x, y, z uint64, lod uint32) {
	c := layout.IndexToBrickCoords(l.lods[key.LOD], key.Index)
	return c.X, c.Y, c.Z, key.LOD
}
