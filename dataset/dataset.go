// Package dataset implements the bricked-dataset abstraction of spec.md
// §4.8: a BrickKey -> BrickMD table backed by an open-addressing map, plus
// the metadata queries every concrete dataset (octree-backed or
// raster-backed) composes over instead of inheriting (spec.md §9 design
// note "flattened ... into a capability set implemented by each concrete
// dataset via composition over a shared brick-table struct"). The table is
// backed by cockroachdb/swiss, an open-addressing SIMD-probe hash map and
// the same library the teacher uses for its block-cache sharding.
// swiss.Map hashes comparable keys internally, so BrickKey's fields feed
// its hasher directly; no brickstore-owned key combiner is used.
package dataset

import (
	"github.com/cockroachdb/swiss"

	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
)

// Dataset is the capability set shared by every concrete bricked source: a
// brick-key -> metadata table, the LOD table it was built from, and the
// queries derived purely from those two (spec.md §4.8).
type Dataset struct {
	lods    []layout.LOD
	md      *swiss.Map[base.BrickKey, base.BrickMD]
	overlap uint32
	effSize [3]uint64
	maxBS   [3]uint64
}

// New builds a Dataset over a LOD table. Entries are populated by the
// concrete format (octree or raster) via Put as it walks its own ToC/brick
// table, since BrickMD (center, extents, voxel count) is derived
// differently by each.
func New(lods []layout.LOD, maxBrickSize [3]uint64, overlap uint32) *Dataset {
	return &Dataset{
		lods:    lods,
		md:      swiss.New[base.BrickKey, base.BrickMD](0),
		overlap: overlap,
		effSize: layout.EffectiveBrickSize(maxBrickSize, overlap),
		maxBS:   maxBrickSize,
	}
}

// Put installs (or overwrites) the metadata for one brick key.
func (d *Dataset) Put(key base.BrickKey, md base.BrickMD) {
	d.md.Put(key, md)
}

// BrickExtents returns the brick's world-space center and extents.
func (d *Dataset) BrickExtents(key base.BrickKey) (center, extents [3]float32, ok bool) {
	md, found := d.md.Get(key)
	if !found {
		return center, extents, false
	}
	return md.Center, md.Extents, true
}

// BrickVoxelCounts returns the brick's voxel count per axis.
func (d *Dataset) BrickVoxelCounts(key base.BrickKey) (counts [3]uint32, ok bool) {
	md, found := d.md.Get(key)
	if !found {
		return counts, false
	}
	return md.VoxelCount, true
}

// IsFirstInDimension reports whether the brick is the first (index 0) along
// axis d at its LOD.
func (d *Dataset) IsFirstInDimension(axis int, key base.BrickKey) bool {
	l := d.lodOf(key)
	c := layout.IndexToBrickCoords(l, key.Index)
	return axisValue(c, axis) == 0
}

// IsLastInDimension reports whether the brick is the last along axis d at
// its LOD.
func (d *Dataset) IsLastInDimension(axis int, key base.BrickKey) bool {
	l := d.lodOf(key)
	c := layout.IndexToBrickCoords(l, key.Index)
	return axisValue(c, axis) == l.BrickCount[axis]-1
}

func axisValue(c base.BrickCoord3D, axis int) uint64 {
	switch axis {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

func (d *Dataset) lodOf(key base.BrickKey) layout.LOD {
	return d.lods[key.LOD]
}

// LargestSingleBrickLOD returns the coarsest LOD whose brick count is 1 on
// every axis (spec.md §4.8).
func (d *Dataset) LargestSingleBrickLOD() int {
	return layout.LargestSingleBrickLOD(d.lods)
}

// MaxUsedBrickSize returns the axis-wise max brick voxel count over all
// LODs.
func (d *Dataset) MaxUsedBrickSize() [3]uint64 {
	return layout.MaxUsedBrickSize(d.lods, d.maxBS)
}

// BrickCount returns the total brick count at the given LOD. Timestep is
// accepted for API symmetry with the spec's (lod, ts) signature but is
// otherwise unused: brickstore's converter only ever emits ts=0 (see Open
// Question #4; TODO if multi-timestep ingestion is implemented, key this
// off ts too).
func (d *Dataset) BrickCount(lod uint32, ts uint64) uint64 {
	if int(lod) >= len(d.lods) {
		return 0
	}
	return d.lods[lod].TotalBricks()
}

// Len returns the total number of bricks with metadata installed.
func (d *Dataset) Len() int { return d.md.Len() }

// LODs exposes the underlying LOD table, read-only.
func (d *Dataset) LODs() []layout.LOD { return append([]layout.LOD(nil), d.lods...) }

// Overlap returns the dataset's ghost-overlap width.
func (d *Dataset) Overlap() uint32 { return d.overlap }

// BrickIterator yields every (BrickKey, BrickMD) pair in canonical order:
// LOD-major, then index order within a LOD (spec.md §9 "The brick iterator
// yields an ordered sequence ... finite in length, not restartable").
type BrickIterator struct {
	d         *Dataset
	lod       int
	index     uint64
	timestep  uint64
}

// Iterate returns a fresh iterator over every brick of a single timestep.
func (d *Dataset) Iterate(timestep uint64) *BrickIterator {
	return &BrickIterator{d: d, timestep: timestep}
}

// Next advances the iterator and reports whether a brick was produced.
func (it *BrickIterator) Next() (base.BrickKey, base.BrickMD, bool) {
	for it.lod < len(it.d.lods) {
		l := it.d.lods[it.lod]
		if it.index >= l.LODOffset+l.TotalBricks() {
			it.lod++
			if it.lod < len(it.d.lods) {
				it.index = it.d.lods[it.lod].LODOffset
			}
			continue
		}
		key := base.BrickKey{Timestep: it.timestep, LOD: uint32(it.lod), Index: it.index}
		md, _ := it.d.md.Get(key)
		it.index++
		return key, md, true
	}
	return base.BrickKey{}, base.BrickMD{}, false
}
