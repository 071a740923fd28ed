// Package layout implements the brick-tiling geometry shared by the octree,
// raster, and dataset packages: given a full volume size, a maximum brick
// size, an overlap, and a world-space aspect, it computes the LOD table
// (spec.md §3 "Level-of-detail (LOD) table") and per-brick voxel
// counts/world extents (spec.md §9 design note #2: "a shared brick-table
// struct" composed into each concrete dataset instead of a deep class
// hierarchy).
package layout

import (
	"github.com/iv3d/brickstore/internal/base"
)

// LOD describes one level of detail: its accumulated aspect ratio, the
// pixel (voxel) size of the full level, the brick count per axis, and the
// cumulative brick offset of this level within the dataset's flattened ToC
// (spec.md §3 "Level-of-detail (LOD) table").
type LOD struct {
	Aspect     [3]float64
	PixelSize  [3]uint64
	BrickCount [3]uint64
	LODOffset  uint64
}

// TotalBricks returns Nx*Ny*Nz for this level.
func (l LOD) TotalBricks() uint64 {
	return l.BrickCount[0] * l.BrickCount[1] * l.BrickCount[2]
}

// EffectiveBrickSize returns maxBrickSize minus the ghost overlap on both
// sides of each axis: the portion of a brick that tiles the domain without
// double-counting neighbors' borders.
func EffectiveBrickSize(maxBrickSize [3]uint64, overlap uint32) [3]uint64 {
	var eff [3]uint64
	for d := 0; d < 3; d++ {
		eff[d] = maxBrickSize[d] - 2*uint64(overlap)
	}
	return eff
}

// ValidateBrickSize checks the spec.md §3 invariant "brick_size[d] > 2 *
// overlap on every axis".
func ValidateBrickSize(maxBrickSize [3]uint64, overlap uint32) error {
	for d := 0; d < 3; d++ {
		if maxBrickSize[d] <= 2*uint64(overlap) {
			return base.ConfigInvalidf(
				"layout: brick size %d on axis %d does not exceed 2*overlap (%d)", maxBrickSize[d], d, 2*overlap)
		}
	}
	return nil
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func maxAxis(size [3]uint64) int {
	m := 0
	for d := 1; d < 3; d++ {
		if size[d] > size[m] {
			m = d
		}
	}
	return m
}

// ComputeLODTable builds the full LOD table for a volume, per spec.md §3's
// invariants: the finest LOD tiles the full domain; each coarser LOD halves
// the per-axis voxel count with a floor of 1; the LOD count is the smallest
// k such that ceil(voxels[maxdim]/2^k) <= effective_brick_size[maxdim].
func ComputeLODTable(fullSize [3]uint64, aspect [3]float64, maxBrickSize [3]uint64, overlap uint32) ([]LOD, error) {
	if err := ValidateBrickSize(maxBrickSize, overlap); err != nil {
		return nil, err
	}
	eff := EffectiveBrickSize(maxBrickSize, overlap)
	maxdim := maxAxis(fullSize)

	var lods []LOD
	pixelSize := fullSize
	curAspect := aspect
	var cumulative uint64
	for {
		var brickCount [3]uint64
		for d := 0; d < 3; d++ {
			brickCount[d] = ceilDiv(pixelSize[d], eff[d])
		}
		l := LOD{
			Aspect:     curAspect,
			PixelSize:  pixelSize,
			BrickCount: brickCount,
			LODOffset:  cumulative,
		}
		lods = append(lods, l)
		cumulative += l.TotalBricks()

		if pixelSize[maxdim] <= eff[maxdim] {
			break
		}
		var next [3]uint64
		var nextAspect [3]float64
		for d := 0; d < 3; d++ {
			next[d] = pixelSize[d] / 2
			if pixelSize[d]%2 != 0 || next[d] == 0 {
				next[d] = (pixelSize[d] + 1) / 2
			}
			if next[d] < 1 {
				next[d] = 1
			}
			nextAspect[d] = curAspect[d] * float64(pixelSize[d]) / float64(next[d])
		}
		pixelSize = next
		curAspect = nextAspect
	}
	return lods, nil
}

// BrickCoordsToIndex implements the canonical linearization of 3D brick
// coordinates within one LOD (spec.md §3, §4.4):
//
//	index = lod_offset(lod) + bz*Ny(lod)*Nx(lod) + by*Nx(lod) + bx
func BrickCoordsToIndex(l LOD, coord base.BrickCoord3D) uint64 {
	return l.LODOffset + coord.Z*l.BrickCount[1]*l.BrickCount[0] + coord.Y*l.BrickCount[0] + coord.X
}

// IndexToBrickCoords inverts BrickCoordsToIndex.
func IndexToBrickCoords(l LOD, index uint64) base.BrickCoord3D {
	local := index - l.LODOffset
	nx, ny := l.BrickCount[0], l.BrickCount[1]
	bx := local % nx
	local /= nx
	by := local % ny
	bz := local / ny
	return base.BrickCoord3D{X: bx, Y: by, Z: bz}
}

// BrickVoxelCount returns the brick's voxel count per axis, including ghost
// overlap: MaxBrickSize for interior bricks, a smaller size for boundary
// (outermost) bricks (spec.md §3 invariant). eff is EffectiveBrickSize(...).
func BrickVoxelCount(l LOD, maxBrickSize, eff [3]uint64, overlap uint32, coord base.BrickCoord3D) [3]uint32 {
	var n [3]uint32
	idx := [3]uint64{coord.X, coord.Y, coord.Z}
	for d := 0; d < 3; d++ {
		isLast := idx[d] == l.BrickCount[d]-1
		if !isLast {
			n[d] = uint32(maxBrickSize[d])
			continue
		}
		// Interior (non-boundary) voxels covered by all bricks before
		// this one, on this axis.
		covered := idx[d] * eff[d]
		remaining := l.PixelSize[d] - covered
		size := remaining
		if idx[d] > 0 {
			size += uint64(overlap) // border shared with the previous brick
		}
		if size > maxBrickSize[d] {
			size = maxBrickSize[d]
		}
		n[d] = uint32(size)
	}
	return n
}

// BrickCenterExtent returns the brick's world-space center and extents
// (size), given the LOD's aspect (world units per voxel, per axis) and the
// brick's voxel range. Extents is the brick's *interior* (non-ghost) span,
// matching spec.md's BrickMD.Extents describing the brick's contribution to
// the domain rather than its on-disk padded size.
func BrickCenterExtent(l LOD, eff [3]uint64, aspect [3]float64, coord base.BrickCoord3D) (center, extent [3]float32) {
	idx := [3]uint64{coord.X, coord.Y, coord.Z}
	for d := 0; d < 3; d++ {
		start := idx[d] * eff[d]
		end := start + eff[d]
		if end > l.PixelSize[d] {
			end = l.PixelSize[d]
		}
		worldStart := float64(start) * aspect[d]
		worldEnd := float64(end) * aspect[d]
		center[d] = float32((worldStart + worldEnd) / 2)
		extent[d] = float32(worldEnd - worldStart)
	}
	return center, extent
}

// LargestSingleBrickLOD returns the coarsest LOD whose brick count is 1 on
// every axis (spec.md §4.8 "largest_single_brick_lod"), or -1 if none
// qualifies (should not happen for a well-formed table, since the coarsest
// level always satisfies this by construction).
func LargestSingleBrickLOD(lods []LOD) int {
	for i := len(lods) - 1; i >= 0; i-- {
		if lods[i].BrickCount[0] == 1 && lods[i].BrickCount[1] == 1 && lods[i].BrickCount[2] == 1 {
			return i
		}
	}
	return -1
}

// MaxUsedBrickSize returns the axis-wise maximum brick voxel count observed
// across all LODs, which for a well-formed table is simply MaxBrickSize at
// LOD 0's interior bricks when BrickCount > 1, else the LOD-0 pixel size.
func MaxUsedBrickSize(lods []LOD, maxBrickSize [3]uint64) [3]uint64 {
	var m [3]uint64
	for d := 0; d < 3; d++ {
		if lods[0].BrickCount[d] > 1 {
			m[d] = maxBrickSize[d]
		} else {
			m[d] = lods[0].PixelSize[d]
		}
	}
	return m
}

// RoundTripSanity is a cheap assertion helper: ceil(a/b).
func RoundTripSanity(a, b uint64) uint64 { return ceilDiv(a, b) }
