// Package raster implements the legacy raster data block of spec.md §4.3:
// explicit N-D brick tables built by walking a flat RAW file scanline by
// scanline, predating the Extended Octree (which supersedes it for new
// writes but which the format still must read, since existing containers
// may carry raster blocks). It is grounded on the vfile package's
// seek/read/write primitives the same way octree and container are: no
// new I/O abstraction, only a different on-disk table shape.
package raster

import (
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
	"github.com/iv3d/brickstore/vfile"
)

// LOD describes one raster level: brick count and voxel size per axis, and
// the byte offset of the level's first brick within the raster payload (spec.md §4.3
// "per-LOD brick count, per-LOD per-brick sizes, LOD byte offsets").
type LOD struct {
	BrickCount [3]uint64
	PixelSize  [3]uint64
	ByteOffset int64 // offset of this LOD's first brick within the raster payload
}

// Table is the in-memory raster brick table for one component.
type Table struct {
	Format       base.VoxelFormat
	FullSize     [3]uint64
	MaxBrickSize [3]uint64
	Overlap      uint32
	LODs         []LOD
}

// ComputeBrickSize returns ok=false when any axis's effective brick size is
// non-positive (spec.md §4.3 "Fails (returns false) when any brick_size[d]
// <= overlap[d]").
func ComputeBrickSize(maxBrickSize [3]uint64, overlap uint32) (eff [3]uint64, ok bool) {
	for d := 0; d < 3; d++ {
		if maxBrickSize[d] <= uint64(overlap) {
			return eff, false
		}
		eff[d] = maxBrickSize[d] - uint64(overlap)
	}
	return eff, true
}

// NewTable builds the LOD/brick-count table for a raster block, using the
// same halve-with-floor-one decimation as the octree's layout package
// (spec.md §4.3's decimation rule is identical to §3's, just expressed over
// an explicit table instead of a closed-form LOD struct).
func NewTable(format base.VoxelFormat, fullSize, maxBrickSize [3]uint64, overlap uint32) (*Table, error) {
	if err := layout.ValidateBrickSize(maxBrickSize, overlap); err != nil {
		return nil, err
	}
	lods, err := layout.ComputeLODTable(fullSize, [3]float64{1, 1, 1}, maxBrickSize, overlap)
	if err != nil {
		return nil, err
	}
	t := &Table{Format: format, FullSize: fullSize, MaxBrickSize: maxBrickSize, Overlap: overlap}
	var cumBricks uint64
	for _, l := range lods {
		t.LODs = append(t.LODs, LOD{BrickCount: l.BrickCount, PixelSize: l.PixelSize, ByteOffset: int64(cumBricks) * int64(brickBytes(maxBrickSize, format))})
		cumBricks += l.TotalBricks()
	}
	return t, nil
}

func brickBytes(brickSize [3]uint64, format base.VoxelFormat) int {
	return int(brickSize[0]) * int(brickSize[1]) * int(brickSize[2]) * format.BytesPerVoxel()
}

// CombineFunc reduces k source values (already read in reduction-stride
// order) into one output value, writing the result to dst. Typically mean,
// but the caller may supply median/min/max (spec.md §4.3 "a user-supplied
// combine-K-voxels-into-one callback").
type CombineFunc func(src [][]byte, dst []byte)

// SubsampleToNextLOD reduces one LOD's flat data into the next-coarser
// LOD's flat representation (spec.md §4.3). For each output voxel it reads
// the up-to-2x2x2 source group voxel by voxel with ReadAt and passes it to
// combine; each finished output scanline is written with WriteAt. No
// sliding window is buffered. src's position is saved and restored. When
// src == dst, in-place reduction is safe because reads always stay ahead of
// writes (the output is always <= half the input size per axis).
func SubsampleToNextLOD(src, dst *vfile.File, srcOffset, dstOffset int64, srcSize [3]uint64, format base.VoxelFormat, combine CombineFunc) ([3]uint64, error) {
	var dstSize [3]uint64
	for d := 0; d < 3; d++ {
		dstSize[d] = (srcSize[d] + 1) / 2
		if dstSize[d] < 1 {
			dstSize[d] = 1
		}
	}
	stride := format.BytesPerVoxel()
	srcRowBytes := int64(srcSize[0]) * int64(stride)

	savedPos, err := src.Tell()
	if err != nil {
		return dstSize, err
	}

	for z := uint64(0); z < dstSize[2]; z++ {
		for y := uint64(0); y < dstSize[1]; y++ {
			dstRow := make([]byte, int(dstSize[0])*stride)
			for x := uint64(0); x < dstSize[0]; x++ {
				var group [][]byte
				for dz := uint64(0); dz < 2 && z*2+dz < srcSize[2]; dz++ {
					for dy := uint64(0); dy < 2 && y*2+dy < srcSize[1]; dy++ {
						for dx := uint64(0); dx < 2 && x*2+dx < srcSize[0]; dx++ {
							voxelOff := srcOffset +
								int64(z*2+dz)*int64(srcSize[1])*srcRowBytes +
								int64(y*2+dy)*srcRowBytes +
								int64(x*2+dx)*int64(stride)
							buf := make([]byte, stride)
							n, err := src.ReadAt(buf, voxelOff)
							if err != nil {
								return dstSize, err
							}
							if n != stride {
								return dstSize, base.ShortTransferf("raster: short read during subsample")
							}
							group = append(group, buf)
						}
					}
				}
				combine(group, dstRow[int(x)*stride:int(x)*stride+stride])
			}
			rowOffset := dstOffset +
				int64(z)*int64(dstSize[1])*int64(dstSize[0])*int64(stride) +
				int64(y)*int64(dstSize[0])*int64(stride)
			n, err := dst.WriteAt(dstRow, rowOffset)
			if err != nil {
				return dstSize, err
			}
			if n != len(dstRow) {
				return dstSize, base.ShortTransferf("raster: short write during subsample")
			}
		}
	}
	if err := src.SeekTo(savedPos); err != nil {
		return dstSize, err
	}
	return dstSize, nil
}

// FlatToBricked writes each brick of one LOD to its offset by walking the
// domain scanline by scanline (spec.md §4.3 "Flat->bricked"). extra, when
// non-nil, is invoked once per voxel with its domain coordinate and value,
// letting the caller populate a min/max accelerator or 1D histogram in the
// same pass.
func FlatToBricked(src, dst *vfile.File, srcOffset, dstOffset int64, t *Table, lod int, extra func(coord [3]uint64, value []byte)) error {
	l := t.LODs[lod]
	eff, ok := ComputeBrickSize(t.MaxBrickSize, t.Overlap)
	if !ok {
		return base.ConfigInvalidf("raster: brick size does not exceed overlap")
	}
	stride := t.Format.BytesPerVoxel()
	srcRowBytes := int64(l.PixelSize[0]) * int64(stride)
	brickBytesPer := brickBytes(t.MaxBrickSize, t.Format)

	for z := uint64(0); z < l.PixelSize[2]; z++ {
		for y := uint64(0); y < l.PixelSize[1]; y++ {
			row := make([]byte, int(l.PixelSize[0])*stride)
			off := srcOffset + int64(z)*int64(l.PixelSize[1])*srcRowBytes + int64(y)*srcRowBytes
			n, err := src.ReadAt(row, off)
			if err != nil {
				return err
			}
			if n != len(row) {
				return base.ShortTransferf("raster: short read in FlatToBricked")
			}
			for x := uint64(0); x < l.PixelSize[0]; x++ {
				bx, by, bz := x/eff[0], y/eff[1], z/eff[2]
				lx, ly, lz := x%eff[0], y%eff[1], z%eff[2]
				brickIdx := bz*l.BrickCount[1]*l.BrickCount[0] + by*l.BrickCount[0] + bx
				brickOff := dstOffset + l.ByteOffset + int64(brickIdx)*int64(brickBytesPer)
				voxelOff := brickOff +
					int64(lz)*int64(t.MaxBrickSize[1])*int64(t.MaxBrickSize[0])*int64(stride) +
					int64(ly)*int64(t.MaxBrickSize[0])*int64(stride) +
					int64(lx)*int64(stride)
				val := row[int(x)*stride : int(x)*stride+stride]
				wn, err := dst.WriteAt(val, voxelOff)
				if err != nil {
					return err
				}
				if wn != stride {
					return base.ShortTransferf("raster: short write in FlatToBricked")
				}
				if extra != nil {
					extra([3]uint64{x, y, z}, val)
				}
			}
		}
	}
	return nil
}

// BrickedToFlat inverts FlatToBricked for a single LOD.
func BrickedToFlat(src, dst *vfile.File, srcOffset, dstOffset int64, t *Table, lod int) error {
	l := t.LODs[lod]
	eff, ok := ComputeBrickSize(t.MaxBrickSize, t.Overlap)
	if !ok {
		return base.ConfigInvalidf("raster: brick size does not exceed overlap")
	}
	stride := t.Format.BytesPerVoxel()
	dstRowBytes := int64(l.PixelSize[0]) * int64(stride)
	brickBytesPer := brickBytes(t.MaxBrickSize, t.Format)

	for z := uint64(0); z < l.PixelSize[2]; z++ {
		for y := uint64(0); y < l.PixelSize[1]; y++ {
			row := make([]byte, int(l.PixelSize[0])*stride)
			for x := uint64(0); x < l.PixelSize[0]; x++ {
				bx, by, bz := x/eff[0], y/eff[1], z/eff[2]
				lx, ly, lz := x%eff[0], y%eff[1], z%eff[2]
				brickIdx := bz*l.BrickCount[1]*l.BrickCount[0] + by*l.BrickCount[0] + bx
				brickOff := srcOffset + l.ByteOffset + int64(brickIdx)*int64(brickBytesPer)
				voxelOff := brickOff +
					int64(lz)*int64(t.MaxBrickSize[1])*int64(t.MaxBrickSize[0])*int64(stride) +
					int64(ly)*int64(t.MaxBrickSize[0])*int64(stride) +
					int64(lx)*int64(stride)
				n, err := src.ReadAt(row[int(x)*stride:int(x)*stride+stride], voxelOff)
				if err != nil {
					return err
				}
				if n != stride {
					return base.ShortTransferf("raster: short read in BrickedToFlat")
				}
			}
			off := dstOffset + int64(z)*int64(l.PixelSize[1])*dstRowBytes + int64(y)*dstRowBytes
			wn, err := dst.WriteAt(row, off)
			if err != nil {
				return err
			}
			if wn != len(row) {
				return base.ShortTransferf("raster: short write in BrickedToFlat")
			}
		}
	}
	return nil
}

// ApplyFunc is invoked once per brick with its raw data, voxel size, and
// domain offset (spec.md §4.3 "Apply function").
type ApplyFunc func(data []byte, brickSize [3]uint32, domainOffset [3]uint64) error

// Apply walks every brick of an LOD and invokes fn with exactly the stored
// brick bytes (spec.md §4.3); it has no option to fill extra overlap beyond
// the table's own.
func Apply(src *vfile.File, srcOffset int64, t *Table, lod int, fn ApplyFunc) error {
	l := t.LODs[lod]
	brickBytesPer := brickBytes(t.MaxBrickSize, t.Format)
	eff, ok := ComputeBrickSize(t.MaxBrickSize, t.Overlap)
	if !ok {
		return base.ConfigInvalidf("raster: brick size does not exceed overlap")
	}
	for bz := uint64(0); bz < l.BrickCount[2]; bz++ {
		for by := uint64(0); by < l.BrickCount[1]; by++ {
			for bx := uint64(0); bx < l.BrickCount[0]; bx++ {
				brickIdx := bz*l.BrickCount[1]*l.BrickCount[0] + by*l.BrickCount[0] + bx
				brickOff := srcOffset + l.ByteOffset + int64(brickIdx)*int64(brickBytesPer)
				data := make([]byte, brickBytesPer)
				n, err := src.ReadAt(data, brickOff)
				if err != nil {
					return err
				}
				if n != len(data) {
					return base.ShortTransferf("raster: short read in Apply")
				}
				domainOffset := [3]uint64{bx * eff[0], by * eff[1], bz * eff[2]}
				brickSize := [3]uint32{uint32(t.MaxBrickSize[0]), uint32(t.MaxBrickSize[1]), uint32(t.MaxBrickSize[2])}
				if err := fn(data, brickSize, domainOffset); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// MeanCombine implements the default "average" reduction for u8 scalar
// components.
func MeanCombine(src [][]byte, dst []byte) {
	if len(src) == 0 {
		return
	}
	sum := 0
	for _, s := range src {
		sum += int(s[0])
	}
	dst[0] = byte(sum / len(src))
}
