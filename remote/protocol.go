package remote

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/iv3d/brickstore/internal/base"
)

// BrickLayout is the per-LOD layout triple the OPEN response reports for
// each resolution level (spec.md §4.10 OPEN response "per-LOD layout
// triples").
type BrickLayout struct {
	PixelSize  [3]uint64
	BrickCount [3]uint64
	LODOffset  uint64
}

// BrickGeometry is the per-brick (center, extents, voxel count) triple the
// OPEN response carries for every brick up front, so the client can build
// its render geometry without a BRICK round trip per brick.
type BrickGeometry struct {
	LOD, Index uint64
	Center     [3]float32
	Extent     [3]float32
	NumVoxels  [3]uint32
}

// DatasetMetadata is the OPEN response body (spec.md §4.10 OPEN row).
type DatasetMetadata struct {
	LODs          []BrickLayout
	ComponentType base.ComponentType
	Overlap       [3]uint32
	RangeMin      float64
	RangeMax      float64
	Bricks        []base.BrickKey // flattened (lod, index) for every brick
	Geometry      []BrickGeometry
	MaxGradient   float64
}

func writeMetadata(w io.Writer, m DatasetMetadata) error {
	if err := writeU64(w, uint64(len(m.LODs))); err != nil {
		return err
	}
	for _, l := range m.LODs {
		for _, v := range l.PixelSize {
			if err := writeU64(w, v); err != nil {
				return err
			}
		}
		for _, v := range l.BrickCount {
			if err := writeU64(w, v); err != nil {
				return err
			}
		}
		if err := writeU64(w, l.LODOffset); err != nil {
			return err
		}
	}
	if err := writeU8(w, uint8(m.ComponentType)); err != nil {
		return err
	}
	for _, v := range m.Overlap {
		if err := writeU32(w, v); err != nil {
			return err
		}
	}
	if err := writeF64(w, m.RangeMin); err != nil {
		return err
	}
	if err := writeF64(w, m.RangeMax); err != nil {
		return err
	}
	if err := writeU64(w, uint64(len(m.Bricks))); err != nil {
		return err
	}
	for _, k := range m.Bricks {
		if err := writeU64(w, uint64(k.LOD)); err != nil {
			return err
		}
		if err := writeU64(w, k.Index); err != nil {
			return err
		}
	}
	// readMetadata takes one geometry record per entry of Bricks, so exactly
	// that many are written; a brick without a Geometry entry gets a record
	// carrying only its key.
	for i, k := range m.Bricks {
		g := BrickGeometry{LOD: uint64(k.LOD), Index: k.Index}
		if i < len(m.Geometry) {
			g = m.Geometry[i]
		}
		if err := writeU64(w, g.LOD); err != nil {
			return err
		}
		if err := writeU64(w, g.Index); err != nil {
			return err
		}
		for _, v := range g.Center {
			if err := writeF32(w, v); err != nil {
				return err
			}
		}
		for _, v := range g.Extent {
			if err := writeF32(w, v); err != nil {
				return err
			}
		}
		for _, v := range g.NumVoxels {
			if err := writeU32(w, v); err != nil {
				return err
			}
		}
	}
	return writeF64(w, m.MaxGradient)
}

func readMetadata(r io.Reader) (DatasetMetadata, error) {
	var m DatasetMetadata
	lodCount, err := readU64(r)
	if err != nil {
		return m, err
	}
	m.LODs = make([]BrickLayout, lodCount)
	for i := range m.LODs {
		l := &m.LODs[i]
		for d := 0; d < 3; d++ {
			if l.PixelSize[d], err = readU64(r); err != nil {
				return m, err
			}
		}
		for d := 0; d < 3; d++ {
			if l.BrickCount[d], err = readU64(r); err != nil {
				return m, err
			}
		}
		if l.LODOffset, err = readU64(r); err != nil {
			return m, err
		}
	}
	ct, err := readU8(r)
	if err != nil {
		return m, err
	}
	m.ComponentType = base.ComponentType(ct)
	for d := 0; d < 3; d++ {
		if m.Overlap[d], err = readU32(r); err != nil {
			return m, err
		}
	}
	if m.RangeMin, err = readF64(r); err != nil {
		return m, err
	}
	if m.RangeMax, err = readF64(r); err != nil {
		return m, err
	}
	brickCount, err := readU64(r)
	if err != nil {
		return m, err
	}
	m.Bricks = make([]base.BrickKey, brickCount)
	for i := range m.Bricks {
		lod, err := readU64(r)
		if err != nil {
			return m, err
		}
		idx, err := readU64(r)
		if err != nil {
			return m, err
		}
		m.Bricks[i] = base.BrickKey{LOD: uint32(lod), Index: idx}
	}
	m.Geometry = make([]BrickGeometry, brickCount)
	for i := range m.Geometry {
		g := &m.Geometry[i]
		if g.LOD, err = readU64(r); err != nil {
			return m, err
		}
		if g.Index, err = readU64(r); err != nil {
			return m, err
		}
		for d := 0; d < 3; d++ {
			if g.Center[d], err = readF32(r); err != nil {
				return m, err
			}
		}
		for d := 0; d < 3; d++ {
			if g.Extent[d], err = readF32(r); err != nil {
				return m, err
			}
		}
		for d := 0; d < 3; d++ {
			if g.NumVoxels[d], err = readU32(r); err != nil {
				return m, err
			}
		}
	}
	if m.MaxGradient, err = readF64(r); err != nil {
		return m, err
	}
	return m, nil
}

// MinMaxEntry is one row of the CALC_MINMAX response table.
type MinMaxEntry struct {
	LOD, Index                             uint64
	MinScalar, MaxScalar, MinGrad, MaxGrad float64
}

func writeMinMaxTable(w io.Writer, entries []MinMaxEntry) error {
	if err := writeU64(w, uint64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeU64(w, e.LOD); err != nil {
			return err
		}
		if err := writeU64(w, e.Index); err != nil {
			return err
		}
		for _, v := range []float64{e.MinScalar, e.MaxScalar, e.MinGrad, e.MaxGrad} {
			if err := writeF64(w, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func readMinMaxTable(r io.Reader) ([]MinMaxEntry, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	out := make([]MinMaxEntry, n)
	for i := range out {
		e := &out[i]
		if e.LOD, err = readU64(r); err != nil {
			return nil, err
		}
		if e.Index, err = readU64(r); err != nil {
			return nil, err
		}
		if e.MinScalar, err = readF64(r); err != nil {
			return nil, err
		}
		if e.MaxScalar, err = readF64(r); err != nil {
			return nil, err
		}
		if e.MinGrad, err = readF64(r); err != nil {
			return nil, err
		}
		if e.MaxGrad, err = readF64(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RotationResult is the ROTATION response: the bricks now needed to render
// the given view matrix.
type RotationResult struct {
	Bricks []base.BrickKey
}

func writeRotationResult(w io.Writer, r RotationResult) error {
	if err := writeU64(w, uint64(len(r.Bricks))); err != nil {
		return err
	}
	for _, k := range r.Bricks {
		if err := writeU64(w, uint64(k.LOD)); err != nil {
			return err
		}
	}
	for _, k := range r.Bricks {
		if err := writeU64(w, k.Index); err != nil {
			return err
		}
	}
	return nil
}

func readRotationResult(r io.Reader) (RotationResult, error) {
	n, err := readU64(r)
	if err != nil {
		return RotationResult{}, err
	}
	lods := make([]uint64, n)
	for i := range lods {
		if lods[i], err = readU64(r); err != nil {
			return RotationResult{}, err
		}
	}
	idxs := make([]uint64, n)
	for i := range idxs {
		if idxs[i], err = readU64(r); err != nil {
			return RotationResult{}, err
		}
	}
	out := make([]base.BrickKey, n)
	for i := range out {
		out[i] = base.BrickKey{LOD: uint32(lods[i]), Index: idxs[i]}
	}
	return RotationResult{Bricks: out}, nil
}

func writeOpenRequest(w io.Writer, bs [3]uint64, mmMode uint64, width, height uint32, fname string) error {
	for _, v := range bs {
		if err := writeU64(w, v); err != nil {
			return err
		}
	}
	if err := writeU64(w, mmMode); err != nil {
		return err
	}
	if err := writeU32(w, width); err != nil {
		return err
	}
	if err := writeU32(w, height); err != nil {
		return err
	}
	return writeString(w, fname)
}

func readOpenRequest(r io.Reader) (bs [3]uint64, mmMode uint64, width, height uint32, fname string, err error) {
	for d := 0; d < 3; d++ {
		if bs[d], err = readU64(r); err != nil {
			return
		}
	}
	if mmMode, err = readU64(r); err != nil {
		return
	}
	if width, err = readU32(r); err != nil {
		return
	}
	if height, err = readU32(r); err != nil {
		return
	}
	fname, err = readString(r)
	return
}

var errUnknownCommand = errors.New("remote: unknown command code")
