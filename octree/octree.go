// Package octree implements the Extended Octree / TOC block of spec.md
// §4.4 — the heart of the storage engine: fixed-size 3D bricks with ghost
// overlap, a table of contents mapping brick keys to on-disk
// (offset, length, compression, valid_length, atlas_size), a multi-LOD
// layout, and optional per-brick zlib compression.
//
// The on-disk shape (a footer-free sequence of fixed headers followed by a
// variable-length table, followed by raw payload bytes) is grounded on
// pebble's sstable block-handle/footer vocabulary (see the teacher's
// sstable/table.go): a ToC entry here plays exactly the role of a
// sstable.BlockHandle, an (offset, length) pair locating a chunk of bytes
// whose compression is self-described rather than assumed.
package octree

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/cockroachdb/errors"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
)

// LayoutOrder selects the on-disk brick ordering (spec.md §4.4). Readers
// must not assume offsets are monotone in index for any order other than
// LTScanline.
type LayoutOrder uint8

const (
	LTScanline LayoutOrder = iota
	LTMorton
	LTHilbert
	LTRandom
)

// TOCEntry is one table-of-contents record: where a brick's bytes live,
// how long they are on disk, how they're compressed, how many of those
// bytes are valid (for streaming partial bricks), and, if atlas-packed,
// the 2D atlas dimensions (spec.md §3 "Table of Contents (ToC)").
type TOCEntry struct {
	Offset      uint64 // relative to the brick-body region, not absolute file offset
	Length      uint64
	Compression base.CompressionTag
	ValidLength uint64
	AtlasW      uint32
	AtlasH      uint32
}

const tocEntrySize = 8 + 8 + 4 + 8 + 4 + 4 // offset, length, compression(u32), valid_length, atlas_w, atlas_h

const lodEntrySize = 8*3 /* aspect */ + 8*3 /* pixel_size */ + 8*3 /* brick_count */ + 8 /* lod_offset */

// Octree is an open Extended Octree / TOC block: either a reader over an
// existing container's TOC block, or a writer building a fresh one. It
// owns a reference to a container (spec.md §3 "Ownership": "the TOC block
// a non-owning handle to the dataset's file wrapper"); octree.Octree itself
// is non-owning of the *container.Container — the caller (convert.Converter
// or dataset.Dataset) owns the container's lifetime.
type Octree struct {
	Format       base.VoxelFormat
	HasNormals   bool
	FullSize     [3]uint64
	Aspect       [3]float64
	MaxBrickSize [3]uint64
	Overlap      uint32
	Version      uint32
	Layout       LayoutOrder

	LODs []layout.LOD
	TOC  []TOCEntry

	c             *container.Container
	payloadOffset int64 // absolute offset of the TOC block's payload start
	bricksBase    int64 // absolute offset where brick bodies begin
	writable      bool
}

// New configures a fresh octree for writing: it validates the invariants of
// spec.md §3 and computes the LOD table and a zeroed ToC skeleton. The
// caller (convert.Converter) first calls WriteHeader to persist the header
// and zeroed ToC as a new container block, then writes brick bodies at
// offsets relative to BricksBase while filling in ToC entries, and finally
// calls RewriteTOCEntries to store the completed ToC in place.
func New(
	format base.VoxelFormat,
	hasNormals bool,
	fullSize [3]uint64,
	aspect [3]float64,
	maxBrickSize [3]uint64,
	overlap uint32,
	layoutOrder LayoutOrder,
) (*Octree, error) {
	lods, err := layout.ComputeLODTable(fullSize, aspect, maxBrickSize, overlap)
	if err != nil {
		return nil, err
	}
	var total uint64
	for _, l := range lods {
		total += l.TotalBricks()
	}
	o := &Octree{
		Format:       format,
		HasNormals:   hasNormals,
		FullSize:     fullSize,
		Aspect:       aspect,
		MaxBrickSize: maxBrickSize,
		Overlap:      overlap,
		Version:      1,
		Layout:       layoutOrder,
		LODs:         lods,
		TOC:          make([]TOCEntry, total),
		writable:     true,
	}
	return o, nil
}

// EffectiveBrickSize returns MaxBrickSize minus overlap on both sides.
func (o *Octree) EffectiveBrickSize() [3]uint64 {
	return layout.EffectiveBrickSize(o.MaxBrickSize, o.Overlap)
}

// BrickCount returns the total brick count of one LOD.
func (o *Octree) BrickCount(lod uint32) uint64 {
	if int(lod) >= len(o.LODs) {
		return 0
	}
	return o.LODs[lod].TotalBricks()
}

// LODSize returns the pixel (voxel) size of the full volume at the given
// LOD.
func (o *Octree) LODSize(lod uint32) [3]uint64 {
	return o.LODs[lod].PixelSize
}

// ComputeBrickSize returns the brick's voxel count per axis, including
// ghost overlap.
func (o *Octree) ComputeBrickSize(key base.BrickKey) ([3]uint32, error) {
	l, coord, err := o.resolve(key)
	if err != nil {
		return [3]uint32{}, err
	}
	return layout.BrickVoxelCount(l, o.MaxBrickSize, o.EffectiveBrickSize(), o.Overlap, coord), nil
}

// ComputeBrickSizeMust is ComputeBrickSize for callers (the converter) that
// construct keys from the octree's own LOD table and therefore know the
// key is valid; it panics on error instead of threading one through
// tight inner loops.
func (o *Octree) ComputeBrickSizeMust(key base.BrickKey) [3]uint32 {
	n, err := o.ComputeBrickSize(key)
	if err != nil {
		panic(errors.AssertionFailedf("octree: ComputeBrickSizeMust on self-constructed key %+v: %v", key, err))
	}
	return n
}

// BrickAspect returns the brick's world-space center and extents.
func (o *Octree) BrickAspect(key base.BrickKey) (center, extent [3]float32, err error) {
	l, coord, err := o.resolve(key)
	if err != nil {
		return center, extent, err
	}
	center, extent = layout.BrickCenterExtent(l, o.EffectiveBrickSize(), l.Aspect, coord)
	return center, extent, nil
}

func (o *Octree) resolve(key base.BrickKey) (layout.LOD, base.BrickCoord3D, error) {
	if int(key.LOD) >= len(o.LODs) {
		return layout.LOD{}, base.BrickCoord3D{}, base.OutOfRangef("octree: lod %d out of range (have %d)", key.LOD, len(o.LODs))
	}
	l := o.LODs[key.LOD]
	if key.Index >= l.LODOffset+l.TotalBricks() || key.Index < l.LODOffset {
		return layout.LOD{}, base.BrickCoord3D{}, base.OutOfRangef("octree: index %d out of range for lod %d", key.Index, key.LOD)
	}
	return l, layout.IndexToBrickCoords(l, key.Index), nil
}

// BrickCoordsToIndex converts 3D brick coordinates at a LOD to the
// canonical linear index (spec.md §4.4).
func (o *Octree) BrickCoordsToIndex(lod uint32, coord base.BrickCoord3D) uint64 {
	return layout.BrickCoordsToIndex(o.LODs[lod], coord)
}

// IndexToBrickCoords inverts BrickCoordsToIndex.
func (o *Octree) IndexToBrickCoords(lod uint32, index uint64) base.BrickCoord3D {
	return layout.IndexToBrickCoords(o.LODs[lod], index)
}

// TOCForKey returns the ToC entry for a brick key.
func (o *Octree) TOCForKey(key base.BrickKey) (TOCEntry, error) {
	if _, _, err := o.resolve(key); err != nil {
		return TOCEntry{}, err
	}
	return o.TOC[key.Index], nil
}

// SetTOCEntry installs the ToC entry for a brick index; used by the
// converter as it writes brick bodies.
func (o *Octree) SetTOCEntry(index uint64, e TOCEntry) {
	o.TOC[index] = e
}

// uncompressedBrickBytes returns the uncompressed on-disk byte size for a
// brick: nx*ny*nz*components*sizeof(component), per spec.md §3.
func (o *Octree) uncompressedBrickBytes(key base.BrickKey) (int, error) {
	n, err := o.ComputeBrickSize(key)
	if err != nil {
		return 0, err
	}
	return int(n[0]) * int(n[1]) * int(n[2]) * o.Format.BytesPerVoxel(), nil
}

// GetBrickData decompresses (if needed) and copies a brick's bytes into
// dst, which must be exactly the brick's uncompressed byte size (spec.md
// §4.4 "get_brick_data").
func (o *Octree) GetBrickData(dst []byte, key base.BrickKey) error {
	want, err := o.uncompressedBrickBytes(key)
	if err != nil {
		return err
	}
	if len(dst) != want {
		return base.ConfigInvalidf("octree: dst has %d bytes, brick needs exactly %d", len(dst), want)
	}
	e, err := o.TOCForKey(key)
	if err != nil {
		return err
	}
	raw := make([]byte, e.Length)
	n, err := o.c.File().ReadAt(raw, o.bricksBase+int64(e.Offset))
	if err != nil {
		return err
	}
	if uint64(n) != e.Length {
		return base.ShortTransferf("octree: short read of brick %+v (%d of %d bytes)", key, n, e.Length)
	}
	switch e.Compression {
	case base.CompressionNone:
		copy(dst, raw)
	case base.CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return errors.Wrapf(err, "octree: zlib init for brick %+v", key)
		}
		defer zr.Close()
		n, err := io.ReadFull(zr, dst)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return errors.Wrapf(err, "octree: zlib decompress brick %+v", key)
		}
		if n != len(dst) {
			return base.ShortTransferf("octree: zlib decompressed %d of %d bytes for brick %+v", n, len(dst), key)
		}
	case base.CompressionJPEGSlice:
		return base.Unsupportedf("octree: jpeg-slice compression is reserved, no decoder is implemented")
	default:
		return base.Unsupportedf("octree: unrecognized compression tag %d", e.Compression)
	}
	return nil
}

// SetGlobalAspect mutates the header's volume_aspect field in place and
// rewrites it to disk; the octree must have been opened read-write
// (spec.md §4.4 "requires the file be reopened read-write").
func (o *Octree) SetGlobalAspect(v [3]float64) error {
	if !o.writable {
		return errors.New("octree: SetGlobalAspect requires a writable octree (reopen read-write)")
	}
	o.Aspect = v
	// Recompute LOD aspects: LOD 0 uses v directly, and each coarser LOD
	// scales by the same ratio it already used to derive its own aspect
	// from LOD 0's, so we simply rebuild the table from scratch.
	lods, err := layout.ComputeLODTable(o.FullSize, v, o.MaxBrickSize, o.Overlap)
	if err != nil {
		return err
	}
	o.LODs = lods
	return o.rewriteHeader()
}

func (o *Octree) rewriteHeader() error {
	if o.c == nil {
		return nil // not yet attached to a container; New()+WriteHeader will pick up the new aspect.
	}
	buf := o.encodeHeader()
	n, err := o.c.File().WriteAt(buf, o.payloadOffset)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return base.ShortTransferf("octree: short write while rewriting header")
	}
	return nil
}

