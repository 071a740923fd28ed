package octree

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
)

// encodeHeader serializes the fixed header, the LOD table, and the full ToC
// into one payload buffer (spec.md §6 TOC block layout). It is the single
// writer for both the initial WriteHeader and any later SetGlobalAspect
// rewrite, so the two can never drift out of sync.
func (o *Octree) encodeHeader() []byte {
	lodCount := len(o.LODs)
	size := tocFixedSize() + lodCount*lodEntrySize + len(o.TOC)*tocEntrySize
	buf := make([]byte, size)
	i := 0

	buf[i] = byte(o.Format.Type)
	i++
	binary.LittleEndian.PutUint32(buf[i:], o.Format.ComponentCount)
	i += 4
	buf[i] = boolByte(o.Format.BigEndian)
	i++
	buf[i] = boolByte(o.HasNormals)
	i++
	for d := 0; d < 3; d++ {
		binary.LittleEndian.PutUint64(buf[i:], o.FullSize[d])
		i += 8
	}
	for d := 0; d < 3; d++ {
		binary.LittleEndian.PutUint64(buf[i:], o.MaxBrickSize[d])
		i += 8
	}
	binary.LittleEndian.PutUint32(buf[i:], o.Overlap)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], o.Version)
	i += 4
	buf[i] = byte(o.Layout)
	i++
	binary.LittleEndian.PutUint64(buf[i:], uint64(lodCount))
	i += 8

	for _, l := range o.LODs {
		for d := 0; d < 3; d++ {
			binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(l.Aspect[d]))
			i += 8
		}
		for d := 0; d < 3; d++ {
			binary.LittleEndian.PutUint64(buf[i:], l.PixelSize[d])
			i += 8
		}
		for d := 0; d < 3; d++ {
			binary.LittleEndian.PutUint64(buf[i:], l.BrickCount[d])
			i += 8
		}
		binary.LittleEndian.PutUint64(buf[i:], l.LODOffset)
		i += 8
	}

	for _, e := range o.TOC {
		binary.LittleEndian.PutUint64(buf[i:], e.Offset)
		i += 8
		binary.LittleEndian.PutUint64(buf[i:], e.Length)
		i += 8
		binary.LittleEndian.PutUint32(buf[i:], uint32(e.Compression))
		i += 4
		binary.LittleEndian.PutUint64(buf[i:], e.ValidLength)
		i += 8
		binary.LittleEndian.PutUint32(buf[i:], e.AtlasW)
		i += 4
		binary.LittleEndian.PutUint32(buf[i:], e.AtlasH)
		i += 4
	}
	return buf
}

func tocFixedSize() int {
	return 1 + 4 + 1 + 1 + 8*3 + 8*3 + 4 + 4 + 1 + 8
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// decodeHeader parses a TOC block payload written by encodeHeader.
func decodeHeader(buf []byte) (*Octree, error) {
	if len(buf) < tocFixedSize() {
		return nil, base.FormatInvalidf("octree: truncated TOC header (%d bytes)", len(buf))
	}
	o := &Octree{}
	i := 0
	o.Format.Type = base.ComponentType(buf[i])
	i++
	o.Format.ComponentCount = binary.LittleEndian.Uint32(buf[i:])
	i += 4
	o.Format.BigEndian = buf[i] != 0
	i++
	o.HasNormals = buf[i] != 0
	i++
	for d := 0; d < 3; d++ {
		o.FullSize[d] = binary.LittleEndian.Uint64(buf[i:])
		i += 8
	}
	for d := 0; d < 3; d++ {
		o.MaxBrickSize[d] = binary.LittleEndian.Uint64(buf[i:])
		i += 8
	}
	o.Overlap = binary.LittleEndian.Uint32(buf[i:])
	i += 4
	o.Version = binary.LittleEndian.Uint32(buf[i:])
	i += 4
	o.Layout = LayoutOrder(buf[i])
	i++
	lodCount := binary.LittleEndian.Uint64(buf[i:])
	i += 8

	if len(buf) < i+int(lodCount)*lodEntrySize {
		return nil, base.FormatInvalidf("octree: truncated TOC LOD table (%d LODs)", lodCount)
	}
	o.LODs = make([]layout.LOD, lodCount)
	for li := range o.LODs {
		var l layout.LOD
		for d := 0; d < 3; d++ {
			l.Aspect[d] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i:]))
			i += 8
		}
		for d := 0; d < 3; d++ {
			l.PixelSize[d] = binary.LittleEndian.Uint64(buf[i:])
			i += 8
		}
		for d := 0; d < 3; d++ {
			l.BrickCount[d] = binary.LittleEndian.Uint64(buf[i:])
			i += 8
		}
		l.LODOffset = binary.LittleEndian.Uint64(buf[i:])
		i += 8
		o.LODs[li] = l
	}
	o.Aspect = o.LODs[0].Aspect

	var total uint64
	for _, l := range o.LODs {
		total += l.TotalBricks()
	}
	if len(buf) < i+int(total)*tocEntrySize {
		return nil, base.FormatInvalidf("octree: truncated TOC entries (want %d)", total)
	}
	o.TOC = make([]TOCEntry, total)
	for ti := range o.TOC {
		var e TOCEntry
		e.Offset = binary.LittleEndian.Uint64(buf[i:])
		i += 8
		e.Length = binary.LittleEndian.Uint64(buf[i:])
		i += 8
		e.Compression = base.CompressionTag(binary.LittleEndian.Uint32(buf[i:]))
		i += 4
		e.ValidLength = binary.LittleEndian.Uint64(buf[i:])
		i += 8
		e.AtlasW = binary.LittleEndian.Uint32(buf[i:])
		i += 4
		e.AtlasH = binary.LittleEndian.Uint32(buf[i:])
		i += 4
		o.TOC[ti] = e
	}
	return o, nil
}

// WriteHeader begins a new "toc-octree" block in c, writes the encoded
// header+LOD-table+ToC into it (with every ToC entry still zeroed), and
// finishes the block. The ToC entries must be patched in place afterward
// with SetTOCEntry as the caller (convert.Converter) writes each brick's
// body to a location it tracks itself — WriteHeader does not know where
// brick bodies will live, only the converter does, since it interleaves
// brick writes with compression decisions.
func (o *Octree) WriteHeader(c *container.Container) error {
	payloadOffset, err := c.BeginBlock("toc-octree", base.SemanticTOCOctree)
	if err != nil {
		return err
	}
	buf := o.encodeHeader()
	n, err := c.File().Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return base.ShortTransferf("octree: short write of TOC header+table")
	}
	if err := c.FinishBlock(); err != nil {
		return err
	}
	o.c = c
	o.payloadOffset = payloadOffset
	o.bricksBase = payloadOffset + int64(len(buf))
	o.writable = true
	return nil
}

// RewriteTOCEntries re-serializes only the ToC and patches it in place;
// used by the converter once every brick body has been written and every
// entry's final (offset, length, compression) is known.
func (o *Octree) RewriteTOCEntries() error {
	if o.c == nil {
		return errors.New("octree: RewriteTOCEntries called before WriteHeader")
	}
	buf := o.encodeHeader()
	n, err := o.c.File().WriteAt(buf, o.payloadOffset)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return base.ShortTransferf("octree: short write of TOC entries")
	}
	return nil
}

// BricksBase returns the absolute file offset immediately following the
// TOC block's header+table, where brick bodies begin. The converter writes
// brick bytes starting here and records offsets in ToC entries relative to
// this base.
func (o *Octree) BricksBase() int64 { return o.bricksBase }

// Open reads an existing "toc-octree" block from c and returns a read-only
// Octree bound to it.
func Open(c *container.Container) (*Octree, error) {
	blk, ok := c.FindBySemantic(base.SemanticTOCOctree)
	if !ok {
		return nil, base.FormatInvalidf("octree: container has no toc-octree block")
	}
	buf := make([]byte, blk.PayloadLength)
	n, err := c.File().ReadAt(buf, blk.PayloadOffset)
	if err != nil {
		return nil, err
	}
	if int64(n) != blk.PayloadLength {
		return nil, base.ShortTransferf("octree: short read of TOC block (%d of %d bytes)", n, blk.PayloadLength)
	}
	o, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}
	o.c = c
	o.payloadOffset = blk.PayloadOffset
	o.bricksBase = blk.PayloadOffset + int64(tocFixedSize()+len(o.LODs)*lodEntrySize+len(o.TOC)*tocEntrySize)
	o.writable = false
	return o, nil
}
