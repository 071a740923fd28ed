package container

import (
	"bytes"

	"github.com/cockroachdb/errors"

	"github.com/iv3d/brickstore/endian"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/vfile"
)

// Block is the in-memory description of one on-disk block: its header
// fields plus the byte range of its payload. Payload bytes are opaque to
// the container package; interpreting them is the business of raster,
// octree, histogram, and maxmin.
type Block struct {
	ID            string
	Semantic      base.SemanticTag
	Compression   base.BlockCompressionScheme
	HeaderOffset  int64
	PayloadOffset int64
	PayloadLength int64
}

// Container is an open container file: either a reader over an existing
// chain of blocks, or a writer appending new ones. The container owns the
// file handle exclusively (spec.md §3 "Ownership").
type Container struct {
	file   *vfile.File
	path   string
	header GlobalHeader
	blocks []Block

	// lastHeaderOffset is the header offset of the most recently appended
	// block, used to patch its OffsetToNext once the next block begins.
	lastHeaderOffset int64
	writable         bool
}

// Create creates a new container file with the given byte order and
// checksum scheme. The digest is not known until Finalize is called.
func Create(path string, bigEndian bool, checksum base.ChecksumScheme) (*Container, error) {
	f, err := vfile.Create(path, bigEndian)
	if err != nil {
		return nil, err
	}
	c := &Container{
		file: f,
		path: path,
		header: GlobalHeader{
			Version:   currentVersion,
			BigEndian: bigEndian,
			Checksum:  checksum,
		},
		lastHeaderOffset: -1,
		writable:         true,
	}
	if err := c.writeHeaderPlaceholder(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) writeHeaderPlaceholder() error {
	if err := c.file.SeekStart(0); err != nil {
		return err
	}
	buf := encodeGlobalHeader(c.header)
	n, err := c.file.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return base.ShortTransferf("container: short write of global header")
	}
	return nil
}

// Open opens an existing container for reading, walking the full block
// chain eagerly (the chain is small compared to brick payloads; every
// reader needs every block's bounds to locate the TOC block regardless).
func Open(path string) (*Container, error) {
	f, err := vfile.OpenReadOnly(path, false /* placeholder, corrected below */)
	if err != nil {
		return nil, base.OpenError(base.ErrOpenFailed, path, "container: %v", err)
	}
	size, err := f.Size()
	if err != nil {
		f.Close()
		return nil, err
	}
	if size < globalHeaderLen {
		f.Close()
		return nil, base.OpenError(base.ErrFormatInvalid, path, "container: file too small for global header (%d bytes)", size)
	}
	hdrBuf := make([]byte, globalHeaderLen)
	n, err := f.Read(hdrBuf)
	if err != nil {
		f.Close()
		return nil, err
	}
	if n != globalHeaderLen {
		f.Close()
		return nil, base.OpenError(base.ErrFormatInvalid, path, "container: short global header read (%d bytes)", n)
	}
	header, err := decodeGlobalHeader(hdrBuf)
	if err != nil {
		f.Close()
		return nil, base.OpenError(base.ErrFormatInvalid, path, "container: %v", err)
	}
	f.Close()

	// Reopen now that we know the file's true byte order.
	f, err = vfile.OpenReadOnly(path, header.BigEndian)
	if err != nil {
		return nil, base.OpenError(base.ErrOpenFailed, path, "container: %v", err)
	}

	c := &Container{file: f, path: path, header: header, lastHeaderOffset: -1}
	if err := c.walkChain(size); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) walkChain(fileSize int64) error {
	offset := int64(globalHeaderLen)
	for {
		if offset >= fileSize {
			break
		}
		if err := c.file.SeekStart(offset); err != nil {
			return err
		}
		bh, err := readBlockHeader(c.file)
		if err != nil {
			return base.OpenError(base.ErrFormatInvalid, c.path, "container: reading block header at %d: %v", offset, err)
		}
		payloadOffset := offset + blockHeaderLen(bh.ID)
		var payloadLen int64
		if bh.OffsetToNext == 0 {
			payloadLen = fileSize - payloadOffset
		} else {
			if int64(bh.OffsetToNext) < payloadOffset || int64(bh.OffsetToNext) > fileSize {
				return base.OpenError(base.ErrFormatInvalid, c.path,
					"container: block %q has out-of-range next-offset %d", bh.ID, bh.OffsetToNext)
			}
			payloadLen = int64(bh.OffsetToNext) - payloadOffset
		}
		c.blocks = append(c.blocks, Block{
			ID:            bh.ID,
			Semantic:      bh.Semantic,
			Compression:   bh.Compression,
			HeaderOffset:  offset,
			PayloadOffset: payloadOffset,
			PayloadLength: payloadLen,
		})
		if bh.OffsetToNext == 0 {
			break
		}
		offset = int64(bh.OffsetToNext)
	}
	return nil
}

// Blocks returns the chain of blocks discovered at Open, in on-disk order.
func (c *Container) Blocks() []Block { return append([]Block(nil), c.blocks...) }

// FindBySemantic returns the first block with the given semantic tag.
func (c *Container) FindBySemantic(tag base.SemanticTag) (Block, bool) {
	for _, b := range c.blocks {
		if b.Semantic == tag {
			return b, true
		}
	}
	return Block{}, false
}

// File returns the underlying random-access file, for packages (octree,
// raster, histogram, maxmin) that need to read/write typed payload bytes
// directly at a block's PayloadOffset. The container keeps ownership; the
// caller must not Close it.
func (c *Container) File() *vfile.File { return c.file }

// Header returns the container's global header.
func (c *Container) Header() GlobalHeader { return c.header }

// BeginBlock starts a new block: it patches the previous block's
// OffsetToNext (or does nothing, for the first block), writes this block's
// header with a placeholder OffsetToNext of 0, and returns the payload's
// start offset. The caller writes its payload directly via Container.File()
// and must call FinishBlock when done.
func (c *Container) BeginBlock(id string, semantic base.SemanticTag) (payloadOffset int64, err error) {
	if !c.writable {
		return 0, errors.New("container: not opened for writing")
	}
	headerOffset, err := c.file.Tell()
	if err != nil {
		return 0, err
	}
	// Patch the previous block's next-offset now that we know where this
	// one starts.
	if c.lastHeaderOffset >= 0 {
		if err := c.patchOffsetToNext(c.lastHeaderOffset, uint64(headerOffset)); err != nil {
			return 0, err
		}
		if err := c.file.SeekStart(headerOffset); err != nil {
			return 0, err
		}
	}

	buf := encodeBlockHeader(blockHeader{ID: id, Semantic: semantic, Compression: base.BlockCompressionNone})
	n, err := c.file.Write(buf)
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, base.ShortTransferf("container: short write of block header %q", id)
	}
	c.lastHeaderOffset = headerOffset
	c.blocks = append(c.blocks, Block{
		ID:            id,
		Semantic:      semantic,
		HeaderOffset:  headerOffset,
		PayloadOffset: headerOffset + int64(len(buf)),
	})
	return headerOffset + int64(len(buf)), nil
}

// FinishBlock records the payload length of the most recently begun block
// by comparing the file's current offset against that block's payload
// start. Call this once the caller has finished writing the block's
// payload (and before BeginBlock-ing the next one, which will compute its
// own PayloadLength once it, in turn, is finished or the file is
// finalized).
func (c *Container) FinishBlock() error {
	if len(c.blocks) == 0 {
		return errors.New("container: FinishBlock with no open block")
	}
	cur, err := c.file.Tell()
	if err != nil {
		return err
	}
	last := &c.blocks[len(c.blocks)-1]
	last.PayloadLength = cur - last.PayloadOffset
	return nil
}

func (c *Container) patchOffsetToNext(headerOffset int64, next uint64) error {
	if err := c.file.SeekStart(headerOffset); err != nil {
		return err
	}
	bh, err := readBlockHeader(c.file)
	if err != nil {
		return err
	}
	bh.OffsetToNext = next
	if err := c.file.SeekStart(headerOffset); err != nil {
		return err
	}
	buf := encodeBlockHeader(bh)
	n, err := c.file.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return base.ShortTransferf("container: short patch of block header offset-to-next")
	}
	return nil
}

// Finalize computes the whole-file checksum (over every byte after the
// global header) per the container's configured ChecksumScheme, rewrites
// the global header with the resulting digest, and syncs the file.
func (c *Container) Finalize() error {
	if !c.writable {
		return errors.New("container: not opened for writing")
	}
	if len(c.blocks) > 0 {
		if err := c.FinishBlock(); err != nil {
			return err
		}
	}
	size, err := c.file.Size()
	if err != nil {
		return err
	}
	if c.header.Checksum != base.ChecksumNone {
		payload := make([]byte, size-globalHeaderLen)
		n, err := c.file.ReadAt(payload, globalHeaderLen)
		if err != nil {
			return err
		}
		if int64(n) != int64(len(payload)) {
			return base.ShortTransferf("container: short read while computing checksum")
		}
		digest, _ := endian.Compute(c.header.Checksum, payload)
		c.header.Digest = digest
	}
	if err := c.writeHeaderPlaceholder(); err != nil {
		return err
	}
	return c.file.Sync()
}

// VerifyIntegrity recomputes the whole-file checksum and compares it
// against the digest recorded in the global header (spec.md §4.2
// "Integrity check recomputes the payload MD5 and compares to the header
// value"). It returns ErrChecksumMismatch on disagreement and is a no-op
// (returns nil) when the container's checksum scheme is ChecksumNone.
func (c *Container) VerifyIntegrity() error {
	if c.header.Checksum == base.ChecksumNone {
		return nil
	}
	size, err := c.file.Size()
	if err != nil {
		return err
	}
	payload := make([]byte, size-globalHeaderLen)
	n, err := c.file.ReadAt(payload, globalHeaderLen)
	if err != nil {
		return err
	}
	if int64(n) != int64(len(payload)) {
		return base.ShortTransferf("container: short read while verifying checksum")
	}
	digest, digestLen := endian.Compute(c.header.Checksum, payload)
	if !bytes.Equal(digest[:digestLen], c.header.Digest[:digestLen]) {
		return errors.Wrapf(base.ErrChecksumMismatch, "container: %s", c.path)
	}
	return nil
}

// Close closes the underlying file.
func (c *Container) Close() error {
	return c.file.Close()
}
