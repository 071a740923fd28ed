// Package container implements the chained-block container format of
// spec.md §4.2 / §6: one file holding a global header followed by a
// sequence of self-describing blocks, each with a human-readable ID, a
// semantic tag, a (currently always "none") per-block compression tag, and
// an offset to the next block's header (0 for the last block).
//
// The design mirrors the footer/block-handle vocabulary of pebble's
// sstable format (see sstable.footer, sstable/block.Handle in the teacher
// repo) retargeted from "one footer pointing at one metaindex" to "every
// block pointing at the next": a container reader walks the chain exactly
// the way an sstable reader walks an index block, and a writer patches the
// predecessor's pointer exactly the way pebble's writer finalizes a
// blockHandle once a block's length is known.
package container

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"

	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/vfile"
)

// globalHeaderLen is the fixed size of the container's global header
// (spec.md §6: "Bytes 0..15"): a 4-byte magic, a format version byte, an
// endian byte, a checksum-scheme byte, and a 16-byte digest field (23 bytes
// total). A 16-byte window cannot hold the three tag bytes plus a full MD5
// digest, so the header is wider than that window; because the magic comes
// first, the layout is not readable by a parser of the 16-byte window.
const (
	globalMagic      = "IV3C" // "IV3D container", distinct from the remote protocol's "IV3D" wire magic
	globalHeaderLen  = 4 /* magic */ + 1 /* version */ + 1 /* endian */ + 1 /* checksum scheme */ + 16 /* digest */
	currentVersion   = 1
	digestFieldWidth = 16
)

// GlobalHeader is the container-wide header: format version, byte order of
// every multi-byte field in the file, the checksum scheme used for the
// whole-file integrity check, and the digest itself.
type GlobalHeader struct {
	Version   uint8
	BigEndian bool
	Checksum  base.ChecksumScheme
	Digest    [digestFieldWidth]byte
}

func encodeGlobalHeader(h GlobalHeader) []byte {
	buf := make([]byte, globalHeaderLen)
	copy(buf[0:4], globalMagic)
	buf[4] = h.Version
	if h.BigEndian {
		buf[5] = 1
	}
	buf[6] = byte(h.Checksum)
	copy(buf[7:7+digestFieldWidth], h.Digest[:])
	return buf
}

func decodeGlobalHeader(buf []byte) (GlobalHeader, error) {
	if len(buf) < globalHeaderLen {
		return GlobalHeader{}, base.FormatInvalidf("container: truncated global header (%d bytes)", len(buf))
	}
	if string(buf[0:4]) != globalMagic {
		return GlobalHeader{}, base.FormatInvalidf("container: bad magic %q", redact.Safe(buf[0:4]))
	}
	h := GlobalHeader{
		Version:   buf[4],
		BigEndian: buf[5] != 0,
		Checksum:  base.ChecksumScheme(buf[6]),
	}
	copy(h.Digest[:], buf[7:7+digestFieldWidth])
	if h.Version != currentVersion {
		return GlobalHeader{}, errors.Wrapf(base.ErrFormatInvalid,
			"container: unsupported version %d (want %d)", h.Version, currentVersion)
	}
	return h, nil
}

// blockHeader is the on-disk header preceding every block's payload
// (spec.md §6): a length-prefixed ID string, a semantic tag byte, a
// compression tag byte, and an 8-byte absolute offset to the next block's
// header (0 if this is the last block).
type blockHeader struct {
	ID           string
	Semantic     base.SemanticTag
	Compression  base.BlockCompressionScheme
	OffsetToNext uint64
}

func encodeBlockHeader(h blockHeader) []byte {
	idBytes := []byte(h.ID)
	buf := make([]byte, 2+len(idBytes)+1+1+8)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(idBytes)))
	copy(buf[2:2+len(idBytes)], idBytes)
	off := 2 + len(idBytes)
	buf[off] = byte(h.Semantic)
	buf[off+1] = byte(h.Compression)
	binary.LittleEndian.PutUint64(buf[off+2:off+10], h.OffsetToNext)
	return buf
}

// readBlockHeader reads one block header starting at the file's current
// offset, leaving the offset positioned at the start of the block's
// payload.
func readBlockHeader(f *vfile.File) (blockHeader, error) {
	var lenBuf [2]byte
	n, err := f.Read(lenBuf[:])
	if err != nil {
		return blockHeader{}, err
	}
	if n != 2 {
		return blockHeader{}, base.ShortTransferf("container: truncated block ID length")
	}
	idLen := binary.LittleEndian.Uint16(lenBuf[:])
	idBuf := make([]byte, idLen)
	n, err = f.Read(idBuf)
	if err != nil {
		return blockHeader{}, err
	}
	if uint16(n) != idLen {
		return blockHeader{}, base.ShortTransferf("container: truncated block ID (want %d got %d)", idLen, n)
	}

	var rest [10]byte
	n, err = f.Read(rest[:])
	if err != nil {
		return blockHeader{}, err
	}
	if n != 10 {
		return blockHeader{}, base.ShortTransferf("container: truncated block header tail")
	}
	return blockHeader{
		ID:           string(idBuf),
		Semantic:     base.SemanticTag(rest[0]),
		Compression:  base.BlockCompressionScheme(rest[1]),
		OffsetToNext: binary.LittleEndian.Uint64(rest[2:10]),
	}, nil
}

func blockHeaderLen(id string) int64 {
	return int64(2 + len(id) + 1 + 1 + 8)
}
