package base

// SemanticTag identifies what a container block holds. The set is closed
// (spec.md §4.2) and the numeric values are persisted on disk; never
// renumber or reorder them.
type SemanticTag uint8

const (
	SemanticEmpty SemanticTag = iota
	SemanticRegularNDGrid
	SemanticNDTransferFunction
	SemanticPreviewImage
	SemanticKeyValuePairs
	SemanticHistogram1D
	SemanticHistogram2D
	SemanticBrickMaxMin
	SemanticGeometry
	SemanticTOCOctree
)

func (t SemanticTag) String() string {
	switch t {
	case SemanticEmpty:
		return "empty"
	case SemanticRegularNDGrid:
		return "regular-n-d-grid"
	case SemanticNDTransferFunction:
		return "n-d-transfer-function"
	case SemanticPreviewImage:
		return "preview-image"
	case SemanticKeyValuePairs:
		return "key-value-pairs"
	case SemanticHistogram1D:
		return "1d-histogram"
	case SemanticHistogram2D:
		return "2d-histogram"
	case SemanticBrickMaxMin:
		return "brick-maxmin"
	case SemanticGeometry:
		return "geometry"
	case SemanticTOCOctree:
		return "toc-octree"
	default:
		return "unknown"
	}
}

// BlockCompressionScheme is the block-level compression tag recorded in a
// container block header. Per spec.md §4.2, only "none" exists at the
// container-block level; per-brick compression lives one layer down, inside
// the TOC-octree block's payload (CompressionTag, below).
type BlockCompressionScheme uint8

const (
	BlockCompressionNone BlockCompressionScheme = iota
)

// CompressionTag is the per-brick compression scheme recorded in a ToC
// entry (spec.md §3 "Table of Contents"). CompressionJPEGSlice is reserved:
// Open Question #2 notes no encoder/decoder exists in the source this spec
// was distilled from, so brickstore recognizes but never produces it, and
// rejects it on read with ErrUnsupported.
type CompressionTag uint8

const (
	CompressionNone CompressionTag = iota
	CompressionZlib
	CompressionJPEGSlice
)

func (c CompressionTag) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionJPEGSlice:
		return "jpeg-slice"
	default:
		return "unknown"
	}
}

// ChecksumScheme is the container-global checksum scheme recorded in the
// file header (spec.md §6: "checksum-scheme enum, optional MD5"). xxhash64
// is an addition over the literal spec text: it gives large containers a
// fast option alongside MD5 without changing the header layout (still one
// scheme byte plus a fixed-size digest, zero-padded when the scheme is
// smaller than 16 bytes or absent).
type ChecksumScheme uint8

const (
	ChecksumNone ChecksumScheme = iota
	ChecksumMD5
	ChecksumXXHash64
)

// DigestLen returns the on-disk digest length for a checksum scheme. The
// container header always reserves 16 bytes for the digest (MD5's size);
// xxhash64's 8-byte digest is stored left-justified with the remainder
// zero-padded, and "none" stores sixteen zero bytes.
func (c ChecksumScheme) DigestLen() int {
	switch c {
	case ChecksumMD5:
		return 16
	case ChecksumXXHash64:
		return 8
	default:
		return 0
	}
}
