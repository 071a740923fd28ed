// Package base holds the types shared by every brickstore package: the
// voxel component type, brick keys and metadata, and the sentinel error
// kinds from which every package-specific error is built. It plays the same
// role as pebble's internal/base package: a dependency-light leaf that the
// rest of the module imports instead of redeclaring the same handful of
// types everywhere.
package base

import "github.com/cockroachdb/errors"

// ComponentType identifies the scalar type of one voxel component. Values
// are stable and persisted on disk (TOC block payload, §6), so the set is
// closed and the numeric values must never be renumbered.
type ComponentType uint8

// The closed set of component types a container may record, per spec.md §3.
const (
	ComponentInvalid ComponentType = iota
	ComponentI8
	ComponentU8
	ComponentI16
	ComponentU16
	ComponentI32
	ComponentU32
	ComponentI64
	ComponentU64
	ComponentF32
	ComponentF64
)

// Size returns the on-disk size in bytes of one scalar of this component
// type. It panics on an invalid or unrecognized type: callers are expected
// to have validated the type at ingress (container/TOC open), not per-voxel.
func (c ComponentType) Size() int {
	switch c {
	case ComponentI8, ComponentU8:
		return 1
	case ComponentI16, ComponentU16:
		return 2
	case ComponentI32, ComponentU32, ComponentF32:
		return 4
	case ComponentI64, ComponentU64, ComponentF64:
		return 8
	default:
		panic(errors.AssertionFailedf("base: unrecognized component type %d", c))
	}
}

// IsFloat reports whether the component type is a floating point type.
// 1D histograms are skipped for float components (spec.md §4.6).
func (c ComponentType) IsFloat() bool {
	return c == ComponentF32 || c == ComponentF64
}

// IsInteger reports whether the component type is any integer type.
func (c ComponentType) IsInteger() bool {
	return !c.IsFloat() && c != ComponentInvalid
}

// BitsPerComponent returns the bit width of an integer component type; it
// is used by the 1D histogram to size its bin table (2^bits bins). Panics
// for non-integer types, matching Size's per-API-misuse contract.
func (c ComponentType) BitsPerComponent() int {
	switch c {
	case ComponentI8, ComponentU8:
		return 8
	case ComponentI16, ComponentU16:
		return 16
	case ComponentI32, ComponentU32:
		return 32
	case ComponentI64, ComponentU64:
		return 64
	default:
		panic(errors.AssertionFailedf("base: BitsPerComponent called on non-integer type %d", c))
	}
}

func (c ComponentType) String() string {
	switch c {
	case ComponentI8:
		return "i8"
	case ComponentU8:
		return "u8"
	case ComponentI16:
		return "i16"
	case ComponentU16:
		return "u16"
	case ComponentI32:
		return "i32"
	case ComponentU32:
		return "u32"
	case ComponentI64:
		return "i64"
	case ComponentU64:
		return "u64"
	case ComponentF32:
		return "f32"
	case ComponentF64:
		return "f64"
	default:
		return "invalid"
	}
}

// VoxelFormat is the full description of a voxel: its scalar component
// type, how many components it has (scalar, vector, or small color), and
// whether the bytes on disk are big-endian. Endianness is recorded once per
// container/TOC and applied uniformly; reads transpose to host order
// (spec.md §3).
type VoxelFormat struct {
	Type           ComponentType
	ComponentCount uint32
	BigEndian      bool
}

// BytesPerVoxel is nx*ny*nz-independent: the per-voxel stride.
func (v VoxelFormat) BytesPerVoxel() int {
	return v.Type.Size() * int(v.ComponentCount)
}
