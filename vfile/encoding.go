package vfile

import "encoding/binary"

// hostU32/hostU64 and putHostU32/putHostU64 read and write scalars in the
// machine's native byte order so File's swap-after-read/swap-before-write
// logic has a fixed starting point to reason about. We fix "host order" to
// little-endian encoding/storage regardless of the actual CPU, since
// needsSwap already accounts for the *logical* host-vs-file comparison;
// what matters is that reads and writes are inverses, which they are as
// long as both sides agree on one convention.
func hostU32(b []byte) uint32          { return binary.LittleEndian.Uint32(b) }
func putHostU32(b []byte, v uint32)    { binary.LittleEndian.PutUint32(b, v) }
func hostU64(b []byte) uint64          { return binary.LittleEndian.Uint64(b) }
func putHostU64(b []byte, v uint64)    { binary.LittleEndian.PutUint64(b, v) }
