// Package vfile implements the large, seekable, random-access file
// abstraction of spec.md §4.1: 64-bit offsets, typed scalar/sequence
// read-write with endian swap, bulk transfer with a returned byte count
// instead of a hard failure on short reads, and non-committal access-pattern
// hints. It is the lowest layer of the storage engine: container, octree,
// and raster all open their backing file through vfile.Open/Create.
//
// Failure is observable, not exceptional: a short read or write returns a
// count less than requested rather than an error when the cause is simply
// reaching end of file (spec.md §4.1, §7 I/O-short). vfile panics only on
// API misuse — operating on a closed file — matching the "exceptions for
// control flow only at construction boundaries" design note (spec.md §9).
package vfile

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/iv3d/brickstore/endian"
)

// HintKind is a non-committal access-pattern hint passed to File.Hint. Each
// kind maps to the matching posix_fadvise/madvise advice where the OS
// provides one; elsewhere Hint is a silent no-op.
type HintKind int

const (
	// HintSequential advises the OS the caller will read forward through
	// the region with no reuse.
	HintSequential HintKind = iota
	// HintDontNeed advises the OS the region will not be accessed again
	// soon and its cache pages may be dropped.
	HintDontNeed
	// HintWillNeed advises the OS to prefetch the region.
	HintWillNeed
)

// File is a random-access file with 64-bit offsets and endian-aware typed
// I/O. The zero value is not usable; construct with Open, Create, or
// OpenAppend.
type File struct {
	f         *os.File
	bigEndian bool // true iff the file's on-disk byte order is big-endian
	closed    bool
}

// hostIsLittleEndian is resolved once; brickstore only targets
// little/big-endian host architectures, never PDP-endian or similar.
var hostIsLittleEndian = true

// Open opens path for reading and writing (creating it if create is true),
// recording whether the file's on-disk scalars are big-endian so typed
// reads/writes know whether to swap to host order.
func Open(path string, create bool, bigEndian bool) (*File, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "vfile: open %s", path)
	}
	return &File{f: f, bigEndian: bigEndian}, nil
}

// OpenReadOnly opens path strictly for reading.
func OpenReadOnly(path string, bigEndian bool) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "vfile: open %s", path)
	}
	return &File{f: f, bigEndian: bigEndian}, nil
}

// Create truncates (or creates) path for writing.
func Create(path string, bigEndian bool) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "vfile: create %s", path)
	}
	return &File{f: f, bigEndian: bigEndian}, nil
}

// OpenAppend opens path for writing at its current end, creating it if
// necessary.
func OpenAppend(path string, bigEndian bool) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "vfile: open-append %s", path)
	}
	return &File{f: f, bigEndian: bigEndian}, nil
}

// IsOpen reports whether the file is still open.
func (f *File) IsOpen() bool {
	return f != nil && !f.closed
}

func (f *File) checkOpen() {
	if !f.IsOpen() {
		panic("vfile: operation on closed file")
	}
}

// Close closes the underlying descriptor. Closing an already-closed File is
// a no-op (matches os.File).
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.f.Close()
}

// Truncate resizes the file to size bytes.
func (f *File) Truncate(size int64) error {
	f.checkOpen()
	return f.f.Truncate(size)
}

// SeekStart seeks to an absolute offset from the start of the file.
func (f *File) SeekStart(offset int64) error {
	f.checkOpen()
	_, err := f.f.Seek(offset, io.SeekStart)
	return err
}

// SeekEnd seeks to offset bytes from the end of the file (offset is
// typically <= 0).
func (f *File) SeekEnd(offset int64) error {
	f.checkOpen()
	_, err := f.f.Seek(offset, io.SeekEnd)
	return err
}

// SeekTo is an alias of SeekStart kept for readability at call sites that
// read like "seek to this known offset" (spec.md §4.1 seek_to(offset)).
func (f *File) SeekTo(offset int64) error { return f.SeekStart(offset) }

// Tell returns the current offset from the start of the file.
func (f *File) Tell() (int64, error) {
	f.checkOpen()
	return f.f.Seek(0, io.SeekCurrent)
}

// Size returns the current file size.
func (f *File) Size() (int64, error) {
	f.checkOpen()
	fi, err := f.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Read reads up to len(p) bytes at the file's current offset, returning the
// number of bytes actually transferred. A short read (n < len(p)) is not an
// error by itself; io.EOF/io.ErrUnexpectedEOF are folded into (n, nil) so
// callers uniformly check the returned count, per spec.md §4.1.
func (f *File) Read(p []byte) (int, error) {
	f.checkOpen()
	n, err := io.ReadFull(f.f, p)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return n, err
}

// ReadAt is the positioned counterpart of Read; it does not disturb the
// file's current offset.
func (f *File) ReadAt(p []byte, offset int64) (int, error) {
	f.checkOpen()
	n, err := f.f.ReadAt(p, offset)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return n, err
}

// Write writes p at the file's current offset, returning bytes transferred.
func (f *File) Write(p []byte) (int, error) {
	f.checkOpen()
	return f.f.Write(p)
}

// WriteAt is the positioned counterpart of Write.
func (f *File) WriteAt(p []byte, offset int64) (int, error) {
	f.checkOpen()
	return f.f.WriteAt(p, offset)
}

// Sync flushes any OS-buffered writes to stable storage.
func (f *File) Sync() error {
	f.checkOpen()
	return f.f.Sync()
}

// --- typed scalar I/O -------------------------------------------------

// ReadU32 reads one little/big-endian (per the File's recorded byte order)
// uint32 at the current offset and swaps it to host order.
func (f *File) ReadU32() (uint32, error) {
	var buf [4]byte
	n, err := f.Read(buf[:])
	if err != nil {
		return 0, err
	}
	if n != 4 {
		return 0, errors.Wrapf(io.ErrUnexpectedEOF, "vfile: short read of u32 (%d bytes)", n)
	}
	v := hostU32(buf[:])
	if f.needsSwap() {
		v = endian.Swap32(v)
	}
	return v, nil
}

// WriteU32 writes v as 4 bytes in the file's recorded byte order.
func (f *File) WriteU32(v uint32) error {
	if f.needsSwap() {
		v = endian.Swap32(v)
	}
	var buf [4]byte
	putHostU32(buf[:], v)
	n, err := f.Write(buf[:])
	if err != nil {
		return err
	}
	if n != 4 {
		return errors.Wrapf(io.ErrShortWrite, "vfile: short write of u32 (%d bytes)", n)
	}
	return nil
}

// ReadU64 reads one uint64 at the current offset.
func (f *File) ReadU64() (uint64, error) {
	var buf [8]byte
	n, err := f.Read(buf[:])
	if err != nil {
		return 0, err
	}
	if n != 8 {
		return 0, errors.Wrapf(io.ErrUnexpectedEOF, "vfile: short read of u64 (%d bytes)", n)
	}
	v := hostU64(buf[:])
	if f.needsSwap() {
		v = endian.Swap64(v)
	}
	return v, nil
}

// WriteU64 writes v as 8 bytes in the file's recorded byte order.
func (f *File) WriteU64(v uint64) error {
	if f.needsSwap() {
		v = endian.Swap64(v)
	}
	var buf [8]byte
	putHostU64(buf[:], v)
	n, err := f.Write(buf[:])
	if err != nil {
		return err
	}
	if n != 8 {
		return errors.Wrapf(io.ErrShortWrite, "vfile: short write of u64 (%d bytes)", n)
	}
	return nil
}

// needsSwap reports whether the file's on-disk byte order differs from the
// host's, i.e. whether typed I/O must swap bytes.
func (f *File) needsSwap() bool {
	return f.bigEndian == hostIsLittleEndian
}

// Hint advises the OS about the caller's intended access pattern for
// [offset, offset+length). It is always safe to ignore; see hint_linux.go
// and hint_other.go for the platform-specific implementation.
func (f *File) Hint(kind HintKind, offset, length int64) {
	f.checkOpen()
	hint(f.f, kind, offset, length)
}

// --- static helpers ----------------------------------------------------

// DefaultCopyBufferSize is the default block size CopyFile and FilesEqual
// use to stream data, per spec.md §4.1 ("a configurable block buffer,
// default a few megabytes").
const DefaultCopyBufferSize = 4 << 20

// CopyFile copies src to dst using a bufSize-byte buffer (DefaultCopyBufferSize
// if bufSize <= 0).
func CopyFile(dstPath, srcPath string, bufSize int) (int64, error) {
	if bufSize <= 0 {
		bufSize = DefaultCopyBufferSize
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, errors.Wrapf(err, "vfile: copy: open src %s", srcPath)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errors.Wrapf(err, "vfile: copy: create dst %s", dstPath)
	}
	defer dst.Close()

	buf := make([]byte, bufSize)
	return io.CopyBuffer(dst, src, buf)
}

// FilesEqual byte-compares two files using a bufSize-byte buffer pair
// (DefaultCopyBufferSize if bufSize <= 0). It returns as soon as a
// difference is found or one file runs out before the other.
func FilesEqual(aPath, bPath string, bufSize int) (bool, error) {
	if bufSize <= 0 {
		bufSize = DefaultCopyBufferSize
	}
	a, err := os.Open(aPath)
	if err != nil {
		return false, errors.Wrapf(err, "vfile: compare: open %s", aPath)
	}
	defer a.Close()
	b, err := os.Open(bPath)
	if err != nil {
		return false, errors.Wrapf(err, "vfile: compare: open %s", bPath)
	}
	defer b.Close()

	bufA := make([]byte, bufSize)
	bufB := make([]byte, bufSize)
	for {
		nA, errA := io.ReadFull(a, bufA)
		nB, errB := io.ReadFull(b, bufB)
		if nA != nB {
			return false, nil
		}
		for i := 0; i < nA; i++ {
			if bufA[i] != bufB[i] {
				return false, nil
			}
		}
		aDone := errors.Is(errA, io.EOF) || errors.Is(errA, io.ErrUnexpectedEOF)
		bDone := errors.Is(errB, io.EOF) || errors.Is(errB, io.ErrUnexpectedEOF)
		if aDone != bDone {
			return false, nil
		}
		if aDone {
			return true, nil
		}
		if errA != nil {
			return false, errA
		}
		if errB != nil {
			return false, errB
		}
	}
}
