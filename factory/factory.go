// Package factory implements the dataset factory of spec.md §4.11: a
// registry of readers consulted in insertion order, each given the first
// 512 bytes of a candidate file and asked whether it recognizes the
// format. This mirrors pebble's own format-sniffing pattern (e.g.
// sstable.NewReader dispatching on a footer magic) generalized to a
// pluggable registry instead of a single hardcoded format. RegisterDefaults
// registers only the bricked container format; the legacy raster format
// (spec.md §4.3) has no magic to sniff and is not registered.
package factory

import (
	"io"
	"os"

	"github.com/iv3d/brickstore/internal/base"
)

// sniffLen is the number of leading bytes every reader's CanRead predicate
// is shown, per spec.md §4.11 "sniffs the first 512 bytes".
const sniffLen = 512

// Reader is one entry in the factory registry: a name for diagnostics, a
// sniff predicate, and an Open constructor invoked once CanRead accepts.
type Reader struct {
	Name    string
	CanRead func(fname string, firstBlock []byte) bool
	Open    func(fname string) (interface{}, error)
}

// Factory holds readers in the order they were registered; Open tries them
// in that order and returns the first one that accepts the file.
type Factory struct {
	readers []Reader
}

// New returns an empty factory. Use Register to build up the chain; order
// matters; the first match wins.
func New() *Factory {
	return &Factory{}
}

// Register appends r to the chain.
func (f *Factory) Register(r Reader) {
	f.readers = append(f.readers, r)
}

// Open sniffs fname's first sniffLen bytes and walks the registry in
// insertion order, returning the first reader's opened dataset. It fails
// with a typed ErrOpenFailed when no reader accepts the file (spec.md
// §4.11 "Fails with a typed open-error when no reader accepts").
func (f *Factory) Open(fname string) (interface{}, string, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, "", base.OpenError(base.ErrOpenFailed, fname, "factory: %v", err)
	}
	defer file.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, "", base.OpenError(base.ErrOpenFailed, fname, "factory: sniffing first %d bytes: %v", sniffLen, err)
	}
	firstBlock := buf[:n]

	for _, r := range f.readers {
		if r.CanRead(fname, firstBlock) {
			ds, err := r.Open(fname)
			if err != nil {
				return nil, r.Name, err
			}
			return ds, r.Name, nil
		}
	}
	return nil, "", base.OpenError(base.ErrOpenFailed, fname, "factory: no registered reader recognizes this file")
}
