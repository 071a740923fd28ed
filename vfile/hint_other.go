//go:build !linux

package vfile

import "os"

// hint is a no-op on platforms without a fadvise-equivalent syscall wired
// up; hints are always advisory (spec.md §4.1).
func hint(f *os.File, kind HintKind, offset, length int64) {}
