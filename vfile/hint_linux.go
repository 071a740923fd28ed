//go:build linux

package vfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// hint maps a HintKind onto posix_fadvise on Linux. Hints are advisory: any
// error from the syscall is swallowed, matching spec.md §4.1's description
// of Hint as "non-committal".
func hint(f *os.File, kind HintKind, offset, length int64) {
	var advice int
	switch kind {
	case HintSequential:
		advice = unix.FADV_SEQUENTIAL
	case HintDontNeed:
		advice = unix.FADV_DONTNEED
	case HintWillNeed:
		advice = unix.FADV_WILLNEED
	default:
		return
	}
	_ = unix.Fadvise(int(f.Fd()), offset, length, advice)
}
