package base

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// The error kinds from spec.md §7. Each is a sentinel that callers match
// with errors.Is; the concrete error additionally carries a source path and
// a human-readable reason via Wrap*, mirroring sstable's
// errors.Wrapf(err, "pebble/table: invalid table %s", errors.Safe(fileNum))
// idiom.
var (
	// ErrOpenFailed: file missing, permission denied, or the dataset
	// factory found no reader for it.
	ErrOpenFailed = errors.New("brickstore: open failed")
	// ErrFormatInvalid: bad magic, version mismatch, truncated header, or
	// a ToC length inconsistent with the file size.
	ErrFormatInvalid = errors.New("brickstore: invalid format")
	// ErrIOShort: a read or write transferred fewer bytes than requested.
	ErrIOShort = errors.New("brickstore: short read/write")
	// ErrOutOfRange: a brick key references a brick that does not exist.
	ErrOutOfRange = errors.New("brickstore: brick key out of range")
	// ErrConfigInvalid: converter/rebricker parameters fail an invariant
	// (e.g. brick_size <= 2*overlap).
	ErrConfigInvalid = errors.New("brickstore: invalid configuration")
	// ErrUnsupported: the operation is not implemented for this component
	// type or configuration (e.g. a 1D histogram of a float volume).
	ErrUnsupported = errors.New("brickstore: unsupported")
	// ErrChecksumMismatch: a recomputed checksum disagrees with the one
	// stored in a header.
	ErrChecksumMismatch = errors.New("brickstore: checksum mismatch")
)

// OpenError wraps one of the sentinels above with the file path, the
// location it was raised, and a human-readable reason, per spec.md §7
// "All errors carry a source file path and a human-readable reason ... they
// throw a typed open-failure with (path, reason, file, line) context."
func OpenError(kind error, path string, reasonFormat string, args ...interface{}) error {
	err := errors.Wrapf(kind, reasonFormat, args...)
	return errors.Wrapf(err, "path %s", redact.Safe(path))
}

// ShortTransferf builds an ErrIOShort with a formatted reason.
func ShortTransferf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrIOShort, format, args...)
}

// ConfigInvalidf builds an ErrConfigInvalid with a formatted reason.
func ConfigInvalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfigInvalid, format, args...)
}

// OutOfRangef builds an ErrOutOfRange with a formatted reason.
func OutOfRangef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrOutOfRange, format, args...)
}

// FormatInvalidf builds an ErrFormatInvalid with a formatted reason.
func FormatInvalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrFormatInvalid, format, args...)
}

// Unsupportedf builds an ErrUnsupported with a formatted reason.
func Unsupportedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupported, format, args...)
}
