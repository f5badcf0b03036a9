package revlog

import (
	"errors"
	"fmt"
)

// ErrInvalidRevision is returned when a caller supplies a revision index
// that does not denote an actual entry in the index — negative, equal to or
// past the entry count, or (for iterate_set) any value in that inclusive
// range that simply was never written.
var ErrInvalidRevision = errors.New("revlog: invalid revision index")

// ErrInconsistentAppend is returned by OnRevisionAdded when the caller's
// claimed entry count does not match the catalog's own count, or the
// supplied record disagrees with invariants the catalog already enforces
// (e.g. a base revision ahead of the new entry).
var ErrInconsistentAppend = errors.New("revlog: inconsistent append")

// ErrInspector wraps any error returned by an Inspector's Next method.
// Traversal callers can test for this with errors.Is to distinguish an
// inspector-initiated abort from a corrupt-data or I/O failure surfaced by
// the engine itself.
var ErrInspector = errors.New("revlog: inspector aborted traversal")

// CorruptIndexError reports that the index stream could not be parsed into
// well-formed 64-byte records, that a parsed record violates one of the
// catalog's structural invariants (out-of-range base revision, overflow in
// inline-offset arithmetic, and so on), or that a patch hunk stream failed
// to reproduce its declared length against a base snapshot.
type CorruptIndexError struct {
	// Revision is the index of the record being decoded when the problem
	// was found, or -1 if the problem was found before any record-specific
	// context existed (e.g. a truncated header).
	Revision int
	Reason   string
}

func (e *CorruptIndexError) Error() string {
	if e.Revision < 0 {
		return fmt.Sprintf("revlog: corrupt index: %s", e.Reason)
	}
	return fmt.Sprintf("revlog: corrupt index at revision %d: %s", e.Revision, e.Reason)
}

// IndexIOError reports a failure reading the index (.i) stream, with the
// path of the file that failed attached for diagnostics — mirroring the
// Mercurial reference implementation's practice of tagging I/O failures
// with the file they came from.
type IndexIOError struct {
	Path string
	Err  error
}

func (e *IndexIOError) Error() string {
	return fmt.Sprintf("revlog: index I/O error (%s): %v", e.Path, e.Err)
}

func (e *IndexIOError) Unwrap() error { return e.Err }

// DataIOError reports a failure reading the data (.d) stream, or the tail of
// an inline index stream acting as the data stream.
type DataIOError struct {
	Path string
	Err  error
}

func (e *DataIOError) Error() string {
	return fmt.Sprintf("revlog: data I/O error (%s): %v", e.Path, e.Err)
}

func (e *DataIOError) Unwrap() error { return e.Err }
