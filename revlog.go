// Package revlog reads Mercurial's revlog versioned-storage container
// format: an append-only sequence of revisions, each stored either as a
// full compressed snapshot or as a binary patch against an earlier
// revision, indexed by a fixed-width record table that may live inline
// with the data or in a companion file.
//
// The package knows nothing about what the decoded bytes of a revision
// mean — that is left to callers (a changelog, a manifest, a file log)
// who consume them through the Inspector callback passed to IterateRange
// or IterateSet.
package revlog

import (
	"fmt"
	"strings"
)

// TIP denotes "the latest revision" wherever a revision index is accepted
// as an iteration boundary.
const TIP = -1

// BadRevision is the sentinel returned in place of a valid revision index
// when no such revision exists (for example, the parent slot of a root
// revision).
const BadRevision = -1

// NullRevision is the out-of-band node id that denotes "no such revision" —
// it is always all zero bytes and never collides with a real content hash.
var NullRevision NodeID

// NodeID is the 20-byte content hash Mercurial uses to name a revision.
type NodeID [20]byte

func (n NodeID) String() string {
	var sb strings.Builder
	sb.Grow(40)
	fmt.Fprintf(&sb, "%x", n[:])
	return sb.String()
}

// IsNull reports whether n is the all-zero sentinel.
func (n NodeID) IsNull() bool { return n == NullRevision }

// Handle is an open revlog: the parsed index catalog plus the data sources
// needed to materialize revision payloads. A Handle is safe for concurrent
// read-only use by multiple goroutines provided each goroutine drives its
// own traversal (IterateRange/IterateSet); a Handle holds no content cache
// of its own between calls.
type Handle struct {
	catalog *catalog
	index   DataSource
	data    DataSource
	// sameFile is true when the data stream is the tail of the index
	// stream (inline layout); traversal consults this to decide which
	// DataSource to read a revision's payload from.
	sameFile bool

	indexPath string
	dataPath  string
}

// Open parses indexPath's header and full record table through provider,
// opening the companion data stream (if any) as needed.
//
// indexPath conventionally ends in ".i"; the data path is derived from it
// by replacing a trailing ".i" in the file name (not the whole path) with
// ".d", matching Mercurial's own convention. For inline revlogs Open does
// not require the derived path to exist: they carry their data in the index
// stream itself and never open a second file. For separate layout Open
// fails with a DataIOError if the derived path cannot be opened.
func Open(provider DataProvider, indexPath string) (*Handle, error) {
	idx, err := provider.Open(indexPath)
	if err != nil {
		return nil, &IndexIOError{Path: indexPath, Err: err}
	}

	cat, inline, err := buildCatalog(idx, indexPath)
	if err != nil {
		idx.Close()
		return nil, err
	}

	h := &Handle{
		catalog:   cat,
		index:     idx,
		indexPath: indexPath,
		sameFile:  inline,
	}

	if inline {
		h.data = idx
		h.dataPath = indexPath
		return h, nil
	}

	dataPath := deriveDataPath(indexPath)
	data, err := provider.Open(dataPath)
	if err != nil {
		idx.Close()
		return nil, &DataIOError{Path: dataPath, Err: err}
	}
	h.data = data
	h.dataPath = dataPath
	return h, nil
}

// Close releases the underlying data sources. Close does not close sources
// shared with other Handles through the same DataProvider unless the
// provider itself tears them down on the final release — see DataProvider.
func (h *Handle) Close() error {
	var err error
	if h.index != nil {
		err = h.index.Close()
	}
	if h.data != nil && h.data != h.index {
		if derr := h.data.Close(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// Len reports the number of revisions currently in the catalog.
func (h *Handle) Len() int { return h.catalog.count }

// Inline reports whether this revlog uses the inline (index-and-data in one
// stream) physical layout.
func (h *Handle) Inline() bool { return h.sameFile }

// deriveDataPath replaces a trailing ".i" in indexPath's file name with
// ".d". It operates on the file name only, matching
// RevlogStream.getDataFile() in the Mercurial reference implementation: a
// directory component that happens to contain the literal substring ".i"
// is left untouched.
func deriveDataPath(indexPath string) string {
	dir, file := splitPath(indexPath)
	if strings.HasSuffix(file, ".i") {
		file = strings.TrimSuffix(file, ".i") + ".d"
	}
	if dir == "" {
		return file
	}
	return dir + "/" + file
}

func splitPath(p string) (dir, file string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}
