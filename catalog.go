package revlog

import (
	"encoding/binary"
	"io"
)

// catalog is the parsed outline of an index stream: the per-revision base
// chain and, for inline layout, the per-revision physical record offset.
// Once built it is immutable for the lifetime of a Handle except through
// OnRevisionAdded.
type catalog struct {
	count         int
	inline        bool
	baseRevisions []int32
	// recordOffsets is non-nil only for inline revlogs.
	recordOffsets []int64
}

// buildCatalog parses indexPath's full record table out of idx in one
// sequential pass, mirroring RevlogStream.initOutline(): it never seeks
// backwards and never re-reads a byte.
func buildCatalog(idx DataSource, indexPath string) (*catalog, bool, error) {
	size := idx.Len()
	if size == 0 {
		return &catalog{inline: true}, true, nil
	}

	var hdr [8]byte
	if n, err := idx.ReadAt(hdr[:], 0); n < 8 {
		if err == nil || err == io.EOF {
			return nil, false, &CorruptIndexError{Revision: -1, Reason: "truncated header"}
		}
		return nil, false, &IndexIOError{Path: indexPath, Err: err}
	}
	version := binary.BigEndian.Uint32(hdr[0:4])
	inline := version&0x00010000 != 0

	c := &catalog{inline: inline}
	if inline {
		c.recordOffsets = make([]int64, 0, 64)
	}
	c.baseRevisions = make([]int32, 0, 64)

	cursor := int64(8) // past the 8-byte header word already consumed
	var offset int64   // running "offset" field; revision 0's is 0 by definition
	ri := 0

	for {
		var fields [12]byte
		n, err := idx.ReadAt(fields[:], cursor)
		if n < 12 {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return nil, false, &IndexIOError{Path: indexPath, Err: err}
		}
		compressedLen := int64(binary.BigEndian.Uint32(fields[0:4]))
		baseRevision := int32(binary.BigEndian.Uint32(fields[8:12]))
		cursor += 12 + 44 // skip link/p1/p2/node/reserved, unread

		c.baseRevisions = append(c.baseRevisions, baseRevision)
		if baseRevision < 0 || int(baseRevision) > ri {
			return nil, false, &CorruptIndexError{Revision: ri, Reason: "base revision out of range"}
		}

		if inline {
			physOffset, err := offsetToInt(offset)
			if err != nil {
				return nil, false, &CorruptIndexError{Revision: ri, Reason: err.Error()}
			}
			c.recordOffsets = append(c.recordOffsets, physOffset+recordSize*int64(len(c.recordOffsets)))
			cursor += compressedLen
		}

		ri++
		if cursor >= size {
			break
		}

		var word [8]byte
		n, err = idx.ReadAt(word[:], cursor)
		if n < 8 {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return nil, false, &IndexIOError{Path: indexPath, Err: err}
		}
		offset = int64(binary.BigEndian.Uint64(word[:]) >> 16)
		cursor += 8
	}

	c.count = ri
	return c, inline, nil
}

// offsetToInt validates that a data-stream offset fits in the 32-bit range
// inline revlogs are designed to stay within (the whole inline file, index
// plus interleaved payload, stays under 2 GiB), then returns it as an
// ordinary int64 for arithmetic.
func offsetToInt(offset int64) (int64, error) {
	if offset < 0 || offset > 0xFFFFFFFF {
		return 0, errOffsetOverflow
	}
	return offset, nil
}

type offsetOverflowError struct{}

func (offsetOverflowError) Error() string { return "inline data offset exceeds 32-bit range" }

var errOffsetOverflow = offsetOverflowError{}
