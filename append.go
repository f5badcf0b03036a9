package revlog

import "fmt"

// OffsetFieldToInlineFileOffset converts a raw on-disk offset-in-data-stream
// field value into the absolute physical byte offset of that record's index
// entry within an inline index stream, given how many records already
// precede it. It is the same pure transform buildCatalog uses internally
// while building recordOffsets, exported so a writer computing a new
// record's header can reuse it instead of re-deriving the arithmetic,
// keeping OnRevisionAdded itself to two guarded slice extensions.
func OffsetFieldToInlineFileOffset(rawOffsetField int64, recordsBefore int) (int64, error) {
	physOffset, err := offsetToInt(rawOffsetField)
	if err != nil {
		return 0, &CorruptIndexError{Revision: recordsBefore, Reason: err.Error()}
	}
	return physOffset + recordSize*int64(recordsBefore), nil
}

// NewEntryOffset returns the logical offset a writer should place in the
// header of a freshly appended record: 0 for an empty revlog, the last
// record's compressed length when that record is revision 0 (whose header
// word is overloaded for the version/inline flag rather than a real
// offset), and offset+compressed_len of the last record otherwise.
func (h *Handle) NewEntryOffset() (int64, error) {
	n := h.catalog.count
	if n == 0 {
		return 0, nil
	}
	last := n - 1
	rec, err := decodeRecord(h.index, h.catalog.recordOffsetOf(last), last)
	if err != nil {
		return 0, err
	}
	if last == 0 {
		return int64(rec.compressedLen), nil
	}
	return rec.offset + int64(rec.compressedLen), nil
}

// OnRevisionAdded extends the in-memory catalog after a writer has appended
// a new record to the physical index. It enforces the append hook's
// preconditions — ri must equal the current revision count, and baseRev
// must be within [0, count] with equality meaning the new revision is
// self-based — and reports ErrInconsistentAppend on violation rather than
// mutating a partially-extended catalog.
func (h *Handle) OnRevisionAdded(ri int, node NodeID, baseRev int, physOffset int64) error {
	c := h.catalog
	if ri != c.count {
		return fmt.Errorf("%w: revision %d does not match catalog length %d", ErrInconsistentAppend, ri, c.count)
	}
	if baseRev < 0 || baseRev > c.count {
		return fmt.Errorf("%w: base revision %d out of range for append at revision %d", ErrInconsistentAppend, baseRev, ri)
	}

	c.baseRevisions = append(c.baseRevisions, int32(baseRev))
	if c.inline {
		c.recordOffsets = append(c.recordOffsets, physOffset)
	}
	c.count++
	return nil
}
