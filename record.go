package revlog

import (
	"encoding/binary"
	"io"
)

// recordSize is the fixed width of one revlog v1 index record.
const recordSize = 64

// record holds the decoded fields of one 64-byte index entry.
type record struct {
	offset        int64 // offset_in_data; forced to 0 for revision 0
	flags         uint16
	compressedLen int32
	actualLen     int32
	baseRev       int32
	linkRev       int32
	p1            int32
	p2            int32
	node          NodeID
}

// decodeRecord reads and parses the 64-byte record for revision ri out of
// src starting at byteOffset. For ri == 0 the 8-byte header word is known to
// be overlaid with the version/inline flag rather than a real offset, so
// the decoded offset is forced to 0 regardless of the bytes on disk.
func decodeRecord(src DataSource, byteOffset int64, ri int) (*record, error) {
	var buf [recordSize]byte
	n, err := src.ReadAt(buf[:], byteOffset)
	if n < recordSize {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, &CorruptIndexError{Revision: ri, Reason: "short read of index record: " + err.Error()}
	}

	word0 := binary.BigEndian.Uint64(buf[0:8])
	r := &record{
		offset:        int64(word0 >> 16),
		flags:         uint16(word0 & 0xFFFF),
		compressedLen: int32(binary.BigEndian.Uint32(buf[8:12])),
		actualLen:     int32(binary.BigEndian.Uint32(buf[12:16])),
		baseRev:       int32(binary.BigEndian.Uint32(buf[16:20])),
		linkRev:       int32(binary.BigEndian.Uint32(buf[20:24])),
		p1:            int32(binary.BigEndian.Uint32(buf[24:28])),
		p2:            int32(binary.BigEndian.Uint32(buf[28:32])),
	}
	copy(r.node[:], buf[32:52])
	// buf[52:64] is reserved and deliberately never interpreted.

	if ri == 0 {
		r.offset = 0
	}
	return r, nil
}

// recordOffsetOf returns the byte offset of revision ri's index record
// within the index stream: the cached table for inline layout, or the pure
// ri*64 arithmetic for separate layout.
func (c *catalog) recordOffsetOf(ri int) int64 {
	if c.recordOffsets != nil {
		return c.recordOffsets[ri]
	}
	return int64(ri) * recordSize
}
