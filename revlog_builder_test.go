package revlog

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
)

// fixtureRecord describes one revision to bake into a synthetic index/data
// stream for tests. payload is the on-disk bytes following the 64-byte
// record header — already tagged with the 'x'/'u'/literal marker byte a
// real revlog would carry.
type fixtureRecord struct {
	payload   []byte
	actualLen int32
	baseRev   int32
	linkRev   int32
	p1, p2    int32
	node      NodeID
}

// nodeOf turns a short byte string into a right-padded NodeID, just enough
// to keep fixtures readable without hand-writing 20-byte arrays.
func nodeOf(b byte) NodeID {
	var n NodeID
	n[0] = b
	return n
}

// buildRevlogFixture lays out records sequentially exactly as
// buildCatalog expects to read them: a version/inline header occupying
// record 0's 8-byte header word, each subsequent record's header word
// carrying the cumulative payload-byte offset, and (for inline layout)
// each record's payload written immediately after its 64-byte header.
func buildRevlogFixture(records []fixtureRecord, inline bool) (indexBytes, dataBytes []byte) {
	var ib, db bytes.Buffer
	var cumulative uint64

	for i, rec := range records {
		if i == 0 {
			version := uint32(1)
			if inline {
				version |= 0x00010000
			}
			writeU32(&ib, version)
			writeU32(&ib, 0)
		} else {
			writeU64(&ib, cumulative<<16)
		}

		writeU32(&ib, uint32(len(rec.payload)))
		writeU32(&ib, uint32(rec.actualLen))
		writeU32(&ib, uint32(rec.baseRev))
		writeU32(&ib, uint32(rec.linkRev))
		writeU32(&ib, uint32(rec.p1))
		writeU32(&ib, uint32(rec.p2))
		ib.Write(rec.node[:])
		ib.Write(make([]byte, 12)) // reserved

		if inline {
			ib.Write(rec.payload)
		} else {
			db.Write(rec.payload)
		}
		cumulative += uint64(len(rec.payload))
	}
	return ib.Bytes(), db.Bytes()
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// zlibPayload produces the 'x'-tagged on-disk form of plain: a zlib stream
// of the literal bytes, exactly what a real base snapshot looks like on
// disk.
func zlibPayload(plain []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(plain)
	_ = w.Close()
	return buf.Bytes()
}

// verbatimPayload produces the 'u'-tagged on-disk form of plain.
func verbatimPayload(plain []byte) []byte {
	return append([]byte{'u'}, plain...)
}

// literalPayload produces the "anything else" on-disk form: the bytes
// exactly as given, first byte included.
func literalPayload(plain []byte) []byte {
	return plain
}

// openFixture wraps a constructed index/data pair behind a MemoryProvider
// and opens it as a Handle, using path names matching the .i/.d naming
// convention Open expects.
func openFixture(indexBytes, dataBytes []byte) (*Handle, error) {
	files := map[string][]byte{"fixture.i": indexBytes}
	if dataBytes != nil {
		files["fixture.d"] = dataBytes
	}
	return Open(NewMemoryProvider(files), "fixture.i")
}
