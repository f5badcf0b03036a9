package revlog

import (
	"bytes"
	"compress/zlib"
	"io"
)

// PayloadSource is the single-pass lazy byte reader handed to an Inspector.
// It is valid only for the duration of one Inspector.Next call; an
// Inspector that retains it past the call is violating the contract.
type PayloadSource interface {
	io.Reader
	// Skip advances the source by n bytes without materializing them.
	Skip(n int64) error
	// IsEmpty reports whether this source has zero bytes to deliver.
	IsEmpty() bool
	// Length reports the declared byte length of the source, or -1 if
	// unknown (an unbounded inflate stream with no declared output size).
	Length() int64
	// ReadInto reads exactly n bytes from the current position into
	// buf[off : off+n].
	ReadInto(buf []byte, off, n int64) (int, error)
}

// emptyPayloadSource is returned for zero-length payloads and for the
// "no data requested" case.
type emptyPayloadSource struct{}

func (emptyPayloadSource) Read([]byte) (int, error)             { return 0, io.EOF }
func (emptyPayloadSource) Skip(int64) error                     { return nil }
func (emptyPayloadSource) IsEmpty() bool                        { return true }
func (emptyPayloadSource) Length() int64                        { return 0 }
func (emptyPayloadSource) ReadInto(_ []byte, _, _ int64) (int, error) { return 0, io.EOF }

var emptyPayload PayloadSource = emptyPayloadSource{}

// sliceSource serves a verbatim byte range straight out of a DataSource —
// used for the 'u' marker and the "anything else" literal payload cases.
type sliceSource struct {
	sr     *io.SectionReader
	length int64
}

func newSliceSource(src DataSource, off, n int64) *sliceSource {
	return &sliceSource{sr: io.NewSectionReader(src, off, n), length: n}
}

func (s *sliceSource) Read(p []byte) (int, error) { return s.sr.Read(p) }

func (s *sliceSource) Skip(n int64) error {
	_, err := s.sr.Seek(n, io.SeekCurrent)
	return err
}

func (s *sliceSource) IsEmpty() bool { return s.length == 0 }

func (s *sliceSource) Length() int64 { return s.length }

func (s *sliceSource) ReadInto(buf []byte, off, n int64) (int, error) {
	return io.ReadFull(s.sr, buf[off:off+n])
}

// inflateSource serves an 'x'-tagged zlib stream, possibly bounded to a
// declared uncompressed length.
type inflateSource struct {
	r       io.Reader
	length  int64 // -1 if unknown
	scratch *[scratchSize]byte
}

const scratchSize = 10 * 1024

func (s *inflateSource) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *inflateSource) Skip(n int64) error {
	for n > 0 {
		chunk := int64(len(s.scratch[:]))
		if n < chunk {
			chunk = n
		}
		k, err := s.r.Read(s.scratch[:chunk])
		n -= int64(k)
		if err != nil {
			if err == io.EOF && n == 0 {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *inflateSource) IsEmpty() bool { return s.length == 0 }

func (s *inflateSource) Length() int64 { return s.length }

func (s *inflateSource) ReadInto(buf []byte, off, n int64) (int, error) {
	return io.ReadFull(s.r, buf[off:off+n])
}

// zlibScratch holds the per-traversal reusable inflator and scratch buffer:
// one zlib.Reader is reset in place and replayed across every revision a
// single traversal visits, rather than allocated fresh per record. Scoped
// to one traversal value, never a package-level pool.
type zlibScratch struct {
	reader  io.ReadCloser
	scratch [scratchSize]byte
}

func (z *zlibScratch) inflate(r io.Reader) (io.Reader, error) {
	if z.reader != nil {
		if resetter, ok := z.reader.(interface {
			Reset(io.Reader, []byte) error
		}); ok {
			if err := resetter.Reset(r, nil); err == nil {
				return z.reader, nil
			}
		}
		_ = z.reader.Close()
		z.reader = nil
	}
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	z.reader = zr
	return zr, nil
}

func (z *zlibScratch) close() {
	if z.reader != nil {
		_ = z.reader.Close()
		z.reader = nil
	}
}

// decodePayload dispatches on the payload's leading tag byte: given a byte
// source positioned so that offset is the first byte of the payload, a
// compressed length, and either a declared uncompressed length (base
// snapshot) or -1 (patch, length unknown until applied), it returns the
// lazy PayloadSource selected by the first byte's tag. path identifies the
// physical file src reads from (the index's own path for inline layout, or
// the companion data path otherwise), attached to any DataIOError raised.
func decodePayload(src DataSource, offset int64, compressedLen int32, declaredLen int64, z *zlibScratch, path string) (PayloadSource, error) {
	if compressedLen <= 0 {
		return emptyPayload, nil
	}

	var tag [1]byte
	if n, err := src.ReadAt(tag[:], offset); n < 1 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, &DataIOError{Path: path, Err: err}
	}

	switch tag[0] {
	case 'x': // 0x78: zlib stream, full compressedLen bytes
		body := io.NewSectionReader(src, offset, int64(compressedLen))
		inflated, err := z.inflate(body)
		if err != nil {
			return nil, &CorruptIndexError{Revision: -1, Reason: "invalid zlib stream: " + err.Error()}
		}
		if declaredLen >= 0 {
			inflated = io.LimitReader(inflated, declaredLen)
		}
		return &inflateSource{r: inflated, length: declaredLen, scratch: &z.scratch}, nil

	case 'u': // 0x75: literal, skip the marker byte
		n := int64(compressedLen) - 1
		if n <= 0 {
			return emptyPayload, nil
		}
		return newSliceSource(src, offset+1, n), nil

	default: // anything else, including '0': literal, first byte included
		return newSliceSource(src, offset, int64(compressedLen)), nil
	}
}

// readAllPayload fully materializes src into a buffer of exactly n bytes,
// failing if fewer are available. Used for base snapshots; patch streams,
// whose length is not declared, are read with readUnboundedPayload.
func readAllPayload(src PayloadSource, n int64) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := io.ReadFull(src, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	if int64(read) != n {
		return nil, &CorruptIndexError{Revision: -1, Reason: "payload shorter than declared length"}
	}
	return buf, nil
}

// bytesPayloadSource wraps an already-materialized revision (a base
// snapshot or the result of applying a patch chain) so it can still be
// delivered to an Inspector through the same PayloadSource contract as a
// lazy on-disk source.
type bytesPayloadSource struct {
	r *bytes.Reader
}

func newBytesPayloadSource(b []byte) *bytesPayloadSource {
	return &bytesPayloadSource{r: bytes.NewReader(b)}
}

func (s *bytesPayloadSource) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *bytesPayloadSource) Skip(n int64) error {
	_, err := s.r.Seek(n, io.SeekCurrent)
	return err
}

func (s *bytesPayloadSource) IsEmpty() bool { return s.r.Len() == 0 }

func (s *bytesPayloadSource) Length() int64 { return s.r.Size() }

func (s *bytesPayloadSource) ReadInto(buf []byte, off, n int64) (int, error) {
	return io.ReadFull(s.r, buf[off:off+n])
}

// readUnboundedPayload reads src to exhaustion, used for patch streams
// whose length is not declared up front (the PayloadDecoder was built with
// declaredLen == -1 for these).
func readUnboundedPayload(src PayloadSource) ([]byte, error) {
	return io.ReadAll(src)
}
