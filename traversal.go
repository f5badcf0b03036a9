package revlog

import (
	"fmt"
	"sync"
)

// Inspector is the streaming callback a traversal invokes once per visited
// revision. Returning a non-nil error aborts the traversal; the engine
// wraps it with ErrInspector before propagating it to the caller of
// IterateRange/IterateSet.
//
// The payload source passed to Next is single-pass and valid only for the
// duration of the call; Next must not retain it.
type Inspector interface {
	Next(ri, actualLen, baseRev, linkRev, p1, p2 int, node NodeID, data PayloadSource) error
}

// Lifecycle is an optional capability an Inspector may additionally
// implement. The engine discovers it with a type assertion at the start of
// a traversal — the Go-native analogue of the source's dynamic
// capability-adapter lookup — and, when present, calls Start before the
// first revision and Finish after the last (or after cancellation), and
// consults StopRequested after every visited revision.
type Lifecycle interface {
	Start(totalWork int, cancel *CancelHandle)
	Finish(cancel *CancelHandle)
	StopRequested() bool
}

// CancelHandle is handed to an Inspector's Lifecycle methods so that
// cancellation can be requested from outside the traversal (a signal
// handler, a timeout goroutine) as well as from within Next itself.
type CancelHandle struct {
	mu      sync.Mutex
	stopped bool
}

// RequestStop marks the handle as cancelled. Safe to call from any
// goroutine, any number of times.
func (c *CancelHandle) RequestStop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}

// Stopped reports whether RequestStop has been called.
func (c *CancelHandle) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// traversal carries the state scoped to one logical iterate_range or
// iterate_set call: the reused zlib inflator/scratch buffer and the single
// rolling snapshot cache. It is never retained past the call that created
// it.
type traversal struct {
	h *Handle

	zs zlibScratch

	lastSnapshot []byte
	lastRI       int // -1 means "no cached snapshot"

	lifecycle Lifecycle
	cancel    *CancelHandle
}

func newTraversal(h *Handle, insp Inspector) *traversal {
	t := &traversal{h: h, lastRI: -1, cancel: &CancelHandle{}}
	if lc, ok := insp.(Lifecycle); ok {
		t.lifecycle = lc
	}
	return t
}

func (t *traversal) start(totalWork int) {
	if t.lifecycle != nil {
		t.lifecycle.Start(totalWork, t.cancel)
	}
}

func (t *traversal) finish() {
	if t.lifecycle != nil {
		t.lifecycle.Finish(t.cancel)
	}
	t.zs.close()
}

func (t *traversal) stopRequested() bool {
	if t.lifecycle != nil {
		return t.lifecycle.StopRequested()
	}
	return false
}

func (t *traversal) resetCache() {
	t.lastSnapshot = nil
	t.lastRI = -1
}

// IterateRange visits ri ∈ [start, end] in ascending order, invoking insp
// once per revision. TIP resolves to N-1 for either endpoint. When
// needData is false the data stream is never read; the inspector always
// receives an empty PayloadSource in that mode.
func (h *Handle) IterateRange(start, end int, needData bool, insp Inspector) error {
	n := h.catalog.count
	if n == 0 {
		return nil
	}
	start, end, err := resolveRange(start, end, n)
	if err != nil {
		return err
	}
	if start > end {
		return nil
	}

	t := newTraversal(h, insp)
	t.start(end - start + 1)
	_, err = h.runRange(t, start, end, needData, insp)
	t.finish()
	return err
}

// IterateSet visits an ascending set of revision indices. Maximal runs of
// consecutive indices are grouped so the snapshot-reuse cache applies
// within a run; the cache is reset between runs.
func (h *Handle) IterateSet(ris []int, needData bool, insp Inspector) error {
	n := h.catalog.count
	if n == 0 {
		return nil
	}

	resolved := make([]int, len(ris))
	for i, r := range ris {
		if r == TIP {
			r = n - 1
		}
		// Tightened per design decision: an index equal to n is out of
		// range, not merely one greater than it.
		if r < 0 || r >= n {
			return ErrInvalidRevision
		}
		resolved[i] = r
	}
	if len(resolved) == 0 {
		return nil
	}

	t := newTraversal(h, insp)
	t.start(len(resolved))
	defer t.finish()

	i := 0
	for i < len(resolved) {
		j := i
		for j+1 < len(resolved) && resolved[j+1] == resolved[j]+1 {
			j++
		}
		t.resetCache()
		stopped, err := h.runRange(t, resolved[i], resolved[j], needData, insp)
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}
		i = j + 1
	}
	return nil
}

func resolveRange(start, end, n int) (int, int, error) {
	if start == TIP {
		start = n - 1
	}
	if end == TIP {
		end = n - 1
	}
	if start < 0 || start >= n || end < 0 || end >= n {
		return 0, 0, ErrInvalidRevision
	}
	return start, end, nil
}

// runRange is the per-revision inner loop shared by IterateRange and each
// group IterateSet carves out of its input. t's cache is consulted and
// updated but t.start/t.finish are the caller's responsibility.
func (h *Handle) runRange(t *traversal, start, end int, needData bool, insp Inspector) (stopped bool, err error) {
	chosenStart := start
	if needData {
		b := int(h.catalog.baseRevisions[start])
		switch {
		case b == start:
			t.resetCache()
			chosenStart = start
		case t.lastRI >= 0 && b <= t.lastRI && t.lastRI < start:
			chosenStart = t.lastRI + 1
		default:
			t.resetCache()
			chosenStart = b
		}
	}

	for i := chosenStart; i <= end; i++ {
		rec, err := decodeRecord(h.index, h.catalog.recordOffsetOf(i), i)
		if err != nil {
			return false, err
		}

		var deliver PayloadSource = emptyPayload
		var current []byte

		if needData {
			current, err = h.materializeRevision(t, i, rec)
			if err != nil {
				return false, err
			}
			deliver = newBytesPayloadSource(current)
		}

		if i >= start {
			if err := insp.Next(i, int(rec.actualLen), int(rec.baseRev), int(rec.linkRev), int(rec.p1), int(rec.p2), rec.node, deliver); err != nil {
				return false, fmt.Errorf("%w: %w", ErrInspector, err)
			}
		}

		if needData {
			t.lastSnapshot = current
			t.lastRI = i
		}

		if t.stopRequested() {
			return true, nil
		}
	}
	return false, nil
}

// materializeRevision produces the decoded bytes for revision i, replaying
// a patch against t.lastSnapshot when i is not itself a base revision.
func (h *Handle) materializeRevision(t *traversal, i int, rec *record) ([]byte, error) {
	isPatch := int(rec.baseRev) != i

	var src DataSource
	var off int64
	var path string
	if h.sameFile {
		src = h.index
		off = h.catalog.recordOffsetOf(i) + recordSize
		path = h.indexPath
	} else {
		src = h.data
		off = rec.offset
		path = h.dataPath
	}

	declared := int64(-1)
	if !isPatch {
		declared = int64(rec.actualLen)
	}

	ps, err := decodePayload(src, off, rec.compressedLen, declared, &t.zs, path)
	if err != nil {
		return nil, err
	}

	if !isPatch {
		return readAllPayload(ps, int64(rec.actualLen))
	}

	if ps.IsEmpty() {
		if t.lastSnapshot == nil || int64(len(t.lastSnapshot)) != int64(rec.actualLen) {
			return nil, &CorruptIndexError{Revision: i, Reason: "empty patch without a matching prior snapshot"}
		}
		return t.lastSnapshot, nil
	}

	raw, err := readUnboundedPayload(ps)
	if err != nil {
		return nil, err
	}
	hunks, err := parseHunks(raw, i)
	if err != nil {
		return nil, err
	}
	return applyPatch(t.lastSnapshot, hunks, int64(rec.actualLen), i)
}

// Count returns the number of revisions. The catalog is already built by
// Open, so Count does no parsing of its own.
func (h *Handle) Count() int { return h.catalog.count }

// DataLength returns the declared uncompressed length of revision ri
// without touching the data stream.
func (h *Handle) DataLength(ri int) (int, error) {
	rec, err := h.recordAt(ri)
	if err != nil {
		return 0, err
	}
	return int(rec.actualLen), nil
}

// NodeIDAt returns the 20-byte node id of revision ri.
func (h *Handle) NodeIDAt(ri int) (NodeID, error) {
	rec, err := h.recordAt(ri)
	if err != nil {
		return NodeID{}, err
	}
	return rec.node, nil
}

// LinkRevision returns the opaque link-revision field of revision ri.
func (h *Handle) LinkRevision(ri int) (int, error) {
	rec, err := h.recordAt(ri)
	if err != nil {
		return 0, err
	}
	return int(rec.linkRev), nil
}

func (h *Handle) recordAt(ri int) (*record, error) {
	if ri == TIP {
		ri = h.catalog.count - 1
	}
	if ri < 0 || ri >= h.catalog.count {
		return nil, ErrInvalidRevision
	}
	return decodeRecord(h.index, h.catalog.recordOffsetOf(ri), ri)
}

// FindRevisionIndex performs a linear scan of the index stream looking for
// a revision whose node id equals node, handling both physical layouts.
// There is no secondary index, matching the source's find_revision_index.
func (h *Handle) FindRevisionIndex(node NodeID) (int, error) {
	for ri := 0; ri < h.catalog.count; ri++ {
		rec, err := decodeRecord(h.index, h.catalog.recordOffsetOf(ri), ri)
		if err != nil {
			return BadRevision, err
		}
		if rec.node == node {
			return ri, nil
		}
	}
	return BadRevision, nil
}
