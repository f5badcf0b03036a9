package revlog

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/mmap"
)

// MmapProvider is the default DataProvider: it memory-maps each path the
// first time it is opened and shares that mapping across every Handle that
// asks for the same path again. It never caches decoded revision content —
// only the open mapping itself — so independent traversal sessions never
// observe each other's decoded state through it.
//
// Because many Handles can share one MmapProvider (for example, one per
// file in a large repository), the number of simultaneously open mappings
// is bounded by an LRU: once more than maxOpen distinct paths are live,
// the least-recently-opened path is dropped from the LRU. Its mapping is
// unmapped at once if no Handle holds it, otherwise when the last holder
// releases it, so mappings still in use stay open past the bound.
type MmapProvider struct {
	mu      sync.Mutex
	maxOpen int
	open    *lru.Cache[string, *sharedMapping]
	// unbounded backs the cache when maxOpen<=0: a path is mapped as long
	// as any Handle holds a reference to it, closed on last release.
	unbounded map[string]*sharedMapping
}

type sharedMapping struct {
	path   string
	reader *mmap.ReaderAt
	refs   int
	// closed is set once refs drops to zero after an eviction requested
	// the mapping be torn down; guards against double-close.
	closed bool
}

// NewMmapProvider returns a provider that keeps at most maxOpen distinct
// memory-mapped files open at once, sharing one mapping across every
// concurrent Open of the same path. A maxOpen of zero or less disables the
// bound: mappings are still shared while any Handle holds one, but each
// closes as soon as its last Handle releases it rather than waiting on LRU
// eviction.
func NewMmapProvider(maxOpen int) *MmapProvider {
	p := &MmapProvider{maxOpen: maxOpen}
	if maxOpen > 0 {
		c, _ := lru.NewWithEvict(maxOpen, p.onEvict)
		p.open = c
	} else {
		p.unbounded = make(map[string]*sharedMapping)
	}
	return p
}

// onEvict runs under p.mu (called only from within Open while held).
func (p *MmapProvider) onEvict(_ string, m *sharedMapping) {
	if m.refs == 0 {
		_ = m.reader.Close()
		m.closed = true
	}
	// Otherwise a live Handle still references this mapping; the last
	// release will close it (see MmapProvider.release).
}

func (p *MmapProvider) Open(path string) (DataSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open != nil {
		if m, ok := p.open.Get(path); ok {
			m.refs++
			return &mmapDataSource{mapping: m, provider: p}, nil
		}
	} else if m, ok := p.unbounded[path]; ok {
		m.refs++
		return &mmapDataSource{mapping: m, provider: p}, nil
	}

	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	m := &sharedMapping{path: path, reader: r, refs: 1}
	if p.open != nil {
		p.open.Add(path, m)
	} else {
		p.unbounded[path] = m
	}
	return &mmapDataSource{mapping: m, provider: p}, nil
}

// release drops one reference to m. If the mapping has already fallen out
// of the LRU (refs reached zero while evicted) it is closed here instead.
func (p *MmapProvider) release(m *sharedMapping) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m.refs--
	if m.refs > 0 {
		return nil
	}
	if p.open != nil {
		if cur, ok := p.open.Peek(m.path); ok && cur == m {
			// Still the live entry for this path; leave it mapped so a
			// subsequent Open for the same path can reuse it.
			return nil
		}
	} else if cur, ok := p.unbounded[m.path]; ok && cur == m {
		// Unbounded mode has no eviction to rely on for cleanup, so the
		// mapping closes as soon as its last Handle releases it.
		delete(p.unbounded, m.path)
	}
	if m.closed {
		return nil
	}
	m.closed = true
	return m.reader.Close()
}

// mmapDataSource is the DataSource a caller receives from MmapProvider.Open.
// Its Close releases this holder's reference rather than necessarily
// unmapping the file.
type mmapDataSource struct {
	mapping  *sharedMapping
	provider *MmapProvider
	closed   bool
}

func (d *mmapDataSource) ReadAt(p []byte, off int64) (int, error) {
	return d.mapping.reader.ReadAt(p, off)
}

func (d *mmapDataSource) Len() int64 { return int64(d.mapping.reader.Len()) }

func (d *mmapDataSource) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.provider.release(d.mapping)
}

var _ fmt.Stringer = (*sharedMapping)(nil)

func (m *sharedMapping) String() string { return fmt.Sprintf("%s(refs=%d)", m.path, m.refs) }
