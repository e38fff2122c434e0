package alloc

import (
	"fmt"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// MmapArena is an Allocator whose accounted bytes are backed by a real
// anonymous memory mapping instead of the Go heap, for embedders that want
// a guest architecture's linear memory to sit outside GC-managed memory
// entirely (large WASM-style guests, or just to keep GOGC from seeing a
// multi-megabyte arena that never contains pointers).
type MmapArena struct {
	mu     sync.Mutex
	region mmap.MMap
	limit  int64
	used   int64
}

// NewMmapArena maps limit bytes of anonymous memory up front and hands out
// accounting against it. limit must be positive.
func NewMmapArena(limit int) (*MmapArena, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("alloc: mmap arena limit must be positive, got %d", limit)
	}
	region, err := mmap.MapRegion(nil, limit, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("alloc: mmap arena: %w", err)
	}
	return &MmapArena{region: region, limit: int64(limit)}, nil
}

// Bytes exposes the raw backing slice for an architecture's linear memory
// implementation.
func (m *MmapArena) Bytes() []byte { return m.region }

func (m *MmapArena) Reserve(bytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes <= 0 {
		return nil
	}
	if m.used+bytes > m.limit {
		return ErrOutOfMemory
	}
	m.used += bytes
	return nil
}

func (m *MmapArena) Release(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes <= 0 {
		return
	}
	m.used -= bytes
	if m.used < 0 {
		m.used = 0
	}
}

func (m *MmapArena) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Close unmaps the underlying region. It must be called exactly once when
// the arena is no longer needed.
func (m *MmapArena) Close() error {
	return m.region.Unmap()
}
