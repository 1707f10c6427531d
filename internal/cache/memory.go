package cache

import "sync"

// Memory is an in-process store with FIFO eviction. Zero limits mean
// unbounded.
type Memory struct {
	mu         sync.RWMutex
	entries    map[Fingerprint]*Entry
	order      []Fingerprint
	bytes      int64
	maxEntries int
	maxBytes   int64
}

// NewMemory creates a memory store bounded by entry count and total output
// bytes.
func NewMemory(maxEntries int, maxBytes int64) *Memory {
	return &Memory{
		entries:    make(map[Fingerprint]*Entry),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
	}
}

func (m *Memory) Get(fp Fingerprint) (*Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[fp]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return e.clone(), true, nil
}

func (m *Memory) Put(fp Fingerprint, e *Entry) error {
	size := int64(len(e.Output))
	if m.maxBytes > 0 && size > m.maxBytes {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[fp]; ok {
		return nil
	}
	m.entries[fp] = e.clone()
	m.order = append(m.order, fp)
	m.bytes += size

	for len(m.order) > 0 &&
		((m.maxEntries > 0 && len(m.entries) > m.maxEntries) || (m.maxBytes > 0 && m.bytes > m.maxBytes)) {
		oldest := m.order[0]
		m.order = m.order[1:]
		m.bytes -= int64(len(m.entries[oldest].Output))
		delete(m.entries, oldest)
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Bytes is the total size of cached outputs.
func (m *Memory) Bytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes
}

func (m *Memory) Close() error { return nil }
