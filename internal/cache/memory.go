package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// MemoryConfig configures a MemoryProvider.
type MemoryConfig struct {
	// MaxSizeBytes bounds size_used. Zero or negative disables eviction
	// by capacity (only TTL expiry removes entries).
	MaxSizeBytes int64
	// DefaultTTL is applied to a Put whose Metadata.ExpiresAt is nil. Zero
	// means such entries never expire on their own.
	DefaultTTL time.Duration
}

type memoryEntry struct {
	key  string
	data []byte
	meta Metadata
	elem *list.Element
}

// MemoryProvider is a size-weighted capacity-limited LRU with an optional
// global TTL. size_used is tracked as a running total updated on insert and
// evict rather than recomputed per call.
type MemoryProvider struct {
	mu       sync.Mutex
	cfg      MemoryConfig
	entries  map[string]*memoryEntry
	order    *list.List // front = most recently used
	sizeUsed int64
}

func NewMemoryProvider(cfg MemoryConfig) *MemoryProvider {
	return &MemoryProvider{
		cfg:     cfg,
		entries: make(map[string]*memoryEntry),
		order:   list.New(),
	}
}

var _ Provider = (*MemoryProvider)(nil)

func (p *MemoryProvider) Get(key string) ([]byte, Metadata, Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		return nil, Metadata{}, Miss
	}
	if e.meta.expired(time.Now()) {
		data, meta := e.data, e.meta
		p.removeLocked(key)
		return data, meta, Expired
	}
	p.order.MoveToFront(e.elem)
	return e.data, e.meta, Hit
}

func (p *MemoryProvider) Put(key string, data []byte, meta Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxSizeBytes > 0 && int64(len(data)) > p.cfg.MaxSizeBytes {
		return fmt.Errorf("cache: entry %q (%d bytes) exceeds max size %d bytes", key, len(data), p.cfg.MaxSizeBytes)
	}

	if meta.ExpiresAt == nil && p.cfg.DefaultTTL > 0 {
		expiresAt := time.Now().Add(p.cfg.DefaultTTL)
		meta.ExpiresAt = &expiresAt
	}
	meta.Size = int64(len(data))

	if existing, ok := p.entries[key]; ok {
		p.sizeUsed -= int64(len(existing.data))
		p.order.Remove(existing.elem)
		delete(p.entries, key)
	}

	entry := &memoryEntry{key: key, data: data, meta: meta}
	entry.elem = p.order.PushFront(key)
	p.entries[key] = entry
	p.sizeUsed += int64(len(data))

	p.evictLocked()
	return nil
}

func (p *MemoryProvider) Contains(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[key]
	return ok
}

func (p *MemoryProvider) Remove(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(key)
	return nil
}

func (p *MemoryProvider) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]*memoryEntry)
	p.order = list.New()
	p.sizeUsed = 0
	return nil
}

func (p *MemoryProvider) Sweep() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for key, e := range p.entries {
		if e.meta.expired(now) {
			p.removeLocked(key)
		}
	}
	return nil
}

// SizeUsed returns the current running total of cached byte sizes.
func (p *MemoryProvider) SizeUsed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sizeUsed
}

func (p *MemoryProvider) removeLocked(key string) {
	e, ok := p.entries[key]
	if !ok {
		return
	}
	p.order.Remove(e.elem)
	p.sizeUsed -= int64(len(e.data))
	delete(p.entries, key)
}

// evictLocked pops entries from the back of the LRU (least recently used)
// until size_used is within MaxSizeBytes, or the list is empty. An entry
// larger than MaxSizeBytes never reaches here: Put rejects it with an error
// before inserting.
func (p *MemoryProvider) evictLocked() {
	if p.cfg.MaxSizeBytes <= 0 {
		return
	}
	for p.sizeUsed > p.cfg.MaxSizeBytes {
		back := p.order.Back()
		if back == nil {
			break
		}
		key, _ := back.Value.(string)
		p.removeLocked(key)
	}
}
