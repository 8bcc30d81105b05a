package source

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Manager owns the source list and health state for one recording. It is
// owned exclusively by that recording's single goroutine and is not safe
// for concurrent use.
type Manager struct {
	strategy     SelectionStrategy
	sources      []Source
	health       map[string]*Health
	roundRobinAt int
	rng          *rand.Rand
}

// NewManager builds a Manager over sources, in the order given (insertion
// order, used as the tie-break for Priority and as the scan order for
// RoundRobin).
func NewManager(strategy SelectionStrategy, sources []Source) *Manager {
	m := &Manager{
		strategy: strategy,
		sources:  append([]Source(nil), sources...),
		health:   make(map[string]*Health, len(sources)),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, s := range m.sources {
		h := newHealth()
		m.health[s.URL] = &h
	}
	return m
}

// HasSources reports whether any source is configured at all.
func (m *Manager) HasSources() bool {
	return len(m.sources) > 0
}

// Count returns the number of configured sources.
func (m *Manager) Count() int {
	return len(m.sources)
}

// Select returns the next source to try per the configured strategy,
// always filtered to the active set. It returns false if no source is
// currently active.
func (m *Manager) Select() (Source, bool) {
	if !m.hasActiveSource() {
		return Source{}, false
	}
	switch m.strategy {
	case RoundRobin:
		return m.selectRoundRobin()
	case FastestResponse:
		return m.selectFastest()
	case Random:
		return m.selectRandom()
	default:
		return m.selectByPriority()
	}
}

func (m *Manager) hasActiveSource() bool {
	for _, s := range m.sources {
		if h := m.health[s.URL]; h != nil && h.Active {
			return true
		}
	}
	return false
}

// selectByPriority returns the active source with the lowest Priority,
// ties broken by insertion order (the first encountered wins a tie, since
// a later equal-priority source only replaces it on strictly-lower
// priority).
func (m *Manager) selectByPriority() (Source, bool) {
	var best *Source
	for i := range m.sources {
		s := &m.sources[i]
		h := m.health[s.URL]
		if h == nil || !h.Active {
			continue
		}
		if best == nil || s.Priority < best.Priority {
			best = s
		}
	}
	if best == nil {
		return Source{}, false
	}
	return *best, true
}

// selectRoundRobin scans the full source list starting just after the last
// position returned, wrapping around, and returns the first active source
// it finds. Scanning the full list (not just the active subset) keeps the
// cursor meaningful even as sources flip active/inactive between calls.
func (m *Manager) selectRoundRobin() (Source, bool) {
	n := len(m.sources)
	idx := m.roundRobinAt
	for checked := 0; checked < n; checked++ {
		s := m.sources[idx]
		idx = (idx + 1) % n
		if h := m.health[s.URL]; h != nil && h.Active {
			m.roundRobinAt = idx
			return s, true
		}
	}
	return Source{}, false
}

func (m *Manager) selectFastest() (Source, bool) {
	var best *Source
	var bestTime time.Duration
	for i := range m.sources {
		s := &m.sources[i]
		h := m.health[s.URL]
		if h == nil || !h.Active {
			continue
		}
		if best == nil || h.AvgResponseTime < bestTime {
			best = s
			bestTime = h.AvgResponseTime
		}
	}
	if best == nil {
		return Source{}, false
	}
	return *best, true
}

func (m *Manager) selectRandom() (Source, bool) {
	active := m.activeSources()
	if len(active) == 0 {
		return Source{}, false
	}
	return active[m.rng.Intn(len(active))], true
}

func (m *Manager) activeSources() []Source {
	active := make([]Source, 0, len(m.sources))
	for _, s := range m.sources {
		if h := m.health[s.URL]; h != nil && h.Active {
			active = append(active, s)
		}
	}
	return active
}

// RecordSuccess records a successful request to url, folding it into the
// source's rolling health statistics.
func (m *Manager) RecordSuccess(url string, responseTime time.Duration) {
	m.recordResult(url, true, responseTime)
}

// RecordFailure records a failed request to url. statusCode, when it is a
// 4xx, deactivates the source immediately and unconditionally: the score
// recomputed from this failure alone might still clear the active
// threshold, so the override is applied after recordResult rather than
// before it.
func (m *Manager) RecordFailure(url string, statusCode int, responseTime time.Duration) {
	m.recordResult(url, false, responseTime)
	if statusCode >= 400 && statusCode < 500 {
		m.SetActive(url, false)
	}
}

func (m *Manager) recordResult(url string, success bool, responseTime time.Duration) {
	h, ok := m.health[url]
	if !ok {
		return
	}
	h.recordResult(success, responseTime)
	h.LastUsed = time.Now()

	if m.strategy == FastestResponse {
		m.sortByResponseTime()
	}
}

func (m *Manager) sortByResponseTime() {
	sort.SliceStable(m.sources, func(i, j int) bool {
		hi, hj := m.health[m.sources[i].URL], m.health[m.sources[j].URL]
		if hi == nil || hj == nil {
			return false
		}
		return hi.AvgResponseTime < hj.AvgResponseTime
	})
}

// SetActive manually overrides a source's active status, independent of
// its computed score.
func (m *Manager) SetActive(url string, active bool) {
	if h, ok := m.health[url]; ok {
		h.Active = active
	}
}

// Health returns url's current health snapshot.
func (m *Manager) Health(url string) (Health, bool) {
	h, ok := m.health[url]
	if !ok {
		return Health{}, false
	}
	return *h, true
}

// AllHealth returns a snapshot of every configured source's health, keyed
// by URL.
func (m *Manager) AllHealth() map[string]Health {
	out := make(map[string]Health, len(m.health))
	for url, h := range m.health {
		out[url] = *h
	}
	return out
}

// SetStrategy changes the selection strategy used by future Select calls.
func (m *Manager) SetStrategy(strategy SelectionStrategy) {
	m.strategy = strategy
}

// Strategy returns the currently configured selection strategy.
func (m *Manager) Strategy() SelectionStrategy {
	return m.strategy
}

// String renders a SelectionStrategy as its config/log name.
func (s SelectionStrategy) String() string {
	switch s {
	case Priority:
		return "priority"
	case RoundRobin:
		return "round_robin"
	case FastestResponse:
		return "fastest_response"
	case Random:
		return "random"
	default:
		return "unknown"
	}
}

// ParseStrategy parses a config/CLI selection strategy name, defaulting an
// empty string to Priority.
func ParseStrategy(s string) (SelectionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "priority":
		return Priority, nil
	case "round_robin", "roundrobin":
		return RoundRobin, nil
	case "fastest_response", "fastestresponse":
		return FastestResponse, nil
	case "random":
		return Random, nil
	default:
		return 0, fmt.Errorf("source: unknown selection strategy %q", s)
	}
}
