// Package source selects among multiple failover URLs for one recording,
// tracking each source's health from recorded request outcomes and applying
// one of four selection strategies to pick the next source to try.
package source

// SelectionStrategy chooses how Manager.Select picks among active sources.
type SelectionStrategy int

const (
	// Priority always prefers the lowest Source.Priority, ties broken by
	// insertion order.
	Priority SelectionStrategy = iota
	// RoundRobin cycles through the active set in source-list order,
	// resuming after the last-selected source.
	RoundRobin
	// FastestResponse prefers the lowest rolling-average response time.
	FastestResponse
	// Random draws uniformly over the active set.
	Random
)

// Source is a single content URL a recording can pull from.
type Source struct {
	URL      string
	Priority int
	Label    string
}
