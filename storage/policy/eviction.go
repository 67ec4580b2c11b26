// Package policy holds the maxmemory eviction policies used by the
// in-memory storage engine.
package policy

import (
	"fmt"
	"slices"
	"strings"
)

// Candidate is a sampled key considered for eviction.
type Candidate struct {
	Key        string
	LastAccess int64
}

// EvictionPolicy picks which sampled keys to drop when the memory limit is
// exceeded.
type EvictionPolicy interface {
	// Name returns the maxmemory-policy name.
	Name() string
	// Victims returns up to n keys from sample to evict. A nil result means
	// writes must be refused instead.
	Victims(sample []Candidate, n int) []string
}

// NoEviction refuses writes once the limit is reached.
type NoEviction struct{}

func (NoEviction) Name() string                        { return "noeviction" }
func (NoEviction) Victims([]Candidate, int) []string { return nil }

// LRU evicts the least recently accessed keys of the sample.
type LRU struct{}

func (LRU) Name() string { return "allkeys-lru" }

func (LRU) Victims(sample []Candidate, n int) []string {
	sorted := slices.Clone(sample)
	slices.SortFunc(sorted, func(a, b Candidate) int {
		switch {
		case a.LastAccess < b.LastAccess:
			return -1
		case a.LastAccess > b.LastAccess:
			return 1
		}
		return strings.Compare(a.Key, b.Key)
	})
	return keys(sorted, n)
}

// Random evicts arbitrary keys of the sample.
type Random struct{}

func (Random) Name() string { return "allkeys-random" }

func (Random) Victims(sample []Candidate, n int) []string {
	return keys(sample, n)
}

func keys(c []Candidate, n int) []string {
	n = min(n, len(c))
	out := make([]string, n)
	for i := range out {
		out[i] = c[i].Key
	}
	return out
}

// Parse returns the policy with the given maxmemory-policy name.
func Parse(name string) (EvictionPolicy, error) {
	switch strings.ToLower(name) {
	case "", "noeviction":
		return NoEviction{}, nil
	case "allkeys-lru":
		return LRU{}, nil
	case "allkeys-random":
		return Random{}, nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", name)
	}
}
