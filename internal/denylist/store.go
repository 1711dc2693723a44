// Package denylist holds the membership sets consulted by the risk engine:
// blacklisted addresses and known phishing domains. The platform seeds both
// sets from an external feed at startup and mutates them through explicit
// admin calls; nothing here is persisted.
package denylist

import (
	"strings"
	"sync"
)

// Set is a case-insensitive, exact-match membership set. Entries are
// normalized to lowercase on the way in and on lookup, so "0xABC" and
// "0xabc" are the same member. No wildcard or prefix matching.
type Set struct {
	mu      sync.RWMutex
	entries map[string]struct{}
}

// NewSet creates a set seeded with the given entries.
func NewSet(initial ...string) *Set {
	s := &Set{entries: make(map[string]struct{}, len(initial))}
	s.Add(initial...)
	return s
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Add inserts one or more entries. Empty strings are ignored.
func (s *Set) Add(values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		if n := normalize(v); n != "" {
			s.entries[n] = struct{}{}
		}
	}
}

// Remove deletes an entry if present.
func (s *Set) Remove(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, normalize(value))
}

// Contains reports whether the value is a member, ignoring case.
func (s *Set) Contains(value string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[normalize(value)]
	return ok
}

// Len returns the number of entries.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
