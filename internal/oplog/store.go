// Package oplog keeps the in-memory diagnostic trail of database operations.
package oplog

import (
	"sync"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

// Store is a fixed-capacity ring buffer of log entries, newest first.
// Contents live for the life of the process and are lost on restart.
type Store struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	head    int // index of the next write
	size    int
}

// NewStore returns a Store holding at most capacity entries.
// A non-positive capacity selects domain.MaxLogs.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = domain.MaxLogs
	}
	return &Store{entries: make([]domain.LogEntry, capacity)}
}

// Append inserts entry as the newest record, evicting the oldest when full.
func (s *Store) Append(entry domain.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.head] = entry
	s.head = (s.head + 1) % len(s.entries)
	if s.size < len(s.entries) {
		s.size++
	}
}

// Entries returns a copy of the buffer, newest first.
func (s *Store) Entries() []domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.LogEntry, s.size)
	n := len(s.entries)
	for i := 0; i < s.size; i++ {
		out[i] = s.entries[(s.head-1-i+n)%n]
	}
	return out
}

// Clear empties the buffer. Clearing is not itself recorded.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.entries)
	s.head = 0
	s.size = 0
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *Store) Cap() int {
	return len(s.entries)
}
