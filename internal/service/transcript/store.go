package transcript

import (
	"sync"

	"live-speech-translator/internal/models"
)

// Store holds the ordered sequence of transcript entries for presentation.
// All entry mutation goes through Update so there is a single lock
// discipline; Snapshot hands out copies only.
type Store struct {
	mu      sync.RWMutex
	entries []*models.TranscriptEntry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a new entry to the end of the sequence.
func (s *Store) Append(e *models.TranscriptEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Update applies fn to the entry with the given ID under the store lock.
// Returns false when no such entry exists.
func (s *Store) Update(id string, fn func(*models.TranscriptEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			fn(e)
			return true
		}
	}
	return false
}

// Get returns a copy of the entry with the given ID.
func (s *Store) Get(id string) (models.TranscriptEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return *e, true
		}
	}
	return models.TranscriptEntry{}, false
}

// Snapshot returns a copy of all entries in append order.
func (s *Store) Snapshot() []models.TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TranscriptEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset clears all entries. Only valid while the pipeline is idle.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
