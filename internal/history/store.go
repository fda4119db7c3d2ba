package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

var (
	// ErrOutOfOrder means an append would violate temporal ordering for a key.
	// The offending reading is rejected and stored history is untouched.
	ErrOutOfOrder = errors.New("reading observed before latest stored reading")

	// ErrInsufficientHistory means fewer than two readings exist for a key.
	// This is the normal state after a first-ever reading, not a failure.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNotFound means no readings exist for a key
	ErrNotFound = errors.New("no readings for key")
)

// sequence is the append-only reading history for one key. Each sequence
// carries its own lock so appends for different keys never contend.
type sequence struct {
	mu       sync.RWMutex
	readings []reading.Reading
}

// Store holds one append-only reading sequence per (metric, location) key.
// Keys are created lazily on first append and never merged or split.
type Store struct {
	mu        sync.RWMutex
	sequences map[reading.Key]*sequence
	maxPerKey int
}

// NewStore creates a history store. maxPerKey caps retained readings per key;
// values below 2 are treated as unlimited since change detection always
// needs the latest two.
func NewStore(maxPerKey int) *Store {
	if maxPerKey < 2 {
		maxPerKey = 0
	}
	return &Store{
		sequences: make(map[reading.Key]*sequence),
		maxPerKey: maxPerKey,
	}
}

// Append adds a reading to the sequence for its key. It fails with
// ErrOutOfOrder if the reading is observed before the latest stored reading
// for that key; equal timestamps are accepted since feeds republish
// unchanged observations with the same update time.
func (s *Store) Append(r reading.Reading) error {
	if !r.Metric.Valid() {
		return fmt.Errorf("unknown metric %q", r.Metric)
	}

	seq := s.sequenceFor(r.Key())

	seq.mu.Lock()
	defer seq.mu.Unlock()

	if n := len(seq.readings); n > 0 {
		last := seq.readings[n-1]
		if r.ObservedAt.Before(last.ObservedAt) {
			return fmt.Errorf("%w: key=%s observed=%s latest=%s",
				ErrOutOfOrder, r.Key(), r.ObservedAt.Format("2006-01-02T15:04:05Z07:00"),
				last.ObservedAt.Format("2006-01-02T15:04:05Z07:00"))
		}
	}

	seq.readings = append(seq.readings, r)

	if s.maxPerKey > 0 && len(seq.readings) > s.maxPerKey {
		over := len(seq.readings) - s.maxPerKey
		seq.readings = append([]reading.Reading(nil), seq.readings[over:]...)
	}

	return nil
}

// LatestTwo returns the two most recent readings for a key, previous first
func (s *Store) LatestTwo(key reading.Key) (previous, current reading.Reading, err error) {
	seq, ok := s.lookup(key)
	if !ok {
		return reading.Reading{}, reading.Reading{}, ErrInsufficientHistory
	}

	seq.mu.RLock()
	defer seq.mu.RUnlock()

	n := len(seq.readings)
	if n < 2 {
		return reading.Reading{}, reading.Reading{}, ErrInsufficientHistory
	}
	return seq.readings[n-2], seq.readings[n-1], nil
}

// Latest returns the most recent reading for a key
func (s *Store) Latest(key reading.Key) (reading.Reading, error) {
	seq, ok := s.lookup(key)
	if !ok {
		return reading.Reading{}, ErrNotFound
	}

	seq.mu.RLock()
	defer seq.mu.RUnlock()

	if len(seq.readings) == 0 {
		return reading.Reading{}, ErrNotFound
	}
	return seq.readings[len(seq.readings)-1], nil
}

// Count returns the number of retained readings for a key
func (s *Store) Count(key reading.Key) int {
	seq, ok := s.lookup(key)
	if !ok {
		return 0
	}

	seq.mu.RLock()
	defer seq.mu.RUnlock()
	return len(seq.readings)
}

// Keys returns every key with at least one reading
func (s *Store) Keys() []reading.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]reading.Key, 0, len(s.sequences))
	for key := range s.sequences {
		keys = append(keys, key)
	}
	return keys
}

func (s *Store) sequenceFor(key reading.Key) *sequence {
	s.mu.RLock()
	seq, ok := s.sequences[key]
	s.mu.RUnlock()
	if ok {
		return seq
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq, ok = s.sequences[key]; ok {
		return seq
	}
	seq = &sequence{}
	s.sequences[key] = seq
	return seq
}

func (s *Store) lookup(key reading.Key) (*sequence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, ok := s.sequences[key]
	return seq, ok
}
