package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/temper/internal/forecast"
)

var (
	// ErrNotFound is returned when no runs are stored for a given location.
	ErrNotFound = errors.New("no forecast runs for location")
)

// runHistory holds a time-ordered list of forecast runs for one location.
type runHistory struct {
	runs []forecast.RunReport
}

// RunStore is a concurrency-safe in-memory store of forecast run reports.
type RunStore struct {
	mu sync.RWMutex

	// key: location key, value: ordered run history
	data map[string]*runHistory

	maxHistory int           // max runs kept per location (<=0 = unlimited)
	maxAge     time.Duration // max run age (<=0 = unlimited)
}

// NewRunStore creates a RunStore with optional retention limits.
func NewRunStore(maxHistory int, maxAge time.Duration) *RunStore {
	return &RunStore{
		data:       make(map[string]*runHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Save appends a run for a location key and enforces retention.
func (s *RunStore) Save(key string, report forecast.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &runHistory{}
		s.data[key] = history
	}
	history.runs = append(history.runs, report)

	if s.maxHistory > 0 && len(history.runs) > s.maxHistory {
		over := len(history.runs) - s.maxHistory
		history.runs = history.runs[over:]
	}

	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.runs); i++ {
			if !history.runs[i].GeneratedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			history.runs = history.runs[i:]
		}
	}
}

// Latest returns the most recent run for a location key.
func (s *RunStore) Latest(key string) (forecast.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.runs) == 0 {
		return forecast.RunReport{}, ErrNotFound
	}
	return history.runs[len(history.runs)-1], nil
}

// Range returns all runs for a location generated between from and to,
// inclusive.
func (s *RunStore) Range(key string, from, to time.Time) ([]forecast.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.runs) == 0 {
		return nil, ErrNotFound
	}

	var result []forecast.RunReport
	for _, run := range history.runs {
		if !run.GeneratedAt.Before(from) && !run.GeneratedAt.After(to) {
			result = append(result, run)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
