package reports

import (
	"context"
	"sync"
)

// Store persists submitted reports.
type Store interface {
	Insert(ctx context.Context, r *Report) error
	CountByUser(ctx context.Context, userID string) (int, error)
	Close() error
}

// MemoryStore keeps reports in memory. Used in tests and when no
// database path is configured.
type MemoryStore struct {
	mu      sync.Mutex
	reports []*Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *MemoryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.reports {
		if r.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Close() error { return nil }
