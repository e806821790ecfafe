package usage

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps counters in a mutex-guarded map. Used in tests and
// when no store path is configured.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]int)}
}

func memKey(userID, counter, day string) string {
	return userID + "|" + counter + "|" + day
}

func (s *MemoryStore) IncrementIfBelow(ctx context.Context, userID, counter, day string, limit int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(userID, counter, day)
	current := s.counters[key]
	if current >= limit {
		return false, current, nil
	}
	s.counters[key] = current + 1
	return true, current + 1, nil
}

func (s *MemoryStore) Count(ctx context.Context, userID, counter, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[memKey(userID, counter, day)], nil
}

func (s *MemoryStore) PurgeBefore(ctx context.Context, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key := range s.counters {
		parts := strings.SplitN(key, "|", 3)
		if len(parts) == 3 && parts[2] < day {
			delete(s.counters, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
