package threads

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neuralscholar/search-proxy/internal/wire"
)

const titleLimit = 40

// Message is one stored exchange entry within a thread.
type Message struct {
	Role     string            `json:"role"`
	Content  string            `json:"content"`
	Thoughts string            `json:"thoughts,omitempty"`
	Sources  []wire.Source     `json:"sources,omitempty"`
	Media    *wire.MediaResult `json:"media,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Thread is one saved conversation.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mode      string    `json:"mode,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type fileFormat struct {
	Threads []*Thread `json:"threads"`
}

// Store persists threads in a single JSON file. Writes go through a
// temp file and rename so a crash never leaves a torn file.
type Store struct {
	path string

	mu        sync.Mutex
	threads   map[string]*Thread
	lastStamp time.Time
	now       func() time.Time
}

func NewStore(path string) (*Store, error) {
	s := &Store{
		path:    path,
		threads: make(map[string]*Thread),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thread store: %w", err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse thread store: %w", err)
	}
	for _, t := range parsed.Threads {
		s.threads[t.ID] = t
		if t.UpdatedAt.After(s.lastStamp) {
			s.lastStamp = t.UpdatedAt
		}
	}
	return s, nil
}

// TitleFor derives a thread title from its first user query.
func TitleFor(query string) string {
	query = strings.TrimSpace(query)
	runes := []rune(query)
	if len(runes) <= titleLimit {
		return query
	}
	return string(runes[:titleLimit]) + "…"
}

// stamp returns a strictly increasing time so that List ordering is
// total even when updates land within one clock tick.
func (s *Store) stamp() time.Time {
	now := s.now()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = now
	return now
}

// Upsert saves the thread, assigning an ID and title when missing, and
// bumps UpdatedAt. The stored copy is returned.
func (s *Store) Upsert(t Thread) (Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
		t.CreatedAt = s.now()
	}
	if t.Title == "" {
		for _, m := range t.Messages {
			if m.Role == "user" {
				t.Title = TitleFor(m.Content)
				break
			}
		}
	}
	t.UpdatedAt = s.stamp()

	stored := t
	s.threads[t.ID] = &stored
	if err := s.save(); err != nil {
		return Thread{}, err
	}
	return t, nil
}

// Get returns the thread with the given ID.
func (s *Store) Get(id string) (Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return Thread{}, false
	}
	return *t, true
}

// List returns all threads, most recently updated first.
func (s *Store) List() []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Thread, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Delete removes a thread. Deleting a missing ID is a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		return nil
	}
	delete(s.threads, id)
	return s.save()
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(fileFormat{Threads: s.sorted()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode thread store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create thread store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".threads-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write thread store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close thread store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace thread store: %w", err)
	}
	return nil
}

func (s *Store) sorted() []*Thread {
	out := make([]*Thread, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
