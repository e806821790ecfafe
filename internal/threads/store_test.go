package threads

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "threads.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestUpsertAssignsIDAndTitle(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.Upsert(Thread{Messages: []Message{
		{Role: "user", Content: "what is the krebs cycle"},
		{Role: "model", Content: "The Krebs cycle is..."},
	}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if saved.ID == "" {
		t.Error("no ID assigned")
	}
	if saved.Title != "what is the krebs cycle" {
		t.Errorf("title = %q", saved.Title)
	}
}

func TestTitleForTruncatesLongQueries(t *testing.T) {
	long := strings.Repeat("a", 60)
	got := TitleFor(long)
	if len([]rune(got)) != 41 {
		t.Errorf("len = %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("title = %q", got)
	}
	if TitleFor("short") != "short" {
		t.Error("short titles must pass through")
	}
}

func TestUpdatedAtStrictlyIncreases(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	a, _ := s.Upsert(Thread{Messages: []Message{{Role: "user", Content: "a"}}})
	b, _ := s.Upsert(Thread{Messages: []Message{{Role: "user", Content: "b"}}})
	c, _ := s.Upsert(Thread{Messages: []Message{{Role: "user", Content: "c"}}})

	if !b.UpdatedAt.After(a.UpdatedAt) || !c.UpdatedAt.After(b.UpdatedAt) {
		t.Errorf("timestamps not strictly increasing: %v %v %v",
			a.UpdatedAt, b.UpdatedAt, c.UpdatedAt)
	}
}

func TestListDescendingByUpdate(t *testing.T) {
	s := newTestStore(t)

	first, _ := s.Upsert(Thread{Messages: []Message{{Role: "user", Content: "first"}}})
	s.Upsert(Thread{Messages: []Message{{Role: "user", Content: "second"}}})

	// Touching the first thread moves it to the top.
	first.Messages = append(first.Messages, Message{Role: "model", Content: "answer"})
	s.Upsert(first)

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("list = %d", len(list))
	}
	if list[0].Title != "first" {
		t.Errorf("list[0] = %q", list[0].Title)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.json")

	s1, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	saved, _ := s1.Upsert(Thread{Messages: []Message{{Role: "user", Content: "persist me"}}})

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, ok := s2.Get(saved.ID)
	if !ok {
		t.Fatal("thread lost on reload")
	}
	if got.Title != "persist me" || len(got.Messages) != 1 {
		t.Errorf("thread = %+v", got)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	saved, _ := s.Upsert(Thread{Messages: []Message{{Role: "user", Content: "x"}}})

	if err := s.Delete(saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get(saved.ID); ok {
		t.Error("thread still present after delete")
	}
	if err := s.Delete("missing"); err != nil {
		t.Errorf("deleting missing ID: %v", err)
	}
}
