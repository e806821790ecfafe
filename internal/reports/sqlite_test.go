package reports

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i, user := range []string{"a", "a", "b"} {
		err := store.Insert(ctx, &Report{
			ID:        string(rune('r' + i)),
			UserID:    user,
			Content:   "reported text",
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	if n, err := store.CountByUser(ctx, "a"); err != nil || n != 2 {
		t.Errorf("CountByUser(a) = %d, %v", n, err)
	}
	if n, err := store.CountByUser(ctx, "missing"); err != nil || n != 0 {
		t.Errorf("CountByUser(missing) = %d, %v", n, err)
	}
}
