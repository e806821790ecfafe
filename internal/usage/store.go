package usage

import (
	"context"
	"time"
)

const dayFormat = "2006-01-02"

// Day returns the counter day bucket for t. Buckets roll over at
// midnight UTC regardless of the caller's timezone.
func Day(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

// NextReset returns the start of the next UTC day after t.
func NextReset(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Store persists per-user daily counters. Admission and increment are
// a single atomic operation so that concurrent requests at the limit
// boundary admit at most limit requests per day.
type Store interface {
	// IncrementIfBelow bumps the counter when its current value is
	// below limit. Returns whether the increment was applied and the
	// counter value after the call.
	IncrementIfBelow(ctx context.Context, userID, counter, day string, limit int) (bool, int, error)

	// Count returns the counter value, zero when absent.
	Count(ctx context.Context, userID, counter, day string) (int, error)

	// PurgeBefore deletes all rows with a day earlier than the given
	// bucket, returning the number removed.
	PurgeBefore(ctx context.Context, day string) (int64, error)

	Close() error
}
