package wire

import "bytes"

// Sideband markers embedded literally in the response byte stream.
// These are wire-level constants shared with every deployed client;
// they must never change byte-for-byte.
const (
	StatusStart  = "__STATUS_START__"
	StatusEnd    = "__STATUS_END__"
	ThoughtStart = "__THOUGHT_START__"
	ThoughtEnd   = "__THOUGHT_END__"
	JSONStart    = "__JSON_START__"
	JSONEnd      = "__JSON_END__"
	MediaStart   = "__MEDIA_START__"
	MediaEnd     = "__MEDIA_END__"
)

// markers lists the full vocabulary in scan order.
var markers = []string{
	StatusStart,
	StatusEnd,
	ThoughtStart,
	ThoughtEnd,
	JSONStart,
	JSONEnd,
	MediaStart,
	MediaEnd,
}

// maxMarkerLen is the length of the longest marker, used to bound how
// much tail the decoder withholds while waiting for more bytes.
var maxMarkerLen = func() int {
	max := 0
	for _, m := range markers {
		if len(m) > max {
			max = len(m)
		}
	}
	return max
}()

// findMarker returns the byte offset and value of the earliest complete
// marker in buf, or (-1, "") when none is present.
func findMarker(buf []byte) (int, string) {
	best := -1
	found := ""
	for _, m := range markers {
		if idx := bytes.Index(buf, []byte(m)); idx >= 0 && (best == -1 || idx < best) {
			best = idx
			found = m
		}
	}
	return best, found
}

// partialMarkerSuffix returns the length of the longest suffix of buf
// that is a proper prefix of some marker. Such a suffix is ambiguous:
// the next chunk may complete it into a marker, so it must be withheld
// rather than classified as payload.
func partialMarkerSuffix(buf []byte) int {
	limit := maxMarkerLen - 1
	if len(buf) < limit {
		limit = len(buf)
	}
	for k := limit; k > 0; k-- {
		tail := buf[len(buf)-k:]
		for _, m := range markers {
			if len(m) > k && string(tail) == m[:k] {
				return k
			}
		}
	}
	return 0
}
