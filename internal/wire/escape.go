package wire

import "strings"

// zwsp is a zero-width space. Inserting it after the leading "__" of a
// marker-shaped substring breaks the marker without changing how the
// text renders. The sequence "__"+zwsp never appears in model output
// on its own, and any literal occurrence is doubled so the decoder can
// tell an escape apart from payload.
const zwsp = "​"

// Escape neutralizes marker occurrences in payload text so the decoder
// cannot misread user-visible text as framing.
func Escape(s string) string {
	if !strings.Contains(s, "__") {
		return s
	}
	s = strings.ReplaceAll(s, "__"+zwsp, "__"+zwsp+zwsp)
	for _, m := range markers {
		s = strings.ReplaceAll(s, m, "__"+zwsp+m[2:])
	}
	return s
}

// Unescape reverses Escape. Safe to call on text that was never
// escaped.
func Unescape(s string) string {
	if !strings.Contains(s, "__"+zwsp) {
		return s
	}
	for _, m := range markers {
		s = strings.ReplaceAll(s, "__"+zwsp+m[2:], m)
	}
	return strings.ReplaceAll(s, "__"+zwsp+zwsp, "__"+zwsp)
}
