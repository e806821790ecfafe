package streaming

import (
	"strings"

	"github.com/neuralscholar/search-proxy/internal/genai"
	"github.com/neuralscholar/search-proxy/internal/metrics"
	"github.com/neuralscholar/search-proxy/internal/wire"
)

// Sanitizer rewrites outgoing answer text per agent mode.
type Sanitizer func(string) string

// StripTeXDelims removes $ and $$ math delimiters from a delta.
// Removing single characters keeps the transform safe across chunk
// boundaries.
func StripTeXDelims(s string) string {
	return strings.ReplaceAll(s, "$", "")
}

func toWireSources(sources []genai.WebSource) []wire.Source {
	out := make([]wire.Source, 0, len(sources))
	for _, s := range sources {
		out = append(out, wire.Source{Web: wire.Web{URI: s.URI, Title: s.Title}})
	}
	return out
}

// StreamResponse writes the framed response: the media frame first,
// then upstream events in arrival order. An upstream error after the
// stream has started becomes a terminal plain-text error frame; a
// write error means the client is gone and the remaining upstream
// output is drained and discarded.
func StreamResponse(enc *wire.Encoder, mediaResult wire.MediaResult, events <-chan genai.Event, sanitize Sanitizer) error {
	if sanitize == nil {
		sanitize = func(s string) string { return s }
	}

	if !mediaResult.Empty() {
		if err := enc.Media(&mediaResult); err != nil {
			return drain(events, err)
		}
		metrics.FramesWritten.WithLabelValues("media").Inc()
	}

	for ev := range events {
		var err error
		switch {
		case ev.Err != nil:
			enc.StreamError(ev.Err.Error())
			metrics.FramesWritten.WithLabelValues("error").Inc()
			return drain(events, ev.Err)
		case ev.ThoughtDelta != "":
			err = enc.Status(ev.ThoughtDelta)
			metrics.FramesWritten.WithLabelValues("status").Inc()
		case ev.TextDelta != "":
			err = enc.Text(sanitize(ev.TextDelta))
			metrics.FramesWritten.WithLabelValues("text").Inc()
		case ev.Sources != nil:
			err = enc.Sources(toWireSources(ev.Sources))
			metrics.FramesWritten.WithLabelValues("sources").Inc()
		}
		if err != nil {
			return drain(events, err)
		}
	}
	return enc.Flush()
}

// drain unblocks the upstream reader goroutine before returning.
func drain(events <-chan genai.Event, err error) error {
	for range events {
	}
	return err
}
