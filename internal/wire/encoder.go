package wire

import (
	"encoding/json"
	"io"
	"net/http"
)

// Encoder frames producer output onto a chunked response stream. Each
// write is flushed immediately when the underlying writer supports it,
// so clients see partial answers as they arrive.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	// held is a trailing payload fragment that is a proper prefix of a
	// marker. It stays back until the next write settles whether the
	// fragment grows into a marker lookalike that needs escaping.
	held string
}

func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

func (e *Encoder) write(s string) error {
	if _, err := io.WriteString(e.w, s); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Text writes a plain answer fragment. Marker lookalikes in the
// payload are escaped so the decoder cannot mistake them for framing.
// Escaping runs across write boundaries: a lookalike split over two
// fragments is joined with the withheld tail of the previous write
// before it is classified.
func (e *Encoder) Text(s string) error {
	if s == "" {
		return nil
	}
	esc := Escape(e.held + s)
	n := partialMarkerSuffix([]byte(esc))
	e.held = esc[len(esc)-n:]
	if len(esc) == n {
		return nil
	}
	return e.write(esc[:len(esc)-n])
}

// flushHeld releases the withheld tail. A following frame marker or
// end of stream settles the ambiguity: the tail can no longer grow
// into a marker, so it goes out as plain payload.
func (e *Encoder) flushHeld() error {
	if e.held == "" {
		return nil
	}
	s := e.held
	e.held = ""
	return e.write(s)
}

// Flush releases any withheld payload. Call once when no more text
// will be written.
func (e *Encoder) Flush() error {
	return e.flushHeld()
}

// Status writes a transient status/thought frame. The consumer keeps
// only the most recent status.
func (e *Encoder) Status(s string) error {
	if err := e.flushHeld(); err != nil {
		return err
	}
	return e.write(ThoughtStart + Escape(s) + ThoughtEnd)
}

// Sources writes a grounding citation frame. May be sent more than
// once; each frame replaces the previous set on the consumer.
func (e *Encoder) Sources(sources []Source) error {
	payload, err := json.Marshal(SourcesPayload{Sources: sources})
	if err != nil {
		return err
	}
	if err := e.flushHeld(); err != nil {
		return err
	}
	return e.write("\n\n" + JSONStart + "\n" + string(payload) + "\n" + JSONEnd + "\n\n")
}

// Media writes the media frame. Sent at most once, before any answer
// text.
func (e *Encoder) Media(m *MediaResult) error {
	if m.Empty() {
		return nil
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := e.flushHeld(); err != nil {
		return err
	}
	return e.write(MediaStart + "\n" + string(payload) + "\n" + MediaEnd + "\n\n")
}

// StreamError writes the terminal error frame used when the upstream
// fails after the response status has already been committed.
func (e *Encoder) StreamError(msg string) error {
	if err := e.flushHeld(); err != nil {
		return err
	}
	return e.write("\n\n[SYSTEM ERROR: Stream interrupted - " + msg + "]")
}
