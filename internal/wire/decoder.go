package wire

import (
	"encoding/json"
	"strings"
)

type channel int

const (
	chPlain channel = iota
	chStatus
	chJSON
	chMedia
)

// Decoder incrementally demultiplexes a framed response stream. Feed
// it raw chunks in arrival order and read the accumulated state after
// each call; chunk boundaries may fall anywhere, including inside a
// marker.
type Decoder struct {
	buf     []byte
	active  channel
	answer  strings.Builder
	status  strings.Builder
	frame   strings.Builder
	sources []Source
	media   *MediaResult
	dropped int
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes the next chunk of the stream.
func (d *Decoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)
	for {
		idx, marker := findMarker(d.buf)
		if idx < 0 {
			break
		}
		d.emit(d.buf[:idx])
		d.handleMarker(marker)
		d.buf = d.buf[idx+len(marker):]
	}
	// Everything except an ambiguous marker-prefix tail is safe to
	// classify now.
	keep := partialMarkerSuffix(d.buf)
	d.emit(d.buf[:len(d.buf)-keep])
	tail := make([]byte, keep)
	copy(tail, d.buf[len(d.buf)-keep:])
	d.buf = tail
}

// Close flushes any residual text. An unterminated JSON or media frame
// at end of stream is discarded.
func (d *Decoder) Close() {
	switch d.active {
	case chPlain, chStatus:
		d.emit(d.buf)
	case chJSON, chMedia:
		if d.frame.Len() > 0 || len(d.buf) > 0 {
			d.dropped++
		}
	}
	d.buf = nil
	d.active = chPlain
	d.frame.Reset()
}

func (d *Decoder) emit(fragment []byte) {
	if len(fragment) == 0 {
		return
	}
	switch d.active {
	case chPlain:
		d.answer.Write(fragment)
	case chStatus:
		d.status.Write(fragment)
	case chJSON, chMedia:
		d.frame.Write(fragment)
	}
}

func (d *Decoder) handleMarker(marker string) {
	switch marker {
	case StatusStart, ThoughtStart:
		// Latest-wins: a new status frame supersedes the old one.
		d.status.Reset()
		d.active = chStatus
	case StatusEnd, ThoughtEnd:
		d.active = chPlain
	case JSONStart:
		d.frame.Reset()
		d.active = chJSON
	case JSONEnd:
		var payload SourcesPayload
		if err := json.Unmarshal([]byte(d.frame.String()), &payload); err != nil {
			d.dropped++
		} else {
			d.sources = payload.Sources
		}
		d.frame.Reset()
		d.active = chPlain
	case MediaStart:
		d.frame.Reset()
		d.active = chMedia
	case MediaEnd:
		var m MediaResult
		if err := json.Unmarshal([]byte(d.frame.String()), &m); err != nil {
			d.dropped++
		} else {
			d.media = &m
		}
		d.frame.Reset()
		d.active = chPlain
	}
}

// Answer returns the accumulated plain answer text with payload
// escaping reversed.
func (d *Decoder) Answer() string {
	return Unescape(d.answer.String())
}

// Status returns the most recent status text, or "" when none is
// active.
func (d *Decoder) Status() string {
	return Unescape(d.status.String())
}

// Sources returns the latest citation set, or nil.
func (d *Decoder) Sources() []Source {
	return d.sources
}

// Media returns the decoded media frame, or nil.
func (d *Decoder) Media() *MediaResult {
	return d.media
}

// DroppedFrames counts structured frames discarded due to malformed
// JSON or truncation.
func (d *Decoder) DroppedFrames() int {
	return d.dropped
}
