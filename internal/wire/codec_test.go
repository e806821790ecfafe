package wire

import (
	"bytes"
	"strings"
	"testing"
)

func encodeAll(t *testing.T, fn func(*Encoder)) []byte {
	t.Helper()
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	fn(e)
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return buf.Bytes()
}

func decodeChunks(stream []byte, size int) *Decoder {
	d := NewDecoder()
	for i := 0; i < len(stream); i += size {
		end := i + size
		if end > len(stream) {
			end = len(stream)
		}
		d.Feed(stream[i:end])
	}
	d.Close()
	return d
}

func TestRoundTrip(t *testing.T) {
	media := &MediaResult{
		Images: []Image{{Title: "diagram", Link: "https://example.com/a", Src: "https://example.com/a.png"}},
		Videos: []Video{{Title: "lecture", Link: "https://youtube.com/watch?v=abc123", VideoID: "abc123"}},
	}
	stream := encodeAll(t, func(e *Encoder) {
		e.Media(media)
		e.Status("Searching the web")
		e.Status("Reading results")
		e.Text("The answer is ")
		e.Text("42.")
		e.Sources([]Source{{Web: Web{URI: "https://example.com/1", Title: "one"}}})
		e.Sources([]Source{
			{Web: Web{URI: "https://example.com/1", Title: "one"}},
			{Web: Web{URI: "https://example.com/2", Title: "two"}},
		})
	})

	d := NewDecoder()
	d.Feed(stream)
	d.Close()

	if got := strings.TrimSpace(d.Answer()); got != "The answer is 42." {
		t.Errorf("answer = %q", got)
	}
	if got := d.Status(); got != "Reading results" {
		t.Errorf("status = %q, want latest frame only", got)
	}
	if len(d.Sources()) != 2 {
		t.Fatalf("sources = %d, want replacement set of 2", len(d.Sources()))
	}
	if d.Sources()[1].Web.Title != "two" {
		t.Errorf("sources[1].Title = %q", d.Sources()[1].Web.Title)
	}
	m := d.Media()
	if m == nil {
		t.Fatal("media frame missing")
	}
	if len(m.Images) != 1 || m.Images[0].Title != "diagram" {
		t.Errorf("images = %+v", m.Images)
	}
	if len(m.Videos) != 1 || m.Videos[0].VideoID != "abc123" {
		t.Errorf("videos = %+v", m.Videos)
	}
	if d.DroppedFrames() != 0 {
		t.Errorf("dropped = %d", d.DroppedFrames())
	}
}

func TestSplitBoundaryRobustness(t *testing.T) {
	stream := encodeAll(t, func(e *Encoder) {
		e.Status("thinking")
		e.Text("hello world")
		e.Sources([]Source{{Web: Web{URI: "https://example.com", Title: "ref"}}})
	})

	// Splitting the stream at any offset, including inside a marker,
	// must not change the decoded result.
	for split := 1; split < len(stream); split++ {
		d := NewDecoder()
		d.Feed(stream[:split])
		d.Feed(stream[split:])
		d.Close()

		if got := strings.TrimSpace(d.Answer()); got != "hello world" {
			t.Fatalf("split %d: answer = %q", split, got)
		}
		if got := d.Status(); got != "thinking" {
			t.Fatalf("split %d: status = %q", split, got)
		}
		if len(d.Sources()) != 1 {
			t.Fatalf("split %d: sources = %d", split, len(d.Sources()))
		}
	}
}

func TestOneByteChunks(t *testing.T) {
	stream := encodeAll(t, func(e *Encoder) {
		e.Text("chunked ")
		e.Status("working")
		e.Text("text survives")
	})

	d := decodeChunks(stream, 1)
	if got := d.Answer(); got != "chunked text survives" {
		t.Errorf("answer = %q", got)
	}
	if got := d.Status(); got != "working" {
		t.Errorf("status = %q", got)
	}
}

func TestAmbiguousTailIsPlainText(t *testing.T) {
	// "__" could begin a marker; once the next chunk disambiguates it,
	// the bytes must surface as ordinary text.
	d := NewDecoder()
	d.Feed([]byte("snake"))
	d.Feed([]byte("__"))
	if got := d.Answer(); got != "snake" {
		t.Errorf("answer before disambiguation = %q", got)
	}
	d.Feed([]byte("case"))
	d.Close()
	if got := d.Answer(); got != "snake__case" {
		t.Errorf("answer = %q", got)
	}
}

func TestMarkerLiteralInPayload(t *testing.T) {
	payload := "the protocol uses __JSON_START__ and __JSON_END__ as delimiters"
	stream := encodeAll(t, func(e *Encoder) {
		e.Text(payload)
	})

	if bytes.Contains(stream, []byte(JSONStart)) {
		t.Fatal("escaped stream still contains a raw marker")
	}

	for _, size := range []int{1, 3, len(stream)} {
		d := decodeChunks(stream, size)
		if got := d.Answer(); got != payload {
			t.Errorf("chunk size %d: answer = %q", size, got)
		}
		if d.Sources() != nil {
			t.Errorf("chunk size %d: marker literal decoded as frame", size)
		}
	}
}

func TestMarkerLiteralSplitAcrossWrites(t *testing.T) {
	// A marker lookalike arriving in two text fragments must still be
	// escaped; otherwise the decoder opens a frame and eats the rest of
	// the answer.
	stream := encodeAll(t, func(e *Encoder) {
		e.Text("see __JSON_")
		e.Text("START__ here")
		e.Text(" trailing answer text")
	})

	if bytes.Contains(stream, []byte(JSONStart)) {
		t.Fatal("split lookalike reached the wire unescaped")
	}

	d := NewDecoder()
	d.Feed(stream)
	d.Close()
	if got := d.Answer(); got != "see __JSON_START__ here trailing answer text" {
		t.Errorf("answer = %q", got)
	}
	if d.DroppedFrames() != 0 {
		t.Errorf("dropped = %d", d.DroppedFrames())
	}
}

func TestMarkerLiteralOneBytePerWrite(t *testing.T) {
	payload := "tags: __MEDIA_START__ end"
	stream := encodeAll(t, func(e *Encoder) {
		for _, b := range []byte(payload) {
			e.Text(string(b))
		}
	})

	if bytes.Contains(stream, []byte(MediaStart)) {
		t.Fatal("byte-at-a-time lookalike reached the wire unescaped")
	}
	d := decodeChunks(stream, 1)
	if got := d.Answer(); got != payload {
		t.Errorf("answer = %q", got)
	}
}

func TestHeldTailReleasedByFrame(t *testing.T) {
	// A status frame between the two halves settles the ambiguity: the
	// withheld tail goes out as plain text before the frame and the
	// second half cannot join it into a marker on the wire.
	stream := encodeAll(t, func(e *Encoder) {
		e.Text("tail __JSON_")
		e.Status("working")
		e.Text("START__ done")
	})

	d := NewDecoder()
	d.Feed(stream)
	d.Close()
	if got := d.Answer(); got != "tail __JSON_START__ done" {
		t.Errorf("answer = %q", got)
	}
	if got := d.Status(); got != "working" {
		t.Errorf("status = %q", got)
	}
	if d.DroppedFrames() != 0 {
		t.Errorf("dropped = %d", d.DroppedFrames())
	}
}

func TestFlushReleasesTrailingAmbiguity(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.Text("ends with __")
	if got := buf.String(); strings.HasSuffix(got, "__") {
		t.Fatalf("ambiguous tail written eagerly: %q", got)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := buf.String(); got != "ends with __" {
		t.Errorf("stream = %q", got)
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"plain text, no markers",
		"__JSON_START__",
		"prefix __MEDIA_END__ suffix",
		"__STATUS_START____STATUS_END__",
		"already escaped __" + zwsp + "JSON_START__ stays intact",
		"bare __" + zwsp + " sequence",
		"underscores __ but no marker",
	}
	for _, in := range cases {
		if got := Unescape(Escape(in)); got != in {
			t.Errorf("round trip %q -> %q", in, got)
		}
	}
}

func TestMalformedJSONFrameDropped(t *testing.T) {
	stream := []byte("before " + JSONStart + "\n{not json}\n" + JSONEnd + " after")
	d := NewDecoder()
	d.Feed(stream)
	d.Close()

	if d.Sources() != nil {
		t.Error("malformed frame produced sources")
	}
	if d.DroppedFrames() != 1 {
		t.Errorf("dropped = %d, want 1", d.DroppedFrames())
	}
	if got := d.Answer(); got != "before  after" {
		t.Errorf("answer = %q, text around dropped frame must survive", got)
	}
}

func TestUnterminatedFrameDiscarded(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("answer " + MediaStart + "\n{\"images\":["))
	d.Close()

	if d.Media() != nil {
		t.Error("truncated media frame decoded")
	}
	if d.DroppedFrames() != 1 {
		t.Errorf("dropped = %d, want 1", d.DroppedFrames())
	}
	if got := d.Answer(); got != "answer " {
		t.Errorf("answer = %q", got)
	}
}

func TestStatusResetOnNewFrame(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte(StatusStart + "first" + StatusEnd))
	if got := d.Status(); got != "first" {
		t.Fatalf("status = %q", got)
	}
	d.Feed([]byte(StatusStart + "sec"))
	if got := d.Status(); got != "sec" {
		t.Errorf("status mid-frame = %q, want accumulator reset", got)
	}
	d.Feed([]byte("ond" + StatusEnd))
	d.Close()
	if got := d.Status(); got != "second" {
		t.Errorf("status = %q", got)
	}
}

func TestEmptyMediaNotFramed(t *testing.T) {
	stream := encodeAll(t, func(e *Encoder) {
		e.Media(&MediaResult{})
		e.Text("no media here")
	})
	if bytes.Contains(stream, []byte(MediaStart)) {
		t.Error("empty media result was framed")
	}
}

func TestStreamErrorFrame(t *testing.T) {
	stream := encodeAll(t, func(e *Encoder) {
		e.Text("partial answer")
		e.StreamError("connection reset")
	})
	d := NewDecoder()
	d.Feed(stream)
	d.Close()

	want := "partial answer\n\n[SYSTEM ERROR: Stream interrupted - connection reset]"
	if got := d.Answer(); got != want {
		t.Errorf("answer = %q", got)
	}
}
