package genai

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/neuralscholar/search-proxy/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError, Format: "text"})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", 5*time.Second, testLogger())
}

func TestStreamGenerateEvents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/test-model:streamGenerateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`data: {"candidates":[{"content":{"parts":[{"text":"planning","thought":true}]}}]}`,
			``,
			`data: {"candidates":[{"content":{"parts":[{"text":"Hello "}]}}]}`,
			`data: {"candidates":[{"content":{"parts":[{"text":"world"}]},"groundingMetadata":{"groundingChunks":[{"web":{"uri":"https://example.com","title":"Example"}}]}}]}`,
			`data: not valid json`,
			`data: [DONE]`,
		}
		for _, c := range chunks {
			w.Write([]byte(c + "\n"))
		}
	})

	events, err := client.StreamGenerate(context.Background(), "test-model", &Request{
		Contents: []Content{UserTurn("hi", nil)},
	})
	if err != nil {
		t.Fatalf("StreamGenerate: %v", err)
	}

	var text, thought string
	var sources []WebSource
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
		text += ev.TextDelta
		thought += ev.ThoughtDelta
		if ev.Sources != nil {
			sources = ev.Sources
		}
	}

	if text != "Hello world" {
		t.Errorf("text = %q", text)
	}
	if thought != "planning" {
		t.Errorf("thought = %q", thought)
	}
	if len(sources) != 1 || sources[0].URI != "https://example.com" {
		t.Errorf("sources = %+v", sources)
	}
}

func TestStreamGenerateUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := client.StreamGenerate(context.Background(), "test-model", &Request{})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if got := err.Error(); got != "upstream returned 429: quota exhausted" {
		t.Errorf("err = %q", got)
	}
}

func TestGenerateText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/util-model:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"skipped","thought":true},{"text":"re"},{"text":"written"}]}}]}`))
	})

	got, err := client.GenerateText(context.Background(), "util-model", &Request{
		Contents: []Content{UserTurn("rewrite this", nil)},
	})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "rewritten" {
		t.Errorf("text = %q, thought parts must be excluded", got)
	}
}
