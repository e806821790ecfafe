package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/neuralscholar/search-proxy/internal/agents"
	"github.com/neuralscholar/search-proxy/internal/genai"
	"github.com/neuralscholar/search-proxy/internal/logger"
	"github.com/neuralscholar/search-proxy/internal/media"
	"github.com/neuralscholar/search-proxy/internal/usage"
	"github.com/neuralscholar/search-proxy/internal/wire"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError, Format: "text"})
}

type fakeLLM struct {
	events   []genai.Event
	preErr   error
	gotModel string
	gotReq   *genai.Request
}

func (f *fakeLLM) StreamGenerate(ctx context.Context, model string, req *genai.Request) (<-chan genai.Event, error) {
	f.gotModel = model
	f.gotReq = req
	if f.preErr != nil {
		return nil, f.preErr
	}
	ch := make(chan genai.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeResolver struct {
	result   wire.MediaResult
	shopping []wire.ShoppingItem
}

func (f *fakeResolver) RewriteStandalone(ctx context.Context, query string, history []media.Turn) string {
	return query
}

func (f *fakeResolver) Fetch(ctx context.Context, query string, intent media.Intent, extra []wire.Image) wire.MediaResult {
	return f.result
}

func (f *fakeResolver) FetchShopping(ctx context.Context, query string) []wire.ShoppingItem {
	return f.shopping
}

func newTestRouter(llm llmStreamer, resolver mediaResolver, limits usage.Limits) *gin.Engine {
	gin.SetMode(gin.TestMode)
	usageSvc := usage.NewService(usage.NewMemoryStore(), limits, testLogger())
	h := NewHandler(llm, resolver, usageSvc, agents.NewRegistry("academic-model"), Config{
		SearchModel:       "search-model",
		SearchPrompt:      "Answer with web sources.",
		ThinkingBudget:    -1,
		MediaFetchTimeout: time.Second,
	}, testLogger())

	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "tester")
	r.ServeHTTP(w, req)
	return w
}

func TestSearchStreamsFramedResponse(t *testing.T) {
	llm := &fakeLLM{events: []genai.Event{
		{ThoughtDelta: "searching"},
		{TextDelta: "Photosynthesis converts "},
		{TextDelta: "light into energy."},
		{Sources: []genai.WebSource{{URI: "https://example.com", Title: "Bio"}}},
	}}
	resolver := &fakeResolver{result: wire.MediaResult{
		Images: []wire.Image{{Title: "leaf", Src: "https://img.example.com/leaf.png"}},
	}}

	r := newTestRouter(llm, resolver, usage.Limits{"search": 10})
	w := post(r, "/search", `{"query":"what is photosynthesis"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, wire.MediaStart) {
		t.Errorf("media frame is not first: %q", body[:40])
	}

	d := wire.NewDecoder()
	d.Feed(w.Body.Bytes())
	d.Close()

	if got := strings.TrimSpace(d.Answer()); got != "Photosynthesis converts light into energy." {
		t.Errorf("answer = %q", got)
	}
	if d.Status() != "searching" {
		t.Errorf("status = %q", d.Status())
	}
	if len(d.Sources()) != 1 || d.Sources()[0].Web.URI != "https://example.com" {
		t.Errorf("sources = %+v", d.Sources())
	}
	if d.Media() == nil || len(d.Media().Images) != 1 {
		t.Errorf("media = %+v", d.Media())
	}
	if llm.gotModel != "search-model" {
		t.Errorf("model = %q", llm.gotModel)
	}
	if llm.gotReq.Tools == nil {
		t.Error("grounding tool not enabled for search")
	}
}

func TestSearchHistoryShape(t *testing.T) {
	llm := &fakeLLM{events: []genai.Event{{TextDelta: "ok"}}}
	r := newTestRouter(llm, &fakeResolver{}, usage.Limits{"search": 10})

	w := post(r, "/search", `{"query":"and meiosis?","history":[
		{"role":"user","parts":[{"text":"explain "},{"text":"mitosis"}]},
		{"role":"model","parts":[{"text":"Mitosis is..."}]}
	]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	contents := llm.gotReq.Contents
	if len(contents) != 3 {
		t.Fatalf("contents = %d", len(contents))
	}
	if contents[0].Role != "user" || contents[0].Parts[0].Text != "explain mitosis" {
		t.Errorf("history turn = %+v, parts must be joined", contents[0])
	}
	if contents[1].Role != "model" {
		t.Errorf("role = %q", contents[1].Role)
	}
}

func TestSearchRejectsMissingQuery(t *testing.T) {
	r := newTestRouter(&fakeLLM{}, &fakeResolver{}, usage.Limits{"search": 10})
	if w := post(r, "/search", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSearchDeniedByUsageGate(t *testing.T) {
	r := newTestRouter(&fakeLLM{}, &fakeResolver{}, usage.Limits{"search": 1})

	if w := post(r, "/search", `{"query":"q"}`); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	w := post(r, "/search", `{"query":"q"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("denial body is not JSON: %v", err)
	}
	if resp["mode"] != "search" {
		t.Errorf("denial mode = %v", resp["mode"])
	}
}

func TestSearchUpstreamFailureBeforeStream(t *testing.T) {
	llm := &fakeLLM{preErr: errors.New("connect refused")}
	r := newTestRouter(llm, &fakeResolver{}, usage.Limits{"search": 10})
	if w := post(r, "/search", `{"query":"q"}`); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSearchMidStreamErrorFrame(t *testing.T) {
	llm := &fakeLLM{events: []genai.Event{
		{TextDelta: "partial"},
		{Err: errors.New("upstream reset")},
	}}
	r := newTestRouter(llm, &fakeResolver{}, usage.Limits{"search": 10})
	w := post(r, "/search", `{"query":"q"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, must already be committed", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "[SYSTEM ERROR: Stream interrupted - upstream reset]") {
		t.Errorf("body = %q", body)
	}
	if !strings.HasPrefix(body, "partial") {
		t.Errorf("streamed text lost: %q", body)
	}
}

func TestAcademicPhysicsStripsTeXDelims(t *testing.T) {
	llm := &fakeLLM{events: []genai.Event{
		{TextDelta: "The force is $F = ma$, so "},
		{TextDelta: "$$a = F/m$$"},
	}}
	r := newTestRouter(llm, &fakeResolver{}, usage.Limits{"academic": 10})
	w := post(r, "/academic", `{"query":"derive acceleration","mode":"isc_physics"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	d := wire.NewDecoder()
	d.Feed(w.Body.Bytes())
	d.Close()

	if got := d.Answer(); got != "The force is F = ma, so a = F/m" {
		t.Errorf("answer = %q", got)
	}
	if llm.gotModel != "academic-model" {
		t.Errorf("model = %q", llm.gotModel)
	}
}

func TestAcademicUnknownModeFallsBack(t *testing.T) {
	llm := &fakeLLM{events: []genai.Event{{TextDelta: "ok"}}}
	r := newTestRouter(llm, &fakeResolver{}, usage.Limits{"academic": 10})
	w := post(r, "/academic", `{"query":"q","mode":"isc_history"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	instr := llm.gotReq.SystemInstruction
	if instr == nil || !strings.Contains(instr.Parts[0].Text, "accountancy") {
		t.Error("unknown mode did not fall back to the accounts tutor")
	}
}

func TestAcademicImageLimits(t *testing.T) {
	r := newTestRouter(&fakeLLM{events: []genai.Event{{TextDelta: "ok"}}}, &fakeResolver{}, usage.Limits{"academic": 10})

	w := post(r, "/academic", `{"query":"q","images":[{"base64":"aa"},{"base64":"bb"},{"base64":"cc"}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("three images: status = %d", w.Code)
	}

	w = post(r, "/academic", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty request: status = %d", w.Code)
	}
}

func TestAcademicAttachesInlineImages(t *testing.T) {
	llm := &fakeLLM{events: []genai.Event{{TextDelta: "ok"}}}
	r := newTestRouter(llm, &fakeResolver{}, usage.Limits{"academic": 10})

	w := post(r, "/academic", `{"mode":"isc_physics","image":{"base64":"AAAA","mimeType":"image/png"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	last := llm.gotReq.Contents[len(llm.gotReq.Contents)-1]
	if len(last.Parts) != 2 {
		t.Fatalf("parts = %d, want image + text", len(last.Parts))
	}
	if last.Parts[0].InlineData == nil || last.Parts[0].InlineData.MIMEType != "image/png" {
		t.Errorf("inline data = %+v", last.Parts[0].InlineData)
	}
}

func TestUsageStatus(t *testing.T) {
	r := newTestRouter(&fakeLLM{events: []genai.Event{{TextDelta: "ok"}}}, &fakeResolver{}, usage.Limits{"search": 5})

	post(r, "/search", `{"query":"q"}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/usage/status?mode=search", nil)
	req.Header.Set("X-User-ID", "tester")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Limit     int `json:"limit"`
		Used      int `json:"used"`
		Remaining int `json:"remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Limit != 5 || resp.Used != 1 || resp.Remaining != 4 {
		t.Errorf("resp = %+v", resp)
	}
}
