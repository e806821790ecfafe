package reports

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(gen textGenerator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(NewMemoryStore(), gen, "util", testLogger()), testLogger())
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func postReport(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/report", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "tester")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateReportEndpoint(t *testing.T) {
	gen := &fakeGenerator{out: `{"contentSummary": "short version", "promptSummary": "the ask"}`}
	r := newTestRouter(gen)

	w := postReport(r, `{"category":"harmful","content":"bad answer text","userPrompt":"the question","comments":"please review"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp CreateReportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID == "" || resp.ContentSummary != "short version" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateReportRequiresContent(t *testing.T) {
	r := newTestRouter(&fakeGenerator{})

	if w := postReport(r, `{"category":"spam"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing content: status = %d", w.Code)
	}
	if w := postReport(r, `{"content":"   "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank content: status = %d", w.Code)
	}
	if w := postReport(r, `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body: status = %d", w.Code)
	}
}

func TestCreateReportCapReturns429(t *testing.T) {
	gen := &fakeGenerator{out: `{"contentSummary": "s", "promptSummary": "p"}`}
	r := newTestRouter(gen)

	for i := 0; i < MaxReportsPerUser; i++ {
		if w := postReport(r, `{"content":"x"}`); w.Code != http.StatusCreated {
			t.Fatalf("report %d: status = %d", i, w.Code)
		}
	}
	if w := postReport(r, `{"content":"x"}`); w.Code != http.StatusTooManyRequests {
		t.Errorf("over cap: status = %d", w.Code)
	}
}
