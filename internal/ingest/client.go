package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/neuralscholar/search-proxy/internal/wire"
)

// Turn is one prior exchange sent back to the server for context.
type Turn struct {
	Role    string
	Content string
}

// Image is one inline image attachment for academic questions.
type Image struct {
	Base64   string `json:"base64"`
	MIMEType string `json:"mimeType,omitempty"`
}

// Request describes one streaming question.
type Request struct {
	Query   string
	Mode    string // "search" or "academic"
	SubMode string // agent mode, academic only
	Images  []Image
	History []Turn
}

type wireTurn struct {
	Role  string `json:"role"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

func toWireHistory(history []Turn) []wireTurn {
	out := make([]wireTurn, 0, len(history))
	for _, t := range history {
		wt := wireTurn{Role: t.Role}
		wt.Parts = append(wt.Parts, struct {
			Text string `json:"text"`
		}{Text: t.Content})
		out = append(out, wt)
	}
	return out
}

// Snapshot is the complete decoded state after one received chunk.
// Consumers render it wholesale; nothing is delta-encoded.
type Snapshot struct {
	AnswerText  string
	ThoughtText string
	Sources     []wire.Source
	Media       *wire.MediaResult
	Done        bool
	Err         error
}

// RateLimitedError is returned when the server denies admission.
type RateLimitedError struct {
	Mode     string    `json:"mode"`
	Limit    int       `json:"limit"`
	ResetsAt time.Time `json:"resets_at"`
	Message  string    `json:"error"`
}

func (e *RateLimitedError) Error() string {
	return e.Message
}

// ServerError is returned for pre-stream failures other than denial.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client drives one conversation against the streaming endpoints. At
// most one request is in flight; starting a new one cancels the
// previous.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		userID:  userID,
		// No client-wide timeout: streams are long-lived and bounded
		// by the request context instead.
		httpClient: &http.Client{},
	}
}

// Stop aborts the in-flight request, if any. No further snapshots are
// published; text already delivered stays valid.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Client) begin(ctx context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return ctx
}

// Search streams one question, invoking onSnapshot after every
// received chunk and once more with Done set when the stream ends.
// Blocks until the stream finishes or is stopped.
func (c *Client) Search(ctx context.Context, req Request, onSnapshot func(Snapshot)) error {
	ctx = c.begin(ctx)

	path := "/search"
	body := map[string]any{
		"query":   req.Query,
		"history": toWireHistory(req.History),
	}
	if req.Mode == "academic" {
		path = "/academic"
		body["mode"] = req.SubMode
		if len(req.Images) > 0 {
			body["images"] = req.Images
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", c.userID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeFailure(resp)
	}

	decoder := wire.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
			onSnapshot(snapshotOf(decoder, false, nil))
		}
		if readErr == io.EOF {
			decoder.Close()
			onSnapshot(snapshotOf(decoder, true, nil))
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				// Stopped by the caller: stay silent.
				return nil
			}
			decoder.Close()
			onSnapshot(snapshotOf(decoder, true, readErr))
			return readErr
		}
	}
}

func snapshotOf(d *wire.Decoder, done bool, err error) Snapshot {
	return Snapshot{
		AnswerText:  d.Answer(),
		ThoughtText: d.Status(),
		Sources:     d.Sources(),
		Media:       d.Media(),
		Done:        done,
		Err:         err,
	}
}

func decodeFailure(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	if resp.StatusCode == http.StatusTooManyRequests {
		rle := &RateLimitedError{}
		if err := json.Unmarshal(body, rle); err == nil && rle.Message != "" {
			return rle
		}
		return &RateLimitedError{Message: "daily limit reached"}
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: msg}
}
