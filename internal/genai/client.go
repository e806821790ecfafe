package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/neuralscholar/search-proxy/internal/logger"
)

// Client talks to the hosted LLM provider. One instance is shared
// across requests; per-call model names let the utility model and the
// answer models share a connection pool.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("genai"),
	}
}

func (c *Client) newRequest(ctx context.Context, model, verb string, body *Request) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:%s", c.baseURL, model, verb)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	return req, nil
}

func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("upstream returned %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("upstream returned %d", resp.StatusCode)
}

// StreamGenerate opens an SSE stream for the given request and returns
// a channel of events in upstream arrival order. The channel is closed
// when the stream ends; a terminal failure is delivered as a final
// event with Err set. Pre-connection failures are returned directly so
// callers can still choose the HTTP status code.
func (c *Client) StreamGenerate(ctx context.Context, model string, genReq *Request) (<-chan Event, error) {
	req, err := c.newRequest(ctx, model, "streamGenerateContent?alt=sse", genReq)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach upstream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError(resp)
	}

	events := make(chan Event, 16)
	go c.readStream(resp.Body, model, events)
	return events, nil
}

// readStream parses "data:" lines off the SSE body and forwards
// deltas. Grounding metadata may arrive on any chunk; each occurrence
// is forwarded so the consumer can keep the latest set.
func (c *Client) readStream(body io.ReadCloser, model string, events chan<- Event) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Warn("skipping malformed stream chunk",
				slog.String("model", model),
				slog.String("error", err.Error()))
			continue
		}

		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text == "" {
					continue
				}
				if part.Thought {
					events <- Event{ThoughtDelta: part.Text}
				} else {
					events <- Event{TextDelta: part.Text}
				}
			}
			if gm := cand.GroundingMetadata; gm != nil {
				sources := make([]WebSource, 0, len(gm.GroundingChunks))
				for _, gc := range gm.GroundingChunks {
					if gc.Web != nil {
						sources = append(sources, *gc.Web)
					}
				}
				if len(sources) > 0 {
					events <- Event{Sources: sources}
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		events <- Event{Err: fmt.Errorf("stream read failed: %w", err)}
	}
}

// GenerateText performs a one-shot generation and returns the
// concatenated answer text. Used for query rewriting and shopping
// curation, where a full stream is unnecessary.
func (c *Client) GenerateText(ctx context.Context, model string, genReq *Request) (string, error) {
	req, err := c.newRequest(ctx, model, "generateContent", genReq)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", upstreamError(resp)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	var sb strings.Builder
	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if !part.Thought {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String(), nil
}
