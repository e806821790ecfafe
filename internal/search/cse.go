package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/neuralscholar/search-proxy/internal/logger"
)

const cseEndpoint = "https://www.googleapis.com/customsearch/v1"

// CSEClient queries the Google Custom Search JSON API for web and
// image results.
type CSEClient struct {
	apiKey     string
	cx         string
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewCSEClient(apiKey, cx string, timeout time.Duration, log *logger.Logger) *CSEClient {
	return &CSEClient{
		apiKey:     apiKey,
		cx:         cx,
		endpoint:   cseEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("search.cse"),
	}
}

// Configured reports whether the client has credentials.
func (c *CSEClient) Configured() bool {
	return c.apiKey != "" && c.cx != ""
}

func (c *CSEClient) do(ctx context.Context, params url.Values) (*cseResponse, error) {
	params.Set("key", c.apiKey)
	params.Set("cx", c.cx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %d", resp.StatusCode)
	}

	var parsed cseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &parsed, nil
}

// ImageSearch returns up to num image results for query.
func (c *CSEClient) ImageSearch(ctx context.Context, query string, num int) ([]ImageResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(num))

	parsed, err := c.do(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]ImageResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		r := ImageResult{
			Title: item.Title,
			Src:   item.Link,
		}
		if item.Image != nil {
			r.Link = item.Image.ContextLink
			r.Thumbnail = item.Image.ThumbnailLink
			r.Width = item.Image.Width
			r.Height = item.Image.Height
		}
		results = append(results, r)
	}
	return results, nil
}

// WebSearch returns up to num general web results for query.
func (c *CSEClient) WebSearch(ctx context.Context, query string, num int) ([]WebResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	parsed, err := c.do(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]WebResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, WebResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
