package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/neuralscholar/search-proxy/internal/logger"
)

const serpAPIEndpoint = "https://serpapi.com/search.json"

// ShoppingClient queries SerpAPI's google_shopping engine for product
// results.
type ShoppingClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewShoppingClient(apiKey string, timeout time.Duration, log *logger.Logger) *ShoppingClient {
	return &ShoppingClient{
		apiKey:     apiKey,
		endpoint:   serpAPIEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("search.shopping"),
	}
}

func (c *ShoppingClient) Configured() bool {
	return c.apiKey != ""
}

// ShoppingSearch returns product results for query. gl/hl localize the
// result set when non-empty.
func (c *ShoppingClient) ShoppingSearch(ctx context.Context, query, gl, hl string) ([]ShoppingResult, error) {
	params := url.Values{}
	params.Set("engine", "google_shopping")
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	if gl != "" {
		params.Set("gl", gl)
	}
	if hl != "" {
		params.Set("hl", hl)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopping request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shopping search returned %d", resp.StatusCode)
	}

	var parsed serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode shopping response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("shopping search failed: %s", parsed.Error)
	}

	results := make([]ShoppingResult, 0, len(parsed.ShoppingResults))
	for _, item := range parsed.ShoppingResults {
		link := item.Link
		if link == "" {
			link = item.ProductLink
		}
		results = append(results, ShoppingResult{
			Title:     item.Title,
			Link:      link,
			Price:     item.Price,
			Source:    item.Source,
			Thumbnail: item.Thumbnail,
			Rating:    item.Rating,
			Reviews:   item.Reviews,
		})
	}
	return results, nil
}
