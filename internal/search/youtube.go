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

const youtubeEndpoint = "https://www.googleapis.com/youtube/v3/search"

// YouTubeClient queries the YouTube Data API v3 for videos.
type YouTubeClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewYouTubeClient(apiKey string, timeout time.Duration, log *logger.Logger) *YouTubeClient {
	return &YouTubeClient{
		apiKey:     apiKey,
		endpoint:   youtubeEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("search.youtube"),
	}
}

func (c *YouTubeClient) Configured() bool {
	return c.apiKey != ""
}

func (c *YouTubeClient) do(ctx context.Context, params url.Values) (*ytSearchResponse, error) {
	params.Set("key", c.apiKey)
	params.Set("part", "snippet")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video search returned %d", resp.StatusCode)
	}

	var parsed ytSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode video search response: %w", err)
	}
	return &parsed, nil
}

// VideoSearch returns up to max videos for query. order is "relevance"
// or "date"; channelID restricts results to one channel when set.
func (c *YouTubeClient) VideoSearch(ctx context.Context, query, order, channelID string, max int) ([]VideoResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("order", order)
	params.Set("maxResults", strconv.Itoa(max))
	if channelID != "" {
		params.Set("channelId", channelID)
	}

	parsed, err := c.do(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]VideoResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.ID.VideoID == "" {
			continue
		}
		thumb := item.Snippet.Thumbnails.High.URL
		if thumb == "" {
			thumb = item.Snippet.Thumbnails.Default.URL
		}
		results = append(results, VideoResult{
			Title:       item.Snippet.Title,
			Link:        "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Thumbnail:   thumb,
			VideoID:     item.ID.VideoID,
			ChannelName: item.Snippet.ChannelTitle,
			PublishedAt: item.Snippet.PublishedAt,
		})
	}
	return results, nil
}

// ChannelLookup returns the ID of the most relevant channel for query,
// or "" when none is found. Used before date-ordered searches so that
// recency queries stay on an authoritative channel instead of
// surfacing whatever was uploaded last.
func (c *YouTubeClient) ChannelLookup(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "channel")
	params.Set("maxResults", "1")

	parsed, err := c.do(ctx, params)
	if err != nil {
		return "", err
	}
	if len(parsed.Items) == 0 {
		return "", nil
	}
	return parsed.Items[0].ID.ChannelID, nil
}
