package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neuralscholar/search-proxy/internal/genai"
	"github.com/neuralscholar/search-proxy/internal/logger"
	"github.com/neuralscholar/search-proxy/internal/search"
	"github.com/neuralscholar/search-proxy/internal/wire"
	"golang.org/x/sync/errgroup"
)

const (
	maxImages      = 8
	maxVideos      = 6
	shoppingCap    = 4
	historyWindow  = 10
	turnTruncation = 400
)

// Turn is one prior conversation exchange used for query rewriting.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type textGenerator interface {
	GenerateText(ctx context.Context, model string, req *genai.Request) (string, error)
}

type imageSearcher interface {
	Configured() bool
	ImageSearch(ctx context.Context, query string, num int) ([]search.ImageResult, error)
	WebSearch(ctx context.Context, query string, num int) ([]search.WebResult, error)
}

type videoSearcher interface {
	Configured() bool
	VideoSearch(ctx context.Context, query, order, channelID string, max int) ([]search.VideoResult, error)
	ChannelLookup(ctx context.Context, query string) (string, error)
}

type shoppingSearcher interface {
	Configured() bool
	ShoppingSearch(ctx context.Context, query, gl, hl string) ([]search.ShoppingResult, error)
}

// Pipeline resolves the media sidebar for a query: images, videos and
// optionally shopping results. Every sub-fetch degrades independently
// to empty output; the pipeline never fails a request.
type Pipeline struct {
	generator    textGenerator
	cse          imageSearcher
	youtube      videoSearcher
	shopping     shoppingSearcher
	utilityModel string
	logger       *logger.Logger
}

func NewPipeline(generator textGenerator, cse *search.CSEClient, youtube *search.YouTubeClient, shopping *search.ShoppingClient, utilityModel string, log *logger.Logger) *Pipeline {
	return &Pipeline{
		generator:    generator,
		cse:          cse,
		youtube:      youtube,
		shopping:     shopping,
		utilityModel: utilityModel,
		logger:       log.WithComponent("media"),
	}
}

// RewriteStandalone turns a follow-up query into a self-contained
// search query using the conversation history. On any rewrite failure
// the original query is returned unchanged.
func (p *Pipeline) RewriteStandalone(ctx context.Context, query string, history []Turn) string {
	if len(history) == 0 {
		return query
	}

	window := history
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}

	var sb strings.Builder
	for _, turn := range window {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, truncateRunes(turn.Content, turnTruncation))
	}

	prompt := fmt.Sprintf(
		"Rewrite the final user question as a single standalone web search query. "+
			"Use the conversation only to resolve references. "+
			"Reply with the query text and nothing else.\n\nConversation:\n%s\nFinal question: %s",
		sb.String(), query)

	rewritten := query
	out, err := p.generator.GenerateText(ctx, p.utilityModel, &genai.Request{
		Contents: []genai.Content{genai.UserTurn(prompt, nil)},
	})
	if err != nil {
		p.logger.Warn("query rewrite failed, using original",
			slog.String("error", err.Error()))
	} else if trimmed := strings.TrimSpace(out); trimmed != "" {
		rewritten = trimmed
	}

	// Queries leaning on pronouns still get the previous user turn
	// attached, even after a successful rewrite. The raw text anchors
	// the search when the rewrite resolved the reference wrongly.
	if pronounRe.MatchString(query) {
		if prev := lastUserTurn(history); prev != "" {
			rewritten = rewritten + " " + prev
		}
	}
	return rewritten
}

func lastUserTurn(history []Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return truncateRunes(history[i].Content, turnTruncation)
		}
	}
	return ""
}

// truncateRunes shortens s to at most n runes. Cutting on a rune
// boundary keeps multi-byte text valid when it lands in a prompt.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Fetch resolves images and videos for the query in parallel.
// extraImages are caller-supplied images placed ahead of search
// results. Images are skipped entirely for video-intent queries.
func (p *Pipeline) Fetch(ctx context.Context, query string, intent Intent, extraImages []wire.Image) wire.MediaResult {
	var (
		mu     sync.Mutex
		result wire.MediaResult
	)

	g, gctx := errgroup.WithContext(ctx)

	if !intent.Video && p.cse.Configured() {
		g.Go(func() error {
			images := p.fetchImages(gctx, query)
			mu.Lock()
			result.Images = images
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		videos := p.fetchVideos(gctx, query, intent)
		mu.Lock()
		result.Videos = videos
		mu.Unlock()
		return nil
	})

	g.Wait()

	if len(extraImages) > 0 {
		result.Images = append(append([]wire.Image{}, extraImages...), result.Images...)
	}
	if len(result.Images) > maxImages {
		result.Images = result.Images[:maxImages]
	}
	result.Videos = dedupeVideos(result.Videos)
	if len(result.Videos) > maxVideos {
		result.Videos = result.Videos[:maxVideos]
	}
	return result
}

func (p *Pipeline) fetchImages(ctx context.Context, query string) []wire.Image {
	hits, err := p.cse.ImageSearch(ctx, query, maxImages)
	if err != nil {
		p.logger.Warn("image search failed", slog.String("error", err.Error()))
		return nil
	}
	images := make([]wire.Image, 0, len(hits))
	for _, h := range hits {
		images = append(images, wire.Image{
			Title:     h.Title,
			Link:      h.Link,
			Src:       h.Src,
			Thumbnail: h.Thumbnail,
			Width:     h.Width,
			Height:    h.Height,
		})
	}
	return images
}

func (p *Pipeline) fetchVideos(ctx context.Context, query string, intent Intent) []wire.Video {
	if p.youtube.Configured() {
		order := "relevance"
		channelID := ""
		if intent.Recency {
			order = "date"
			id, err := p.youtube.ChannelLookup(ctx, query)
			if err != nil {
				p.logger.Warn("channel lookup failed", slog.String("error", err.Error()))
			} else {
				channelID = id
			}
		}
		hits, err := p.youtube.VideoSearch(ctx, query, order, channelID, maxVideos)
		if err != nil {
			p.logger.Warn("video search failed, trying web fallback",
				slog.String("error", err.Error()))
		} else if len(hits) > 0 {
			videos := make([]wire.Video, 0, len(hits))
			for _, h := range hits {
				videos = append(videos, wire.Video{
					Title:       h.Title,
					Link:        h.Link,
					Thumbnail:   h.Thumbnail,
					VideoID:     h.VideoID,
					ChannelName: h.ChannelName,
					PublishedAt: h.PublishedAt,
				})
			}
			return videos
		}
	}
	return p.fallbackVideos(ctx, query)
}

var videoIDRe = regexp.MustCompile(`(?:youtube\.com/watch\?(?:[^#\s]*&)?v=|youtu\.be/)([A-Za-z0-9_-]{6,})`)

// fallbackVideos extracts watch links from a general web search when
// the video API is unavailable or empty.
func (p *Pipeline) fallbackVideos(ctx context.Context, query string) []wire.Video {
	if !p.cse.Configured() {
		return nil
	}
	hits, err := p.cse.WebSearch(ctx, query+" youtube -shorts", 10)
	if err != nil {
		p.logger.Warn("video fallback search failed", slog.String("error", err.Error()))
		return nil
	}

	videos := make([]wire.Video, 0, len(hits))
	for _, h := range hits {
		m := videoIDRe.FindStringSubmatch(h.Link)
		if m == nil {
			continue
		}
		id := m[1]
		videos = append(videos, wire.Video{
			Title:     h.Title,
			Link:      h.Link,
			Thumbnail: "https://img.youtube.com/vi/" + id + "/hqdefault.jpg",
			VideoID:   id,
		})
	}
	return videos
}

// dedupeVideos removes later occurrences of the same videoId. Entries
// without an ID are kept as-is.
func dedupeVideos(videos []wire.Video) []wire.Video {
	seen := make(map[string]bool, len(videos))
	out := videos[:0]
	for _, v := range videos {
		if v.VideoID != "" {
			if seen[v.VideoID] {
				continue
			}
			seen[v.VideoID] = true
		}
		out = append(out, v)
	}
	return out
}

// FetchShopping resolves product results when the query shows shopping
// intent. Returns nil otherwise, and on every failure.
func (p *Pipeline) FetchShopping(ctx context.Context, query string) []wire.ShoppingItem {
	if !shopRe.MatchString(query) || !p.shopping.Configured() {
		return nil
	}

	gl, filter := detectRegion(query)
	searchQuery := query
	if filter != "" {
		searchQuery = query + " " + filter
	}

	hits, err := p.shopping.ShoppingSearch(ctx, searchQuery, gl, "")
	if err != nil {
		p.logger.Warn("shopping search failed", slog.String("error", err.Error()))
		return nil
	}

	items := make([]wire.ShoppingItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, wire.ShoppingItem{
			Title:     h.Title,
			Link:      h.Link,
			Price:     h.Price,
			Source:    h.Source,
			Thumbnail: h.Thumbnail,
			Rating:    h.Rating,
			Reviews:   h.Reviews,
		})
	}
	return p.Curate(ctx, query, items)
}

// Curate trims a shopping result set to the most relevant entries.
// Above the cap it asks the model for the best indices; anything wrong
// with the answer falls back to plain truncation, so curation is at
// worst a no-op.
func (p *Pipeline) Curate(ctx context.Context, query string, items []wire.ShoppingItem) []wire.ShoppingItem {
	if len(items) <= shoppingCap {
		return items
	}

	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s (%s, %s)\n", i, item.Title, item.Price, item.Source)
	}
	prompt := fmt.Sprintf(
		"A user searched for: %q\n\nProducts:\n%s\nReply with a JSON array of the indices of the %d most relevant products, e.g. [0,2,5]. Reply with the array only.",
		query, sb.String(), shoppingCap)

	out, err := p.generator.GenerateText(ctx, p.utilityModel, &genai.Request{
		Contents: []genai.Content{genai.UserTurn(prompt, nil)},
	})
	if err != nil {
		p.logger.Warn("shopping curation failed, truncating",
			slog.String("error", err.Error()))
		return items[:shoppingCap]
	}

	indices, ok := parseIndexArray(out, len(items))
	if !ok {
		p.logger.Warn("unparseable curation output, truncating",
			slog.String("output", out))
		return items[:shoppingCap]
	}

	curated := make([]wire.ShoppingItem, 0, shoppingCap)
	for _, idx := range indices {
		curated = append(curated, items[idx])
		if len(curated) == shoppingCap {
			break
		}
	}
	return curated
}

// parseIndexArray extracts the first bracketed JSON array from model
// output and validates every index.
func parseIndexArray(out string, n int) ([]int, bool) {
	start := strings.IndexByte(out, '[')
	if start < 0 {
		return nil, false
	}
	end := strings.IndexByte(out[start:], ']')
	if end < 0 {
		return nil, false
	}

	var indices []int
	if err := json.Unmarshal([]byte(out[start:start+end+1]), &indices); err != nil {
		return nil, false
	}
	if len(indices) == 0 {
		return nil, false
	}

	seen := make(map[int]bool, len(indices))
	valid := indices[:0]
	for _, idx := range indices {
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		valid = append(valid, idx)
	}
	if len(valid) == 0 {
		return nil, false
	}
	return valid, true
}
