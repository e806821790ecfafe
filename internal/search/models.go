package search

// Google Custom Search JSON API shapes.

type cseImageDetail struct {
	ContextLink   string `json:"contextLink"`
	ThumbnailLink string `json:"thumbnailLink"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
}

type cseItem struct {
	Title   string          `json:"title"`
	Link    string          `json:"link"`
	Snippet string          `json:"snippet"`
	Image   *cseImageDetail `json:"image,omitempty"`
}

type cseResponse struct {
	Items []cseItem `json:"items"`
}

// ImageResult is one hit from an image search. Link is the page the
// image appears on; Src is the image itself.
type ImageResult struct {
	Title     string
	Link      string
	Src       string
	Thumbnail string
	Width     int
	Height    int
}

// WebResult is one hit from a general web search.
type WebResult struct {
	Title   string
	Link    string
	Snippet string
}

// YouTube Data API v3 shapes.

type ytThumbnail struct {
	URL string `json:"url"`
}

type ytSnippet struct {
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	PublishedAt  string `json:"publishedAt"`
	Thumbnails   struct {
		High    ytThumbnail `json:"high"`
		Default ytThumbnail `json:"default"`
	} `json:"thumbnails"`
}

type ytSearchItem struct {
	ID struct {
		VideoID   string `json:"videoId"`
		ChannelID string `json:"channelId"`
	} `json:"id"`
	Snippet ytSnippet `json:"snippet"`
}

type ytSearchResponse struct {
	Items []ytSearchItem `json:"items"`
}

// VideoResult is one video hit, from either the YouTube API or the
// web-search fallback.
type VideoResult struct {
	Title       string
	Link        string
	Thumbnail   string
	VideoID     string
	ChannelName string
	PublishedAt string
}

// SerpAPI google_shopping shapes.

type serpShoppingItem struct {
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	ProductLink    string  `json:"product_link"`
	Price          string  `json:"price"`
	ExtractedPrice float64 `json:"extracted_price"`
	Source         string  `json:"source"`
	Thumbnail      string  `json:"thumbnail"`
	Rating         float64 `json:"rating"`
	Reviews        int     `json:"reviews"`
}

type serpResponse struct {
	ShoppingResults []serpShoppingItem `json:"shopping_results"`
	Error           string             `json:"error"`
}

// ShoppingResult is one product hit.
type ShoppingResult struct {
	Title     string
	Link      string
	Price     string
	Source    string
	Thumbnail string
	Rating    float64
	Reviews   int
}
