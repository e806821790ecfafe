package wire

// Web is a single grounding citation from the answer model.
type Web struct {
	URI     string `json:"uri"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// Source wraps a citation the way clients expect it inside the
// sources frame.
type Source struct {
	Web Web `json:"web"`
}

// SourcesPayload is the JSON document carried between JSONStart and
// JSONEnd markers.
type SourcesPayload struct {
	Sources []Source `json:"sources"`
}

// Image is one image search result.
type Image struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Src       string `json:"src"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Video is one video search result. VideoID is the dedupe key.
type Video struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	VideoID     string `json:"videoId,omitempty"`
	ChannelName string `json:"channelName,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// ShoppingItem is one product result from the shopping provider.
type ShoppingItem struct {
	Title     string  `json:"title"`
	Link      string  `json:"link"`
	Price     string  `json:"price,omitempty"`
	Source    string  `json:"source,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	Reviews   int     `json:"reviews,omitempty"`
}

// MediaResult is the JSON document carried between MediaStart and
// MediaEnd markers. It is emitted at most once per response, before
// any answer text.
type MediaResult struct {
	Images   []Image        `json:"images"`
	Videos   []Video        `json:"videos"`
	Shopping []ShoppingItem `json:"shopping,omitempty"`
}

// Empty reports whether the result carries nothing worth framing.
func (m *MediaResult) Empty() bool {
	return m == nil || (len(m.Images) == 0 && len(m.Videos) == 0 && len(m.Shopping) == 0)
}
