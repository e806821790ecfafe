package streaming

import (
	"fmt"
	"strings"

	"github.com/neuralscholar/search-proxy/internal/genai"
)

// collectImages merges the single-image and multi-image request fields
// into inline parts. At most two images are accepted.
func collectImages(single *inlineImage, many []inlineImage) ([]genai.InlineData, error) {
	raw := make([]inlineImage, 0, len(many)+1)
	if single != nil {
		raw = append(raw, *single)
	}
	raw = append(raw, many...)

	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw) > maxInlineImages {
		return nil, fmt.Errorf("at most %d images are allowed", maxInlineImages)
	}

	images := make([]genai.InlineData, 0, len(raw))
	for _, img := range raw {
		decoded, err := parseInlineImage(img)
		if err != nil {
			return nil, err
		}
		images = append(images, decoded)
	}
	return images, nil
}

// parseInlineImage normalizes one request image. A data URL in the
// base64 field is tolerated; bare content without a declared type is
// assumed to be JPEG, matching what clients send.
func parseInlineImage(img inlineImage) (genai.InlineData, error) {
	data := img.Base64
	mime := img.MIMEType

	if strings.HasPrefix(data, "data:") {
		meta, rest, ok := strings.Cut(strings.TrimPrefix(data, "data:"), ",")
		if !ok {
			return genai.InlineData{}, fmt.Errorf("malformed image data URL")
		}
		data = rest
		if mime == "" {
			mime = strings.TrimSuffix(meta, ";base64")
		}
	}

	if data == "" {
		return genai.InlineData{}, fmt.Errorf("image content is empty")
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	if !strings.HasPrefix(mime, "image/") {
		return genai.InlineData{}, fmt.Errorf("unsupported image type %q", mime)
	}
	return genai.InlineData{MIMEType: mime, Data: data}, nil
}
