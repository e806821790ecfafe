package genai

// Request/response shapes for the generateContent REST API. Only the
// fields this service reads or writes are modeled.

type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	Thought    bool        `json:"thought,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Tool enables server-side web-search grounding when GoogleSearch is
// non-nil.
type Tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type ThinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget,omitempty"`
	IncludeThoughts bool `json:"includeThoughts,omitempty"`
}

type GenerationConfig struct {
	Temperature    *float64        `json:"temperature,omitempty"`
	ThinkingConfig *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

type Request struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

type GroundingMetadata struct {
	GroundingChunks []GroundingChunk `json:"groundingChunks"`
}

type Candidate struct {
	Content           Content            `json:"content"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
	FinishReason      string             `json:"finishReason,omitempty"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type generateResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Event is one unit of upstream stream progress, in arrival order.
// Exactly one field is meaningful per event; Err is terminal.
type Event struct {
	TextDelta    string
	ThoughtDelta string
	Sources      []WebSource
	Err          error
}

// UserTurn builds a user content entry with optional inline images.
func UserTurn(text string, images []InlineData) Content {
	parts := make([]Part, 0, len(images)+1)
	for i := range images {
		parts = append(parts, Part{InlineData: &images[i]})
	}
	parts = append(parts, Part{Text: text})
	return Content{Role: "user", Parts: parts}
}

// ModelTurn builds a model content entry from prior answer text.
func ModelTurn(text string) Content {
	return Content{Role: "model", Parts: []Part{{Text: text}}}
}

// SystemInstruction wraps an instruction string in the shape the API
// expects.
func SystemInstruction(text string) *Content {
	if text == "" {
		return nil
	}
	return &Content{Parts: []Part{{Text: text}}}
}
