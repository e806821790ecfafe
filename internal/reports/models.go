package reports

import "time"

// CreateReportRequest matches the report form clients submit when
// flagging answer content. Only the content itself is mandatory.
type CreateReportRequest struct {
	Category   string `json:"category"`
	Content    string `json:"content" binding:"required"`
	UserPrompt string `json:"userPrompt"`
	Comments   string `json:"comments"`
	Email      string `json:"email"`
}

type CreateReportResponse struct {
	ID             string `json:"id"`
	ContentSummary string `json:"contentSummary"`
	PromptSummary  string `json:"promptSummary"`
}

// Report is the stored record. Summaries are generated server-side at
// submission time so reviewers never have to read the full content.
type Report struct {
	ID             string
	UserID         string
	Category       string
	Content        string
	UserPrompt     string
	Comments       string
	Email          string
	ContentSummary string
	PromptSummary  string
	CreatedAt      time.Time
}

const MaxReportsPerUser = 100
