package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/neuralscholar/search-proxy/internal/genai"
	"github.com/neuralscholar/search-proxy/internal/logger"
)

var ErrMaxReportsReached = errors.New("maximum number of reports reached")

// summaryContentLimit bounds how much reported content goes into the
// summarization prompt.
const summaryContentLimit = 10000

type textGenerator interface {
	GenerateText(ctx context.Context, model string, req *genai.Request) (string, error)
}

// Service records content reports and summarizes them for review.
type Service struct {
	store     Store
	generator textGenerator
	model     string
	logger    *logger.Logger
}

func NewService(store Store, generator textGenerator, model string, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		generator: generator,
		model:     model,
		logger:    log.WithComponent("reports"),
	}
}

func (s *Service) CreateReport(ctx context.Context, userID string, req *CreateReportRequest) (*CreateReportResponse, error) {
	log := s.logger.WithContext(ctx)

	count, err := s.store.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count user reports: %w", err)
	}
	if count >= MaxReportsPerUser {
		return nil, ErrMaxReportsReached
	}

	contentSummary, promptSummary := s.summarize(ctx, req.Content, req.UserPrompt)

	report := &Report{
		ID:             uuid.New().String(),
		UserID:         userID,
		Category:       req.Category,
		Content:        req.Content,
		UserPrompt:     req.UserPrompt,
		Comments:       req.Comments,
		Email:          req.Email,
		ContentSummary: contentSummary,
		PromptSummary:  promptSummary,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	log.Info("report submitted",
		slog.String("report_id", report.ID),
		slog.String("category", report.Category))

	return &CreateReportResponse{
		ID:             report.ID,
		ContentSummary: contentSummary,
		PromptSummary:  promptSummary,
	}, nil
}

type summaryPayload struct {
	ContentSummary string `json:"contentSummary"`
	PromptSummary  string `json:"promptSummary"`
}

// summarize condenses the reported content and the prompt that
// produced it. The model is asked for JSON only; when the output does
// not parse, the originals stand in so a report is never lost to a
// flaky summary.
func (s *Service) summarize(ctx context.Context, content, userPrompt string) (string, string) {
	prompt := fmt.Sprintf(
		"You are a moderation assistant. Summarize the reported content and the "+
			"prompt that produced it for a reviewer.\n\n"+
			"Prompt: %q\n\nReported content: %q\n\n"+
			"Output ONLY valid JSON in this format:\n"+
			`{"contentSummary": "one or two sentences", "promptSummary": "one sentence"}`,
		userPrompt, clipRunes(content, summaryContentLimit))

	out, err := s.generator.GenerateText(ctx, s.model, &genai.Request{
		Contents: []genai.Content{genai.UserTurn(prompt, nil)},
	})
	if err != nil {
		s.logger.Warn("report summarization failed, keeping originals",
			slog.String("error", err.Error()))
		return content, userPrompt
	}

	cleaned := strings.ReplaceAll(out, "```json", "")
	cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, "```", ""))

	var parsed summaryPayload
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil || parsed.ContentSummary == "" {
		s.logger.Warn("report summary did not parse, keeping originals")
		return content, userPrompt
	}
	return parsed.ContentSummary, parsed.PromptSummary
}

func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
