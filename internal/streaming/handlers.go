package streaming

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/neuralscholar/search-proxy/internal/agents"
	apierrors "github.com/neuralscholar/search-proxy/internal/errors"
	"github.com/neuralscholar/search-proxy/internal/genai"
	"github.com/neuralscholar/search-proxy/internal/logger"
	"github.com/neuralscholar/search-proxy/internal/media"
	"github.com/neuralscholar/search-proxy/internal/metrics"
	"github.com/neuralscholar/search-proxy/internal/usage"
	"github.com/neuralscholar/search-proxy/internal/wire"
)

const maxInlineImages = 2

type llmStreamer interface {
	StreamGenerate(ctx context.Context, model string, req *genai.Request) (<-chan genai.Event, error)
}

type mediaResolver interface {
	RewriteStandalone(ctx context.Context, query string, history []media.Turn) string
	Fetch(ctx context.Context, query string, intent media.Intent, extra []wire.Image) wire.MediaResult
	FetchShopping(ctx context.Context, query string) []wire.ShoppingItem
}

// Config carries the handler-level settings taken from the app config.
type Config struct {
	SearchModel       string
	SearchPrompt      string
	ThinkingBudget    int
	MediaFetchTimeout time.Duration
}

// Handler serves the streaming search and tutoring endpoints.
type Handler struct {
	llm      llmStreamer
	pipeline mediaResolver
	usage    *usage.Service
	registry *agents.Registry
	cfg      Config
	logger   *logger.Logger
}

func NewHandler(llm llmStreamer, pipeline mediaResolver, usageSvc *usage.Service, registry *agents.Registry, cfg Config, log *logger.Logger) *Handler {
	return &Handler{
		llm:      llm,
		pipeline: pipeline,
		usage:    usageSvc,
		registry: registry,
		cfg:      cfg,
		logger:   log.WithComponent("streaming"),
	}
}

// RegisterRoutes attaches the streaming endpoints to the router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/search", h.Search)
	r.POST("/academic", h.Academic)
	r.GET("/usage/status", h.UsageStatus)
}

type historyPart struct {
	Text string `json:"text"`
}

type historyTurn struct {
	Role  string        `json:"role"`
	Parts []historyPart `json:"parts"`
}

// toTurns flattens the wire history shape into one string per turn.
func toTurns(history []historyTurn) []media.Turn {
	turns := make([]media.Turn, 0, len(history))
	for _, h := range history {
		var sb strings.Builder
		for _, p := range h.Parts {
			sb.WriteString(p.Text)
		}
		turns = append(turns, media.Turn{Role: h.Role, Content: sb.String()})
	}
	return turns
}

type inlineImage struct {
	Base64   string `json:"base64"`
	MIMEType string `json:"mimeType"`
}

type searchRequest struct {
	Query   string        `json:"query" binding:"required"`
	History []historyTurn `json:"history"`
}

type academicRequest struct {
	Query   string        `json:"query"`
	Image   *inlineImage  `json:"image"`
	Images  []inlineImage `json:"images"`
	Mode    string        `json:"mode"`
	History []historyTurn `json:"history"`
}

// callerID identifies the user for quota accounting. Falls back to
// client IP for callers that do not send an identity header.
func callerID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return c.ClientIP()
}

func requestContext(c *gin.Context, userID, mode string) context.Context {
	ctx := logger.WithRequestID(c.Request.Context(), logger.GenerateRequestID())
	ctx = logger.WithUserID(ctx, userID)
	return logger.WithMode(ctx, mode)
}

// admit runs the usage gate and writes the 429 response on denial.
// Returns false when the request must not proceed.
func (h *Handler) admit(c *gin.Context, ctx context.Context, userID, mode, subMode string) bool {
	decision, err := h.usage.Allow(ctx, userID, mode, subMode)
	if err != nil {
		h.logger.LogError(ctx, err, "usage gate failed")
		apierrors.AbortWithInternal(c, "Usage tracking unavailable")
		return false
	}
	if !decision.Allowed {
		metrics.AdmissionDenied.WithLabelValues(mode).Inc()
		apierrors.AbortWithRateLimit(c, apierrors.DailyLimitExceeded(mode, decision.Limit, decision.ResetsAt))
		return false
	}
	return true
}

func streamHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
}

// Search handles POST /search: a general web-search question with
// grounded answer, images, videos and optionally shopping results.
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "query is required", nil)
		return
	}

	userID := callerID(c)
	ctx := requestContext(c, userID, "search")
	log := h.logger.WithContext(ctx)

	if !h.admit(c, ctx, userID, "search", "") {
		return
	}

	start := time.Now()
	history := toTurns(req.History)

	// Resolve media while the model call is being set up. The media
	// fan-out has its own deadline so a slow provider cannot stall the
	// answer stream indefinitely.
	mediaCh := make(chan wire.MediaResult, 1)
	go func() {
		mctx, cancel := context.WithTimeout(ctx, h.cfg.MediaFetchTimeout)
		defer cancel()

		fetchStart := time.Now()
		query := h.pipeline.RewriteStandalone(mctx, req.Query, history)
		intent := media.DetectIntent(query)
		result := h.pipeline.Fetch(mctx, query, intent, nil)
		result.Shopping = h.pipeline.FetchShopping(mctx, query)
		metrics.MediaFetchDuration.Observe(time.Since(fetchStart).Seconds())
		mediaCh <- result
	}()

	genReq := &genai.Request{
		Contents:          historyContents(history, req.Query, nil),
		SystemInstruction: genai.SystemInstruction(h.cfg.SearchPrompt),
		Tools:             []genai.Tool{{GoogleSearch: &struct{}{}}},
		GenerationConfig: &genai.GenerationConfig{
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget:  h.cfg.ThinkingBudget,
				IncludeThoughts: true,
			},
		},
	}

	events, err := h.llm.StreamGenerate(ctx, h.cfg.SearchModel, genReq)
	if err != nil {
		log.LogError(ctx, err, "upstream stream failed before start")
		apierrors.AbortWithInternal(c, "Answer service unavailable")
		return
	}

	mediaResult := <-mediaCh

	streamHeaders(c)
	c.Status(http.StatusOK)
	streamErr := StreamResponse(wire.NewEncoder(c.Writer), mediaResult, events, nil)
	if streamErr != nil {
		log.Error("stream ended with error", slog.String("error", streamErr.Error()))
	}
	metrics.ObserveStream("search", start, streamErr)
}

// Academic handles POST /academic: subject tutoring with optional
// inline images and per-mode model configuration.
func (h *Handler) Academic(c *gin.Context) {
	var req academicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "invalid request body", nil)
		return
	}

	images, err := collectImages(req.Image, req.Images)
	if err != nil {
		apierrors.AbortWithBadRequest(c, err.Error(), nil)
		return
	}
	if req.Query == "" && len(images) == 0 {
		apierrors.AbortWithBadRequest(c, "query or image is required", nil)
		return
	}

	resolvedMode, agentCfg := h.registry.Lookup(req.Mode)

	// The general assistant draws on the agent budget; subject tutors
	// each have their own academic sub-budget.
	usageMode, subMode := "academic", resolvedMode
	if resolvedMode == agents.ModeStandard {
		usageMode, subMode = "agent", ""
	}

	userID := callerID(c)
	ctx := requestContext(c, userID, resolvedMode)
	log := h.logger.WithContext(ctx)

	if !h.admit(c, ctx, userID, usageMode, subMode) {
		return
	}

	start := time.Now()

	query := req.Query
	if query == "" {
		query = "Solve the problem in the attached image step by step."
	}

	genReq := &genai.Request{
		Contents:          historyContents(toTurns(req.History), query, images),
		SystemInstruction: genai.SystemInstruction(agentCfg.SystemInstruction),
		GenerationConfig: &genai.GenerationConfig{
			Temperature: agentCfg.Temperature,
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget:  h.cfg.ThinkingBudget,
				IncludeThoughts: true,
			},
		},
	}
	if agentCfg.GroundingEnabled {
		genReq.Tools = []genai.Tool{{GoogleSearch: &struct{}{}}}
	}

	events, err := h.llm.StreamGenerate(ctx, agentCfg.Model, genReq)
	if err != nil {
		log.LogError(ctx, err, "upstream stream failed before start",
			slog.String("agent_mode", resolvedMode))
		apierrors.AbortWithInternal(c, "Answer service unavailable")
		return
	}

	var sanitize Sanitizer
	if agentCfg.PlainTextMath {
		sanitize = StripTeXDelims
	}

	streamHeaders(c)
	c.Status(http.StatusOK)
	streamErr := StreamResponse(wire.NewEncoder(c.Writer), wire.MediaResult{}, events, sanitize)
	if streamErr != nil {
		log.Error("stream ended with error", slog.String("error", streamErr.Error()))
	}
	metrics.ObserveStream(usageMode, start, streamErr)
}

// UsageStatus reports the caller's remaining quota for a mode without
// consuming any.
func (h *Handler) UsageStatus(c *gin.Context) {
	mode := c.DefaultQuery("mode", "search")
	subMode := c.Query("sub_mode")

	userID := callerID(c)
	ctx := requestContext(c, userID, mode)

	decision, err := h.usage.CheckLimit(ctx, userID, mode, subMode)
	if err != nil {
		h.logger.LogError(ctx, err, "usage status failed")
		apierrors.AbortWithInternal(c, "Usage tracking unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mode":      mode,
		"limit":     decision.Limit,
		"used":      decision.Used,
		"remaining": decision.Remaining,
		"resets_at": decision.ResetsAt,
	})
}

// historyContents folds prior turns and the current query into the
// request content list.
func historyContents(history []media.Turn, query string, images []genai.InlineData) []genai.Content {
	contents := make([]genai.Content, 0, len(history)+1)
	for _, turn := range history {
		if turn.Role == "user" {
			contents = append(contents, genai.UserTurn(turn.Content, nil))
		} else {
			contents = append(contents, genai.ModelTurn(turn.Content))
		}
	}
	return append(contents, genai.UserTurn(query, images))
}
