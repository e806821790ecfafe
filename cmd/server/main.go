package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/neuralscholar/search-proxy/internal/agents"
	"github.com/neuralscholar/search-proxy/internal/config"
	"github.com/neuralscholar/search-proxy/internal/genai"
	"github.com/neuralscholar/search-proxy/internal/logger"
	"github.com/neuralscholar/search-proxy/internal/media"
	"github.com/neuralscholar/search-proxy/internal/metrics"
	"github.com/neuralscholar/search-proxy/internal/reports"
	"github.com/neuralscholar/search-proxy/internal/search"
	"github.com/neuralscholar/search-proxy/internal/streaming"
	"github.com/neuralscholar/search-proxy/internal/usage"
)

const searchPrompt = "You are a web search assistant. Answer the question using current web " +
	"information, cite your sources, and finish with a short \"Related questions\" list."

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))
	log.Info("starting search proxy", slog.String("instance_id", logger.GetInstanceID()))

	gin.SetMode(cfg.GinMode)

	// Usage store: SQLite when a path is configured, memory otherwise.
	var store usage.Store
	if cfg.UsageStorePath != "" {
		sqlStore, err := usage.NewSQLiteStore(cfg.UsageStorePath)
		if err != nil {
			log.Error("failed to open usage store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = sqlStore
		log.Info("usage store opened", slog.String("path", cfg.UsageStorePath))
	} else {
		store = usage.NewMemoryStore()
		log.Warn("no usage store path configured, counters are in-memory only")
	}
	defer store.Close()

	usageSvc := usage.NewService(store, usage.Limits{
		"search":   cfg.SearchDailyLimit,
		"agent":    cfg.AgentDailyLimit,
		"academic": cfg.AcademicDailyLimit,
	}, log)

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if err := usageSvc.SchedulePurge(scheduler, cfg.UsageRetentionDays); err != nil {
		log.Error("failed to schedule usage purge", slog.String("error", err.Error()))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Upstream clients.
	llm := genai.NewClient(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.GenAITimeout, log)
	cse := search.NewCSEClient(cfg.SearchAPIKey, cfg.SearchCXID, cfg.MediaFetchTimeout, log)
	youtube := search.NewYouTubeClient(cfg.YouTubeAPIKey, cfg.MediaFetchTimeout, log)
	shopping := search.NewShoppingClient(cfg.SerpAPIKey, cfg.MediaFetchTimeout, log)
	pipeline := media.NewPipeline(llm, cse, youtube, shopping, cfg.UtilityModel, log)

	registry := agents.NewRegistry(cfg.AcademicModel)
	if cfg.AgentsConfigFile != "" {
		if err := registry.LoadOverrides(cfg.AgentsConfigFile); err != nil {
			log.Error("failed to load agent overrides", slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("agent overrides loaded", slog.String("file", cfg.AgentsConfigFile))
	}

	// Content reports share the usage database file; each package owns
	// its own table.
	var reportStore reports.Store
	if cfg.UsageStorePath != "" {
		rs, err := reports.NewSQLiteStore(cfg.UsageStorePath)
		if err != nil {
			log.Error("failed to open report store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		reportStore = rs
	} else {
		reportStore = reports.NewMemoryStore()
	}
	defer reportStore.Close()

	reportHandler := reports.NewHandler(
		reports.NewService(reportStore, llm, cfg.UtilityModel, log), log)

	handler := streaming.NewHandler(llm, pipeline, usageSvc, registry, streaming.Config{
		SearchModel:       cfg.SearchModel,
		SearchPrompt:      searchPrompt,
		ThinkingBudget:    cfg.ThinkingBudget,
		MediaFetchTimeout: cfg.MediaFetchTimeout,
	}, log)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	handler.RegisterRoutes(router)
	reportHandler.RegisterRoutes(router)

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: corsWrapper.Handler(router),
	}

	go func() {
		log.Info("listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("server exited")
}
