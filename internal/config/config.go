package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// GenAI provider (LLM with web-search grounding)
	GenAIAPIKey    string
	GenAIBaseURL   string
	SearchModel    string // model used for /search answers
	AcademicModel  string // default model for tutoring modes
	UtilityModel   string // small model for query rewriting and curation
	GenAITimeout   time.Duration
	ThinkingBudget int

	// Web search provider (Google Custom Search JSON API)
	SearchAPIKey      string
	SearchCXID        string // general-purpose engine ID
	YouTubeAPIKey     string
	SerpAPIKey        string // shopping results
	MediaFetchTimeout time.Duration

	// Usage gate
	UsageStorePath     string // SQLite file; empty = in-memory store
	UsageRetentionDays int
	SearchDailyLimit   int
	AgentDailyLimit    int
	AcademicDailyLimit int // per sub-mode

	// Agent mode overrides
	AgentsConfigFile string

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string
}

var AppConfig *Config

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// GenAI
		GenAIAPIKey:    getEnvOrDefault("GENAI_API_KEY", ""),
		GenAIBaseURL:   getEnvOrDefault("GENAI_BASE_URL", "https://generativelanguage.googleapis.com"),
		SearchModel:    getEnvOrDefault("SEARCH_MODEL", "gemini-3-flash-preview"),
		AcademicModel:  getEnvOrDefault("ACADEMIC_MODEL", "gemini-3-pro-preview"),
		UtilityModel:   getEnvOrDefault("UTILITY_MODEL", "gemini-3-flash-preview"),
		GenAITimeout:   getEnvAsDuration("GENAI_TIMEOUT", 5*time.Minute),
		ThinkingBudget: getEnvAsInt("GENAI_THINKING_BUDGET", -1),

		// Web search
		SearchAPIKey:      getEnvOrDefault("SEARCH_API_KEY", ""),
		SearchCXID:        getEnvOrDefault("SEARCH_CX_ID", ""),
		YouTubeAPIKey:     getEnvOrDefault("YOUTUBE_API_KEY", ""),
		SerpAPIKey:        getEnvOrDefault("SERPAPI_API_KEY", ""),
		MediaFetchTimeout: getEnvAsDuration("MEDIA_FETCH_TIMEOUT", 15*time.Second),

		// Usage gate
		UsageStorePath:     getEnvOrDefault("USAGE_STORE_PATH", "usage.db"),
		UsageRetentionDays: getEnvAsInt("USAGE_RETENTION_DAYS", 7),
		SearchDailyLimit:   getEnvAsInt("SEARCH_DAILY_LIMIT", 10000),
		AgentDailyLimit:    getEnvAsInt("AGENT_DAILY_LIMIT", 10000),
		AcademicDailyLimit: getEnvAsInt("ACADEMIC_DAILY_LIMIT", 10000),

		// Agents
		AgentsConfigFile: getEnvOrDefault("AGENTS_CONFIG_FILE", ""),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	if AppConfig.GenAIAPIKey == "" {
		log.Println("Warning: GenAI API key is missing. Please set GENAI_API_KEY environment variable.")
	}

	if AppConfig.SearchAPIKey == "" {
		log.Println("Warning: search API key is missing. Please set SEARCH_API_KEY environment variable.")
	}

	if AppConfig.YouTubeAPIKey == "" {
		log.Println("Warning: YouTube API key is missing. Video search will use the web-search fallback.")
	}

	if AppConfig.SerpAPIKey == "" {
		log.Println("Warning: SerpAPI key is missing. Shopping results disabled.")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
