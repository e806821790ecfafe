package errors

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitError represents a standardized 429 Too Many Requests response.
// Returned before any streaming starts; once a stream is committed the
// status code can no longer change.
type RateLimitError struct {
	Error     string    `json:"error"`
	Mode      string    `json:"mode"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}

// AbortWithRateLimit sends a 429 response with the RateLimitError and aborts the request.
func AbortWithRateLimit(c *gin.Context, err *RateLimitError) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, err)
}

// DailyLimitExceeded creates a RateLimitError for daily quota exhaustion.
// Counters reset at 00:00 UTC.
func DailyLimitExceeded(mode string, limit int, resetsAt time.Time) *RateLimitError {
	return &RateLimitError{
		Error:     fmt.Sprintf("Daily limit of %d reached for %s mode.", limit, mode),
		Mode:      mode,
		Limit:     limit,
		Remaining: 0,
		ResetsAt:  resetsAt,
	}
}
