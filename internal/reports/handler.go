package reports

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "github.com/neuralscholar/search-proxy/internal/errors"
	"github.com/neuralscholar/search-proxy/internal/logger"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log.WithComponent("reports-handler"),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/report", h.CreateReport)
}

func (h *Handler) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		apierrors.AbortWithBadRequest(c, "content is required", nil)
		return
	}

	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		userID = c.ClientIP()
	}

	resp, err := h.service.CreateReport(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, ErrMaxReportsReached) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierrors.NewAPIError(err.Error(), nil))
			return
		}
		h.logger.LogError(c.Request.Context(), err, "failed to create report")
		apierrors.AbortWithInternal(c, "failed to submit report")
		return
	}

	c.JSON(http.StatusCreated, resp)
}
