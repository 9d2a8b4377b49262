package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/beaconly/beacon/internal/poller"
)

type simulateMetricRequest struct {
	CollectorID string   `json:"collector_id" binding:"required"`
	Value       *float64 `json:"value"`
	ValueText   *string  `json:"value_text"`
}

// PollService is the scheduler's entry point: one poll cycle for one
// service.
func (s *Server) PollService(c *gin.Context) {
	if !s.schedulerAuthorized(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
			Error: errorPayload{Type: "unauthorized", Message: "invalid scheduler token"},
		})
		return
	}

	serviceID := c.Query("serviceId")
	if serviceID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result := s.poller.PollService(c.Request.Context(), serviceID)
	switch result.Outcome {
	case poller.OutcomeInvalid:
		AbortWithError(c, ErrInvalidRequest)
	case poller.OutcomeBadRequest:
		c.JSON(http.StatusBadRequest, result)
	case poller.OutcomeNotFound:
		c.JSON(http.StatusNotFound, result)
	default:
		c.JSON(http.StatusOK, result)
	}
}

// PollAll sweeps every enabled service; used by deployments that drive
// polling with a single external cron instead of per-service schedules.
func (s *Server) PollAll(c *gin.Context) {
	if !s.schedulerAuthorized(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
			Error: errorPayload{Type: "unauthorized", Message: "invalid scheduler token"},
		})
		return
	}

	results := s.poller.PollAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SimulateMetric injects a synthetic reading and reports which alerts it
// would fire, bypassing cooldown.
func (s *Server) SimulateMetric(c *gin.Context) {
	var req simulateMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.Value == nil && req.ValueText == nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.poller.Simulate(c.Request.Context(), c.Param("id"), req.CollectorID, req.Value, req.ValueText)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// schedulerAuthorized gates the cron endpoints with the shared scheduler
// token when one is configured.
func (s *Server) schedulerAuthorized(c *gin.Context) bool {
	token := s.cfg.Scheduler.Token
	if token == "" {
		return true
	}
	auth := c.GetHeader("Authorization")
	return strings.TrimPrefix(auth, "Bearer ") == token
}
