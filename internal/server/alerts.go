package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	alertdomain "github.com/beaconly/beacon/internal/alert/domain"
	"github.com/beaconly/beacon/internal/provider"
)

type createAlertRequest struct {
	ServiceID        string   `json:"service_id" binding:"required"`
	CollectorID      string   `json:"collector_id" binding:"required"`
	Condition        string   `json:"condition" binding:"required"`
	ThresholdNumeric *float64 `json:"threshold_numeric"`
	ThresholdText    *string  `json:"threshold_text"`
	Message          string   `json:"message"`
}

type updateAlertRequest struct {
	Condition        *string  `json:"condition"`
	ThresholdNumeric *float64 `json:"threshold_numeric"`
	ThresholdText    *string  `json:"threshold_text"`
	Message          *string  `json:"message"`
	Enabled          *bool    `json:"enabled"`
}

func (s *Server) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	config, err := s.alertSvc.Create(c.Request.Context(), alertdomain.CreateAlertRequest{
		ServiceID:        req.ServiceID,
		CollectorID:      req.CollectorID,
		Condition:        provider.Condition(req.Condition),
		ThresholdNumeric: req.ThresholdNumeric,
		ThresholdText:    req.ThresholdText,
		Message:          req.Message,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, config)
}

func (s *Server) UpdateAlert(c *gin.Context) {
	var req updateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	update := alertdomain.UpdateAlertRequest{
		ID:               c.Param("id"),
		ThresholdNumeric: req.ThresholdNumeric,
		ThresholdText:    req.ThresholdText,
		Message:          req.Message,
		Enabled:          req.Enabled,
	}
	if req.Condition != nil {
		condition := provider.Condition(*req.Condition)
		update.Condition = &condition
	}

	config, err := s.alertSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

func (s *Server) DeleteAlert(c *gin.Context) {
	if err := s.alertSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListAlerts(c *gin.Context) {
	configs, err := s.alertSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": configs})
}

func (s *Server) ListServiceAlerts(c *gin.Context) {
	configs, err := s.alertSvc.ListForService(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": configs})
}

func (s *Server) ListAlertEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := s.alertSvc.ListEvents(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) ListServiceAlertEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := s.alertSvc.ListEventsForService(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
