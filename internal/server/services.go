package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	servicedomain "github.com/beaconly/beacon/internal/service/domain"
)

type connectServiceRequest struct {
	ProviderID  string            `json:"provider_id" binding:"required"`
	Label       string            `json:"label"`
	Credentials map[string]string `json:"credentials" binding:"required"`
}

type reauthServiceRequest struct {
	Credentials map[string]string `json:"credentials" binding:"required"`
}

type validateCredentialsRequest struct {
	ProviderID  string            `json:"provider_id" binding:"required"`
	Credentials map[string]string `json:"credentials" binding:"required"`
}

func (s *Server) ConnectService(c *gin.Context) {
	var req connectServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	connected, err := s.serviceSvc.Connect(c.Request.Context(), servicedomain.ConnectRequest{
		ProviderID:  req.ProviderID,
		Label:       req.Label,
		Credentials: req.Credentials,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, connected)
}

func (s *Server) ListServices(c *gin.Context) {
	services, err := s.serviceSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (s *Server) GetService(c *gin.Context) {
	connected, err := s.serviceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, connected)
}

func (s *Server) ValidateCredentials(c *gin.Context) {
	var req validateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.serviceSvc.Validate(c.Request.Context(), servicedomain.ValidateRequest{
		ProviderID:  req.ProviderID,
		Credentials: req.Credentials,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ReauthService(c *gin.Context) {
	var req reauthServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	connected, err := s.serviceSvc.Reauth(c.Request.Context(), servicedomain.ReauthRequest{
		ID:          c.Param("id"),
		Credentials: req.Credentials,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, connected)
}

func (s *Server) EnableService(c *gin.Context) {
	s.setEnabled(c, true)
}

func (s *Server) DisableService(c *gin.Context) {
	s.setEnabled(c, false)
}

func (s *Server) setEnabled(c *gin.Context, enabled bool) {
	connected, err := s.serviceSvc.SetEnabled(c.Request.Context(), c.Param("id"), enabled)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, connected)
}

func (s *Server) DisconnectService(c *gin.Context) {
	if err := s.serviceSvc.Disconnect(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncService triggers an immediate poll of an owned service.
func (s *Server) SyncService(c *gin.Context) {
	// Ownership check first; the poller itself is user-agnostic.
	if _, err := s.serviceSvc.Get(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	result := s.poller.PollService(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, result)
}

func (s *Server) ListSnapshots(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	snapshots, err := s.serviceSvc.LatestSnapshots(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}
