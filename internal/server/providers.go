package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beaconly/beacon/internal/provider"
)

// providerView is the public catalog shape; it never exposes fetch
// internals.
type providerView struct {
	ID               string                     `json:"id"`
	Name             string                     `json:"name"`
	Category         provider.Category          `json:"category"`
	AuthType         provider.AuthType          `json:"auth_type"`
	CredentialFields []provider.CredentialField `json:"credential_fields"`
	Collectors       []provider.Collector       `json:"collectors"`
	AlertTemplates   []provider.AlertTemplate   `json:"alert_templates"`
}

func toProviderView(a provider.Adapter) providerView {
	return providerView{
		ID:               a.ID,
		Name:             a.Name,
		Category:         a.Category,
		AuthType:         a.AuthType,
		CredentialFields: a.CredentialFields,
		Collectors:       a.Collectors,
		AlertTemplates:   a.AlertTemplates,
	}
}

func (s *Server) ListProviders(c *gin.Context) {
	adapters := s.registry.All()
	views := make([]providerView, 0, len(adapters))
	for _, a := range adapters {
		views = append(views, toProviderView(a))
	}
	c.JSON(http.StatusOK, gin.H{"providers": views})
}

func (s *Server) GetProvider(c *gin.Context) {
	a, ok := s.registry.Get(c.Param("id"))
	if !ok {
		AbortWithError(c, provider.ErrUnknownProvider)
		return
	}
	c.JSON(http.StatusOK, toProviderView(a))
}
