package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beaconly/beacon/internal/oauth"
	servicedomain "github.com/beaconly/beacon/internal/service/domain"
	"github.com/beaconly/beacon/internal/usercontext"
)

// OAuthAuthorize starts the authorization-code flow. The signed state
// value binds the callback to the user who initiated the connect.
func (s *Server) OAuthAuthorize(c *gin.Context) {
	providerID := c.Param("provider")
	if !s.oauthSvc.Supports(providerID) {
		AbortWithError(c, oauth.ErrUnsupportedProvider)
		return
	}

	user, _ := usercontext.UserFromContext(c.Request.Context())
	state, err := s.stateSigner.Generate(user.ID, user.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	url, err := s.oauthSvc.AuthorizeURL(providerID, state)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// OAuthCallback finishes the flow: verify state, exchange the code and
// connect the service under the initiating user.
func (s *Server) OAuthCallback(c *gin.Context) {
	providerID := c.Param("provider")
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	userID, email, err := s.stateSigner.Verify(state)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tokens, err := s.oauthSvc.Exchange(c.Request.Context(), providerID, code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := usercontext.WithUser(c.Request.Context(), usercontext.User{ID: userID, Email: email})
	connected, err := s.serviceSvc.Connect(ctx, servicedomain.ConnectRequest{
		ProviderID:  providerID,
		Credentials: tokens.MergeInto(nil),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Redirect(http.StatusFound, s.cfg.AppURL+"/dashboard/"+connected.ID.String()+"?connected="+providerID)
}
