package server

import (
	authdomain "github.com/chrisfit/storefront/internal/auth/domain"
	obscontext "github.com/chrisfit/storefront/internal/observability/context"
	"github.com/gin-gonic/gin"
)

const contextUserIDKey = "user_id"

// AuthRequired resolves the session cookie and binds the user to the request
// context for the services below.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := authdomain.WithUserID(c.Request.Context(), session.UserID)
		ctx = obscontext.WithActor(ctx, "user", session.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, session.UserID.String())
		c.Next()
	}
}
