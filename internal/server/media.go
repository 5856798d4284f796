package server

import (
	"net/http"

	"github.com/chrisfit/storefront/internal/authorization"
	"github.com/gin-gonic/gin"
)

// ValidateMedia classifies one selected file and checks video duration, so
// the form can reject a slot before the product is saved.
func (s *Server) ValidateMedia(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := s.authsvc.CurrentUser(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authzSvc.Authorize(ctx, "user:"+user.ID.String(), authorization.ObjectMedia, authorization.ActionMediaValidate); err != nil {
		AbortWithError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}

	selection, err := s.validator.Check(ctx, pendingFromHeader(header))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": selection})
}
