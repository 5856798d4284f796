package server

import (
	"net/http"
	"strings"

	"github.com/chrisfit/storefront/internal/catalog"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListCatalog(c *gin.Context) {
	var query struct {
		Query string `form:"q"`
		Promo string `form:"promo"`
		Limit string `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	promo, err := parseOptionalBool(query.Promo)
	if err != nil {
		AbortWithError(c, newValidationError("promo", "invalid_promo", "invalid promo"))
		return
	}
	limit, err := parseLimit(query.Limit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	items := s.catalog.List(catalog.ListFilter{
		Query: strings.TrimSpace(query.Query),
		Promo: promo,
		Limit: limit,
	})
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetCatalogProduct(c *gin.Context) {
	item, ok := s.catalog.Get(strings.TrimSpace(c.Param("id")))
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListFeatured(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.catalog.Featured()})
}
