package server

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	productdomain "github.com/chrisfit/storefront/internal/product/domain"
	"github.com/gin-gonic/gin"
)

const newImageFieldName = "new_image_%d"

type toggleRequest struct {
	Value *bool `json:"value"`
}

func (s *Server) ListProducts(c *gin.Context) {
	var query struct {
		Query    string `form:"q"`
		Active   string `form:"active"`
		Featured string `form:"featured"`
		Promo    string `form:"promo"`
		Limit    string `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := productdomain.ListRequest{Query: strings.TrimSpace(query.Query)}
	var err error
	if req.Active, err = parseOptionalBool(query.Active); err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}
	if req.Featured, err = parseOptionalBool(query.Featured); err != nil {
		AbortWithError(c, newValidationError("featured", "invalid_featured", "invalid featured"))
		return
	}
	if req.Promo, err = parseOptionalBool(query.Promo); err != nil {
		AbortWithError(c, newValidationError("promo", "invalid_promo", "invalid promo"))
		return
	}
	if req.Limit, err = parseLimit(query.Limit); err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	resp, err := s.productSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProduct(c *gin.Context) {
	resp, err := s.productSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateProduct(c *gin.Context) {
	req, err := s.bindUpsertForm(c, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateProduct(c *gin.Context) {
	req, err := s.bindUpsertForm(c, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.productSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteProduct(c *gin.Context) {
	confirmed, err := parseFormBool(c.Query("confirm"))
	if err != nil {
		AbortWithError(c, newValidationError("confirm", "invalid_confirm", "invalid confirm"))
		return
	}

	err = s.productSvc.Delete(c.Request.Context(), productdomain.DeleteRequest{
		ID:        strings.TrimSpace(c.Param("id")),
		Confirmed: confirmed,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ToggleFeatured(c *gin.Context) {
	s.toggle(c, s.productSvc.SetFeatured)
}

func (s *Server) TogglePromo(c *gin.Context) {
	s.toggle(c, s.productSvc.SetPromo)
}

func (s *Server) ToggleActive(c *gin.Context) {
	s.toggle(c, s.productSvc.SetActive)
}

func (s *Server) toggle(c *gin.Context, set func(context.Context, string, bool) (*productdomain.Response, error)) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		AbortWithError(c, newValidationError("value", "invalid_value", "value must be true or false"))
		return
	}

	resp, err := set(c.Request.Context(), strings.TrimSpace(c.Param("id")), *req.Value)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// bindUpsertForm reads the multipart product form. Every selected file is
// validated before anything is written.
//
// On update existing_images, when present, is the complete layout of retained
// references and slots missing from it are cleared. Without existing_images the
// stored layout is kept and new_image_N only replaces slot N.
func (s *Server) bindUpsertForm(c *gin.Context, create bool) (productdomain.UpsertRequest, error) {
	form, err := multipartOrURLEncoded(c)
	if err != nil {
		return productdomain.UpsertRequest{}, invalidRequestError()
	}

	req := productdomain.UpsertRequest{
		Code:       strings.TrimSpace(firstValue(form.Value, "code")),
		Name:       strings.TrimSpace(firstValue(form.Value, "name")),
		Price:      strings.TrimSpace(firstValue(form.Value, "price")),
		PromoPrice: strings.TrimSpace(firstValue(form.Value, "promo_price")),
		Sizes:      parseList(form.Value["sizes"]),
		Colors:     parseList(form.Value["colors"]),
	}
	if req.IsPromo, err = parseFormBool(firstValue(form.Value, "is_promo")); err != nil {
		return req, newValidationError("is_promo", "invalid_is_promo", "invalid is_promo")
	}
	if req.IsFeatured, err = parseFormBool(firstValue(form.Value, "is_featured")); err != nil {
		return req, newValidationError("is_featured", "invalid_is_featured", "invalid is_featured")
	}
	if req.IsActive, err = parseOptionalBool(firstValue(form.Value, "is_active")); err != nil {
		return req, newValidationError("is_active", "invalid_is_active", "invalid is_active")
	}
	observation, ok := form.Value["observation"]
	req.Observation = optionalText(firstOf(observation), ok)
	description, ok := form.Value["description"]
	req.Description = optionalText(firstOf(description), ok)

	media, err := s.bindMedia(c, form, create)
	if err != nil {
		return req, err
	}
	req.Media = media
	return req, nil
}

func (s *Server) bindMedia(c *gin.Context, form *multipart.Form, create bool) (*productdomain.MediaInput, error) {
	rawExisting, hasExisting := form.Value["existing_images"]
	existing, err := parseExistingImages(firstOf(rawExisting))
	if err != nil {
		return nil, newValidationError("existing_images", "invalid_existing_images", "existing_images must be a JSON array")
	}
	if len(existing) > mediadomain.MaxSlots {
		return nil, fmt.Errorf("%w: existing_images holds %d entries, at most %d are allowed",
			mediadomain.ErrInvalidMediaCount, len(existing), mediadomain.MaxSlots)
	}

	pending := make([]*mediadomain.PendingFile, mediadomain.MaxSlots)
	hasFiles := false
	for i := 0; i < mediadomain.MaxSlots; i++ {
		headers := form.File[fmt.Sprintf(newImageFieldName, i+1)]
		if len(headers) == 0 {
			continue
		}
		file := pendingFromHeader(headers[0])
		if _, err := s.validator.Check(c.Request.Context(), file); err != nil {
			return nil, err
		}
		pending[i] = file
		hasFiles = true
	}

	rawFeatured := strings.TrimSpace(firstValue(form.Value, "featured_slot"))
	if !create && !hasExisting && !hasFiles && rawFeatured == "" {
		return nil, nil
	}

	featured := 0
	if raw := rawFeatured; raw != "" {
		featured, err = strconv.Atoi(raw)
		if err != nil || featured < 0 || featured >= mediadomain.MaxSlots {
			return nil, newValidationError("featured_slot", "invalid_featured_slot", "featured_slot must be between 0 and 4")
		}
	}

	return &productdomain.MediaInput{
		Existing:     existing,
		Pending:      pending,
		FeaturedSlot: featured,
		KeepStored:   !create && !hasExisting,
	}, nil
}

func multipartOrURLEncoded(c *gin.Context) (*multipart.Form, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return c.MultipartForm()
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	return &multipart.Form{Value: c.Request.PostForm, File: map[string][]*multipart.FileHeader{}}, nil
}

func pendingFromHeader(header *multipart.FileHeader) *mediadomain.PendingFile {
	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
			contentType = byExt
		} else if mediadomain.IsVideoReference(header.Filename) {
			contentType = mediadomain.VideoMimeType(header.Filename)
		}
	}
	return &mediadomain.PendingFile{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}

func firstValue(values map[string][]string, key string) string {
	return firstOf(values[key])
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
