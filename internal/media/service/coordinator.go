package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chrisfit/storefront/internal/clock"
	"github.com/chrisfit/storefront/internal/media/domain"
	"github.com/chrisfit/storefront/internal/observability/metrics"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// Coordinator uploads pending files one at a time, in order.
type Coordinator struct {
	log     *zap.Logger
	store   domain.Storage
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewCoordinator(log *zap.Logger, store domain.Storage, c clock.Clock, m *metrics.Metrics) *Coordinator {
	if c == nil {
		c = clock.New()
	}
	return &Coordinator{
		log:     log.Named("media.coordinator"),
		store:   store,
		clock:   c,
		metrics: m,
	}
}

// Upload stops at the first failure. Objects written earlier in the same call
// stay in storage.
func (c *Coordinator) Upload(ctx context.Context, productID int64, uploads []domain.PendingUpload) ([]domain.UploadResult, error) {
	if c.store == nil {
		return nil, domain.ErrStorageNotConfigured
	}

	results := make([]domain.UploadResult, 0, len(uploads))
	for _, item := range uploads {
		if item.File == nil {
			continue
		}
		kind := domain.TypeImage
		if domain.IsVideoUpload(item.File.ContentType) {
			kind = domain.TypeVideo
		}

		objectPath := c.objectPath(productID, item.Position, item.File.Name)
		if err := c.put(ctx, objectPath, item.File); err != nil {
			c.metrics.RecordMediaUpload(ctx, kind, "error")
			c.log.Warn("media upload failed",
				zap.Int64("product_id", productID),
				zap.Int("slot", item.Position),
				zap.String("path", objectPath),
				zap.Error(err),
			)
			return results, &domain.UploadError{Name: item.File.Name, Position: item.Position, Err: err}
		}
		c.metrics.RecordMediaUpload(ctx, kind, "success")

		results = append(results, domain.UploadResult{
			URL:      c.store.PublicURL(objectPath),
			Position: item.Position,
		})
	}
	return results, nil
}

func (c *Coordinator) put(ctx context.Context, objectPath string, file *domain.PendingFile) error {
	if file.Open == nil {
		return fmt.Errorf("file %q has no content", file.Name)
	}
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return c.store.Upload(ctx, objectPath, rc, file.Size, file.ContentType, true)
}

// objectPath is <productID>/<unixMillis>-<slot>-<slug><ext>. Slots are unique
// within one batch, so identically named files never share an object.
func (c *Coordinator) objectPath(productID int64, position int, name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := slug.Make(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%d/%d-%d-%s%s", productID, c.clock.Now().UnixMilli(), position, base, ext)
}
