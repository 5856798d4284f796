package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/chrisfit/storefront/internal/clock"
	"github.com/chrisfit/storefront/internal/media/domain"
	"github.com/chrisfit/storefront/internal/observability/metrics"
	"github.com/chrisfit/storefront/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Coordinator *Coordinator
	Clock       clock.Clock
	Metrics     *metrics.Metrics `optional:"true"`
}

type Reconciler struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	coordinator *Coordinator
	clock       clock.Clock
	metrics     *metrics.Metrics
}

func NewReconciler(p Params) *Reconciler {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Reconciler{
		db:          p.DB,
		log:         p.Log.Named("media.reconciler"),
		genID:       p.GenID,
		repo:        p.Repo,
		coordinator: p.Coordinator,
		clock:       c,
		metrics:     p.Metrics,
	}
}

// Reconcile replaces the stored media of a product with the requested layout.
// Uploads run first; rows are only touched once every upload succeeded.
func (r *Reconciler) Reconcile(ctx context.Context, req domain.ReconcileRequest) (domain.SlotArray[string], error) {
	ctx, span := otel.Tracer("storefront/media").Start(ctx, "media.reconcile")
	defer span.End()

	var empty domain.SlotArray[string]
	if req.ProductID == 0 {
		return empty, domain.ErrInvalidProductID
	}

	refs := domain.NormalizeRefs(req.Existing)
	pending, err := partitionPending(req.Pending)
	if err != nil {
		return empty, err
	}

	// the pending file moves with its reference so it lands in its final slot
	if f := req.FeaturedSlot; f > 0 && f < domain.MaxSlots {
		pos := f + 1
		if refs.IsOccupied(pos) || pending.IsOccupied(pos) {
			refs.Swap(1, pos)
			pending.Swap(1, pos)
		}
	}

	span.SetAttributes(tracing.SafeAttributes(
		attribute.Int("media.count", refs.Occupied()),
		attribute.String("stage", "upload"),
	)...)

	if entries := pending.CompactedEntries(); len(entries) > 0 {
		uploads := make([]domain.PendingUpload, 0, len(entries))
		for _, entry := range entries {
			uploads = append(uploads, domain.PendingUpload{File: entry.Value, Position: entry.Position})
		}
		results, err := r.coordinator.Upload(ctx, req.ProductID, uploads)
		if err != nil {
			r.fail(ctx, span, "upload", err)
			return empty, err
		}
		for _, res := range results {
			refs.Set(res.Position, res.URL)
		}
	}

	if err := r.replaceRows(ctx, req.ProductID, refs); err != nil {
		r.fail(ctx, span, "persist", err)
		return empty, err
	}

	r.metrics.RecordReconciliation(ctx, "success")
	r.log.Debug("media reconciled",
		zap.Int64("product_id", req.ProductID),
		zap.Int("slots", refs.Occupied()),
	)
	return refs, nil
}

func (r *Reconciler) fail(ctx context.Context, span trace.Span, stage string, err error) {
	span.RecordError(tracing.SafeError(err))
	span.SetStatus(codes.Error, stage)
	r.metrics.RecordReconciliation(ctx, "error")
}

// replaceRows deletes and re-inserts the rows in one transaction.
func (r *Reconciler) replaceRows(ctx context.Context, productID int64, refs domain.SlotArray[string]) error {
	now := r.clock.Now()
	rows := make([]domain.ProductImage, 0, domain.MaxSlots)
	for _, entry := range refs.CompactedEntries() {
		rows = append(rows, domain.ProductImage{
			ID:        r.genID.Generate().Int64(),
			ProductID: productID,
			URL:       entry.Value,
			Position:  entry.Position,
			CreatedAt: now,
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.repo.DeleteByProduct(ctx, tx, productID); err != nil {
			return &domain.ReconcileError{Op: "delete", Err: err}
		}
		if err := r.repo.InsertMany(ctx, tx, rows); err != nil {
			return &domain.ReconcileError{Op: "insert", Err: err}
		}
		return nil
	})
}

// Slots loads the stored layout of one product.
func (r *Reconciler) Slots(ctx context.Context, productID int64) (domain.SlotArray[string], error) {
	rows, err := r.repo.ListByProduct(ctx, r.db, productID)
	if err != nil {
		return domain.SlotArray[string]{}, err
	}
	return domain.SlotsFromImages(rows), nil
}

func partitionPending(files []*domain.PendingFile) (domain.SlotArray[*domain.PendingFile], error) {
	var pending domain.SlotArray[*domain.PendingFile]
	for i, file := range files {
		if file == nil {
			continue
		}
		if i >= domain.MaxSlots {
			return pending, domain.ErrInvalidMediaCount
		}
		pending.Set(i+1, file)
	}
	return pending, nil
}

var _ domain.Reconciler = (*Reconciler)(nil)
