package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/chrisfit/storefront/internal/auth/domain"
	"github.com/chrisfit/storefront/internal/authorization"
	"github.com/chrisfit/storefront/internal/clock"
	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	"github.com/chrisfit/storefront/internal/observability/metrics"
	"github.com/chrisfit/storefront/internal/product/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	MediaRepo mediadomain.Repository
	Media     mediadomain.Reconciler
	Auth      authdomain.Service
	Authz     authorization.Service   `optional:"true"`
	Catalog   domain.CatalogRefresher `optional:"true"`
	Clock     clock.Clock             `optional:"true"`
	Metrics   *metrics.Metrics        `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	mediaRepo mediadomain.Repository
	media     mediadomain.Reconciler
	auth      authdomain.Service
	authz     authorization.Service
	catalog   domain.CatalogRefresher
	clock     clock.Clock
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("product.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		mediaRepo: p.MediaRepo,
		media:     p.Media,
		auth:      p.Auth,
		authz:     p.Authz,
		catalog:   p.Catalog,
		clock:     c,
		metrics:   p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.UpsertRequest) (*domain.Response, error) {
	m := &mutation{op: "create", action: authorization.ActionProductCreate, req: req}
	err := s.runStages(ctx, m,
		stage{stageAuthorize, s.authorizeStage},
		stage{stageValidate, s.validateStage},
		stage{stagePersist, s.insertStage},
		stage{stageReconcile, s.reconcileStage},
		stage{stageRefresh, s.refreshStage},
	)
	if err != nil {
		return nil, err
	}
	return s.response(m), nil
}

func (s *Service) Update(ctx context.Context, req domain.UpsertRequest) (*domain.Response, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, nil
	}
	m := &mutation{op: "update", action: authorization.ActionProductUpdate, req: req}
	err := s.runStages(ctx, m,
		stage{stageAuthorize, s.authorizeStage},
		stage{stageValidate, s.loadStage},
		stage{stageValidate, s.validateStage},
		stage{stagePersist, s.updateStage},
		stage{stageReconcile, s.reconcileStage},
		stage{stageRefresh, s.refreshStage},
	)
	if err != nil {
		return nil, err
	}
	return s.response(m), nil
}

func (s *Service) Delete(ctx context.Context, req domain.DeleteRequest) error {
	m := &mutation{op: "delete", action: authorization.ActionProductDelete, del: req}
	return s.runStages(ctx, m,
		stage{stageAuthorize, s.authorizeStage},
		stage{stageValidate, func(ctx context.Context, m *mutation) error {
			if !m.del.Confirmed {
				return domain.ErrConfirmationRequired
			}
			id, err := parseID(m.del.ID)
			if err != nil {
				return err
			}
			m.id = id
			return nil
		}},
		stage{stagePersist, s.deleteStage},
		stage{stageRefresh, s.refreshStage},
	)
}

func (s *Service) SetFeatured(ctx context.Context, id string, value bool) (*domain.Response, error) {
	return s.toggle(ctx, id, func(p *domain.Product) error {
		p.IsFeatured = value
		return nil
	}, false)
}

func (s *Service) SetPromo(ctx context.Context, id string, value bool) (*domain.Response, error) {
	return s.toggle(ctx, id, func(p *domain.Product) error {
		if value && (!p.PromoPrice.Valid || !p.PromoPrice.Decimal.IsPositive()) {
			return domain.ErrPromoPriceRequired
		}
		p.IsPromo = value
		return nil
	}, false)
}

func (s *Service) SetActive(ctx context.Context, id string, value bool) (*domain.Response, error) {
	return s.toggle(ctx, id, func(p *domain.Product) error {
		p.IsActive = value
		return nil
	}, value)
}

// toggle changes one flag and re-submits the full record through Update with
// the stored media kept. Inactive products only accept reactivation.
func (s *Service) toggle(ctx context.Context, id string, apply func(p *domain.Product) error, reactivating bool) (*domain.Response, error) {
	if _, err := s.currentActor(ctx, authorization.ActionProductUpdate); err != nil {
		return nil, err
	}
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if !item.IsActive && !reactivating {
		return nil, domain.ErrProductInactive
	}
	if err := apply(item); err != nil {
		return nil, err
	}
	return s.Update(ctx, requestFromProduct(item))
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	if _, err := s.currentActor(ctx, authorization.ActionProductView); err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, s.db, req)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	images, err := s.mediaRepo.ListByProducts(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, domain.NewResponse(&items[i], images[items[i].ID]))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	if _, err := s.currentActor(ctx, authorization.ActionProductView); err != nil {
		return nil, err
	}
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	images, err := s.mediaRepo.ListByProduct(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	resp := domain.NewResponse(item, images)
	return &resp, nil
}

func (s *Service) currentActor(ctx context.Context, action string) (*authdomain.User, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if s.authz != nil {
		if err := s.authz.Authorize(ctx, "user:"+user.ID.String(), authorization.ObjectProduct, action); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *Service) authorizeStage(ctx context.Context, m *mutation) error {
	user, err := s.currentActor(ctx, m.action)
	if err != nil {
		return err
	}
	m.actor = user
	return nil
}

func (s *Service) loadStage(ctx context.Context, m *mutation) error {
	id, err := parseID(m.req.ID)
	if err != nil {
		return err
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}
	m.id = id
	m.existing = item
	return nil
}

func (s *Service) validateStage(ctx context.Context, m *mutation) error {
	req := m.req

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ErrInvalidName
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		return domain.ErrInvalidPrice
	}

	var promo decimal.NullDecimal
	if strings.TrimSpace(req.PromoPrice) != "" {
		value, err := parseAmount(req.PromoPrice)
		if err != nil {
			return domain.ErrInvalidPromoPrice
		}
		promo = decimal.NewNullDecimal(value)
	}
	if req.IsPromo && (!promo.Valid || !promo.Decimal.IsPositive()) {
		return domain.ErrPromoPriceRequired
	}

	sizes, err := normalizeSizes(req.Sizes)
	if err != nil {
		return err
	}

	active := true
	if m.existing != nil {
		active = m.existing.IsActive
	}
	if req.IsActive != nil {
		active = *req.IsActive
	}

	if req.Media != nil {
		for i, file := range req.Media.Pending {
			if file != nil && i >= mediadomain.MaxSlots {
				return mediadomain.ErrInvalidMediaCount
			}
		}
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:          m.id,
		Code:        code,
		Name:        name,
		Price:       price,
		PromoPrice:  promo,
		IsPromo:     req.IsPromo,
		IsFeatured:  req.IsFeatured,
		IsActive:    active,
		Sizes:       datatypes.JSONSlice[string](sizes),
		Colors:      datatypes.JSONSlice[string](normalizeColors(req.Colors)),
		Observation: trimmedOrNil(req.Observation),
		Description: trimmedOrNil(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.existing != nil {
		p.CreatedAt = m.existing.CreatedAt
	}
	m.product = p
	return nil
}

func (s *Service) insertStage(ctx context.Context, m *mutation) error {
	m.product.ID = s.genID.Generate().Int64()
	m.id = m.product.ID
	return s.repo.Insert(ctx, s.db, m.product)
}

func (s *Service) updateStage(ctx context.Context, m *mutation) error {
	return s.repo.Update(ctx, s.db, m.product)
}

func (s *Service) reconcileStage(ctx context.Context, m *mutation) error {
	in := m.req.Media
	if in == nil {
		in = &domain.MediaInput{KeepStored: true}
	}

	existing := in.Existing
	if in.KeepStored && m.existing != nil {
		stored, err := s.storedRefs(ctx, m.id)
		if err != nil {
			return err
		}
		existing = stored
	}

	slots, err := s.media.Reconcile(ctx, mediadomain.ReconcileRequest{
		ProductID:    m.id,
		Existing:     existing,
		Pending:      in.Pending,
		FeaturedSlot: in.FeaturedSlot,
	})
	if err != nil {
		return err
	}
	m.slots = slots
	return nil
}

// storedRefs returns the stored layout with "" for holes.
func (s *Service) storedRefs(ctx context.Context, productID int64) ([]string, error) {
	rows, err := s.mediaRepo.ListByProduct(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	stored := mediadomain.SlotsFromImages(rows)
	refs := make([]string, 0, mediadomain.MaxSlots)
	for _, ref := range stored.Pointers() {
		if ref == nil {
			refs = append(refs, "")
			continue
		}
		refs = append(refs, *ref)
	}
	return refs, nil
}

func (s *Service) deleteStage(ctx context.Context, m *mutation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.mediaRepo.DeleteByProduct(ctx, tx, m.id); err != nil {
			return err
		}
		deleted, err := s.repo.Delete(ctx, tx, m.id)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *Service) refreshStage(ctx context.Context, m *mutation) error {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Refresh(ctx)
}

func (s *Service) response(m *mutation) *domain.Response {
	rows := make([]mediadomain.ProductImage, 0, mediadomain.MaxSlots)
	for _, entry := range m.slots.CompactedEntries() {
		rows = append(rows, mediadomain.ProductImage{ProductID: m.id, URL: entry.Value, Position: entry.Position})
	}
	resp := domain.NewResponse(m.product, rows)
	return &resp
}

func requestFromProduct(p *domain.Product) domain.UpsertRequest {
	active := p.IsActive
	req := domain.UpsertRequest{
		ID:          strconv.FormatInt(p.ID, 10),
		Code:        p.Code,
		Name:        p.Name,
		Price:       p.Price.String(),
		IsPromo:     p.IsPromo,
		IsFeatured:  p.IsFeatured,
		IsActive:    &active,
		Sizes:       append([]string{}, p.Sizes...),
		Colors:      append([]string{}, p.Colors...),
		Observation: p.Observation,
		Description: p.Description,
	}
	if p.PromoPrice.Valid {
		req.PromoPrice = p.PromoPrice.Decimal.String()
	}
	return req
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// parseAmount accepts "99.90" and "99,90".
func parseAmount(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, errors.New("empty amount")
	}
	if !strings.Contains(value, ".") && strings.Count(value, ",") == 1 {
		value = strings.Replace(value, ",", ".", 1)
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsNegative() {
		return decimal.Zero, errors.New("negative amount")
	}
	return amount.Round(2), nil
}

func normalizeSizes(raw []string) ([]string, error) {
	sizes := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, value := range raw {
		size := strings.TrimSpace(value)
		if size == "" {
			continue
		}
		key := strings.ToLower(size)
		if _, ok := seen[key]; ok {
			return nil, domain.ErrInvalidSizes
		}
		seen[key] = struct{}{}
		sizes = append(sizes, size)
	}
	if len(sizes) == 0 {
		return nil, domain.ErrInvalidSizes
	}
	return sizes, nil
}

func normalizeColors(raw []string) []string {
	colors := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, value := range raw {
		color := strings.TrimSpace(value)
		if color == "" {
			continue
		}
		key := strings.ToLower(color)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		colors = append(colors, color)
	}
	return colors
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
