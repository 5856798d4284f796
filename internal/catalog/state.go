// Package catalog holds the public product catalog in memory. Every product
// mutation ends with Refresh, which replaces the whole snapshot.
package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chrisfit/storefront/internal/clock"
	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	productdomain "github.com/chrisfit/storefront/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      productdomain.Repository
	MediaRepo mediadomain.Repository
	Clock     clock.Clock `optional:"true"`
}

// Snapshot is immutable once published.
type Snapshot struct {
	Products []productdomain.Response
	LoadedAt time.Time
	byID     map[string]int
}

type State struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      productdomain.Repository
	mediaRepo mediadomain.Repository
	clock     clock.Clock

	// refreshMu orders whole refreshes so an older read never publishes last.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	snapshot  *Snapshot
}

func New(p Params) *State {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &State{
		db:        p.DB,
		log:       p.Log.Named("catalog"),
		repo:      p.Repo,
		mediaRepo: p.MediaRepo,
		clock:     c,
	}
}

// Refresh re-reads every active product with its media and swaps the snapshot.
func (s *State) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	active := true
	items, err := s.repo.List(ctx, s.db, productdomain.ListRequest{Active: &active})
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	images, err := s.mediaRepo.ListByProducts(ctx, s.db, ids)
	if err != nil {
		return err
	}

	snap := &Snapshot{
		Products: make([]productdomain.Response, 0, len(items)),
		LoadedAt: s.clock.Now(),
		byID:     make(map[string]int, len(items)),
	}
	for i := range items {
		resp := productdomain.NewResponse(&items[i], images[items[i].ID])
		snap.byID[resp.ID] = len(snap.Products)
		snap.Products = append(snap.Products, resp)
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.log.Debug("catalog refreshed", zap.Int("products", len(snap.Products)))
	return nil
}

func (s *State) current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return &Snapshot{}
	}
	return s.snapshot
}

// Snapshot returns the last published snapshot.
func (s *State) Snapshot() *Snapshot {
	return s.current()
}

type ListFilter struct {
	Query string
	Promo *bool
	Limit int
}

// List matches Query case-insensitively against the name and as a substring
// of the code.
func (s *State) List(filter ListFilter) []productdomain.Response {
	snap := s.current()
	query := strings.TrimSpace(filter.Query)
	lowered := strings.ToLower(query)

	out := make([]productdomain.Response, 0, len(snap.Products))
	for _, item := range snap.Products {
		if query != "" &&
			!strings.Contains(strings.ToLower(item.Name), lowered) &&
			!strings.Contains(item.Code, query) {
			continue
		}
		if filter.Promo != nil && item.IsPromo != *filter.Promo {
			continue
		}
		out = append(out, item)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

func (s *State) Get(id string) (productdomain.Response, bool) {
	snap := s.current()
	idx, ok := snap.byID[strings.TrimSpace(id)]
	if !ok {
		return productdomain.Response{}, false
	}
	return snap.Products[idx], true
}

// Featured lists the carousel products, newest first.
func (s *State) Featured() []productdomain.Response {
	snap := s.current()
	out := make([]productdomain.Response, 0)
	for _, item := range snap.Products {
		if item.IsFeatured {
			out = append(out, item)
		}
	}
	return out
}
