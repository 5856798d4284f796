package domain

import (
	"context"
	"time"

	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req UpsertRequest) (*Response, error)
	// Update returns (nil, nil) when req.ID is empty.
	Update(ctx context.Context, req UpsertRequest) (*Response, error)
	Delete(ctx context.Context, req DeleteRequest) error
	SetFeatured(ctx context.Context, id string, value bool) (*Response, error)
	SetPromo(ctx context.Context, id string, value bool) (*Response, error)
	SetActive(ctx context.Context, id string, value bool) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
}

// CatalogRefresher reloads the public catalog after a mutation.
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
}

type ListRequest struct {
	Query    string
	Active   *bool
	Featured *bool
	Promo    *bool
	Limit    int
}

// MediaInput is the requested slot layout. Existing holds one entry per slot
// with "" for holes; Pending is indexed the same way. KeepStored takes the
// stored layout of an existing product in place of Existing, so new files
// only replace the slots they target.
type MediaInput struct {
	Existing     []string
	Pending      []*mediadomain.PendingFile
	FeaturedSlot int
	KeepStored   bool
}

type UpsertRequest struct {
	ID          string
	Code        string
	Name        string
	Price       string
	PromoPrice  string
	IsPromo     bool
	IsFeatured  bool
	IsActive    *bool
	Sizes       []string
	Colors      []string
	Observation *string
	Description *string
	// Media nil keeps the stored slots on update.
	Media *MediaInput
}

type DeleteRequest struct {
	ID        string
	Confirmed bool
}

type Response struct {
	ID             string                  `json:"id"`
	Code           string                  `json:"code"`
	Name           string                  `json:"name"`
	Price          decimal.Decimal         `json:"price"`
	PromoPrice     *decimal.Decimal        `json:"promo_price"`
	EffectivePrice decimal.Decimal         `json:"effective_price"`
	IsPromo        bool                    `json:"is_promo"`
	IsFeatured     bool                    `json:"is_featured"`
	IsActive       bool                    `json:"is_active"`
	Sizes          []string                `json:"sizes"`
	Colors         []string                `json:"colors"`
	Observation    *string                 `json:"observation,omitempty"`
	Description    *string                 `json:"description,omitempty"`
	Media          []*mediadomain.SlotView `json:"media"`
	Cover          *mediadomain.SlotView   `json:"cover,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}
