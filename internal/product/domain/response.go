package domain

import (
	"strconv"

	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
)

// NewResponse renders a product with its stored media rows.
func NewResponse(p *Product, images []mediadomain.ProductImage) Response {
	slots := mediadomain.SlotsFromImages(images)
	views := mediadomain.NewSlotViews(slots)

	resp := Response{
		ID:             strconv.FormatInt(p.ID, 10),
		Code:           p.Code,
		Name:           p.Name,
		Price:          p.Price,
		EffectivePrice: p.EffectivePrice(),
		IsPromo:        p.IsPromo,
		IsFeatured:     p.IsFeatured,
		IsActive:       p.IsActive,
		Sizes:          append([]string{}, p.Sizes...),
		Colors:         append([]string{}, p.Colors...),
		Observation:    p.Observation,
		Description:    p.Description,
		Media:          views,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.PromoPrice.Valid {
		promo := p.PromoPrice.Decimal
		resp.PromoPrice = &promo
	}
	if first := slots.First(); first > 0 {
		resp.Cover = views[first-1]
	}
	return resp
}

// Slots returns the media URLs of a response as a slot array.
func (r *Response) Slots() mediadomain.SlotArray[string] {
	var slots mediadomain.SlotArray[string]
	for i, view := range r.Media {
		if view != nil {
			slots.Set(i+1, view.URL)
		}
	}
	return slots
}
