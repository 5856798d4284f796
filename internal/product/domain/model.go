package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID          int64                       `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Code        string                      `json:"code" gorm:"type:text;not null;index"`
	Name        string                      `json:"name" gorm:"type:text;not null"`
	Price       decimal.Decimal             `json:"price" gorm:"type:numeric(12,2);not null"`
	PromoPrice  decimal.NullDecimal         `json:"promo_price" gorm:"type:numeric(12,2)"`
	IsPromo     bool                        `json:"is_promo" gorm:"not null;default:false"`
	IsFeatured  bool                        `json:"is_featured" gorm:"not null;default:false"`
	IsActive    bool                        `json:"is_active" gorm:"not null;default:true"`
	Sizes       datatypes.JSONSlice[string] `json:"sizes" gorm:"not null"`
	Colors      datatypes.JSONSlice[string] `json:"colors"`
	Observation *string                     `json:"observation,omitempty" gorm:"type:text"`
	Description *string                     `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time                   `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt   time.Time                   `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }

// EffectivePrice is the promo price while a positive promo is running.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.IsPromo && p.PromoPrice.Valid && p.PromoPrice.Decimal.IsPositive() {
		return p.PromoPrice.Decimal
	}
	return p.Price
}
