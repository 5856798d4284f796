package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	DeleteByProduct(ctx context.Context, db *gorm.DB, productID int64) error
	InsertMany(ctx context.Context, db *gorm.DB, rows []ProductImage) error
	ListByProduct(ctx context.Context, db *gorm.DB, productID int64) ([]ProductImage, error)
	ListByProducts(ctx context.Context, db *gorm.DB, productIDs []int64) (map[int64][]ProductImage, error)
	ListAllURLs(ctx context.Context, db *gorm.DB) ([]string, error)
}
