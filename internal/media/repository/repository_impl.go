package repository

import (
	"context"

	"github.com/chrisfit/storefront/internal/media/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) DeleteByProduct(ctx context.Context, db *gorm.DB, productID int64) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM product_images WHERE product_id = ?`,
		productID,
	).Error
}

func (r *repo) InsertMany(ctx context.Context, db *gorm.DB, rows []domain.ProductImage) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&rows).Error
}

func (r *repo) ListByProduct(ctx context.Context, db *gorm.DB, productID int64) ([]domain.ProductImage, error) {
	var items []domain.ProductImage
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByProducts(ctx context.Context, db *gorm.DB, productIDs []int64) (map[int64][]domain.ProductImage, error) {
	out := make(map[int64][]domain.ProductImage, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var items []domain.ProductImage
	err := db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("product_id ASC, position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ProductID] = append(out[item.ProductID], item)
	}
	return out, nil
}

func (r *repo) ListAllURLs(ctx context.Context, db *gorm.DB) ([]string, error) {
	var urls []string
	err := db.WithContext(ctx).
		Model(&domain.ProductImage{}).
		Distinct("url").
		Pluck("url", &urls).Error
	if err != nil {
		return nil, err
	}
	return urls, nil
}
