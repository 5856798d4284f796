package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/chrisfit/storefront/internal/product/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, code, name, price, promo_price, is_promo, is_featured, is_active,
		 sizes, colors, observation, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Code,
		product.Name,
		product.Price,
		product.PromoPrice,
		product.IsPromo,
		product.IsFeatured,
		product.IsActive,
		product.Sizes,
		product.Colors,
		product.Observation,
		product.Description,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	tx := db.WithContext(ctx).Exec(
		`UPDATE products
		 SET code = ?, name = ?, price = ?, promo_price = ?, is_promo = ?, is_featured = ?, is_active = ?,
		     sizes = ?, colors = ?, observation = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		product.Code,
		product.Name,
		product.Price,
		product.PromoPrice,
		product.IsPromo,
		product.IsFeatured,
		product.IsActive,
		product.Sizes,
		product.Colors,
		product.Observation,
		product.Description,
		product.UpdatedAt,
		product.ID,
	)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	tx := db.WithContext(ctx).Exec(`DELETE FROM products WHERE id = ?`, id)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).Model(&domain.Product{})

	if q := strings.TrimSpace(filter.Query); q != "" {
		stmt = stmt.Where("LOWER(name) LIKE ? OR code LIKE ?", "%"+strings.ToLower(q)+"%", "%"+q+"%")
	}
	if filter.Active != nil {
		stmt = stmt.Where("is_active = ?", *filter.Active)
	}
	if filter.Featured != nil {
		stmt = stmt.Where("is_featured = ?", *filter.Featured)
	}
	if filter.Promo != nil {
		stmt = stmt.Where("is_promo = ?", *filter.Promo)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	if err := stmt.Order("created_at DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
