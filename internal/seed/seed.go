// Package seed bootstraps the first back-office account.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/chrisfit/storefront/internal/auth/domain"
	"github.com/chrisfit/storefront/internal/auth/password"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail    = "admin@chrisfit.local"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "Chris Fit Admin"
)

type AdminParams struct {
	Email    string
	Password string
}

// EnsureAdmin creates the default admin account when no user exists yet.
// It never touches an installation that already has accounts.
func EnsureAdmin(db *gorm.DB, p AdminParams) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		email = defaultAdminEmail
	}
	secret := p.Password
	if secret == "" {
		secret = defaultAdminPassword
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Model(&authdomain.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		hashed, err := password.Hash(secret)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		user := authdomain.User{
			ID:           node.Generate(),
			Email:        email,
			DisplayName:  defaultAdminDisplay,
			PasswordHash: &hashed,
			Role:         authdomain.RoleAdmin,
			IsDefault:    true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.WithContext(ctx).Create(&user).Error
	})
}
