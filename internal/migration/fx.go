package migration

import (
	authdomain "github.com/chrisfit/storefront/internal/auth/domain"
	"github.com/chrisfit/storefront/internal/config"
	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	productdomain "github.com/chrisfit/storefront/internal/product/domain"
	"github.com/chrisfit/storefront/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Apply(conn, cfg.DBType); err != nil {
			return err
		}
		log.Named("migration").Info("schema ready", zap.String("dialect", cfg.DBType))

		if cfg.Bootstrap.EnsureAdmin {
			return seed.EnsureAdmin(conn, seed.AdminParams{
				Email:    cfg.Bootstrap.AdminEmail,
				Password: cfg.Bootstrap.AdminPassword,
			})
		}
		return nil
	}),
)

// Apply runs the SQL migrations on postgres and falls back to GORM
// auto-migration for the other dialects (sqlite, mysql).
func Apply(conn *gorm.DB, dialect string) error {
	if dialect == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&productdomain.Product{},
		&mediadomain.ProductImage{},
	)
}
