package catalog

import (
	"context"

	productdomain "github.com/chrisfit/storefront/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("catalog",
	fx.Provide(New),
	fx.Provide(func(s *State) productdomain.CatalogRefresher { return s }),
	fx.Invoke(registerWarmup),
)

func registerWarmup(lc fx.Lifecycle, s *State, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.Refresh(ctx); err != nil {
				log.Warn("catalog warmup failed", zap.Error(err))
			}
			return nil
		},
	})
}
