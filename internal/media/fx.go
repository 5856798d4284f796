package media

import (
	"github.com/chrisfit/storefront/internal/clock"
	"github.com/chrisfit/storefront/internal/media/domain"
	"github.com/chrisfit/storefront/internal/media/probe"
	"github.com/chrisfit/storefront/internal/media/repository"
	"github.com/chrisfit/storefront/internal/media/service"
	"github.com/chrisfit/storefront/internal/observability/metrics"
	"github.com/chrisfit/storefront/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("media.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideCoordinator),
	fx.Provide(service.NewReconciler),
	fx.Provide(func(r *service.Reconciler) domain.Reconciler { return r }),
	fx.Provide(probe.NewValidator),
)

type coordinatorParams struct {
	fx.In

	Log     *zap.Logger
	Store   storage.Storage `optional:"true"`
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

func provideCoordinator(p coordinatorParams) *service.Coordinator {
	var store domain.Storage
	if p.Store != nil {
		store = p.Store
	}
	return service.NewCoordinator(p.Log, store, p.Clock, p.Metrics)
}
