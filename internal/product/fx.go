package product

import (
	"github.com/chrisfit/storefront/internal/product/repository"
	"github.com/chrisfit/storefront/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
