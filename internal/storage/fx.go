package storage

import (
	"fmt"

	"github.com/chrisfit/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(New),
)

// New returns a nil Storage when no driver is configured; uploads then fail
// with a "storage not configured" error instead of the process refusing to start.
func New(cfg config.Config, log *zap.Logger) (Storage, error) {
	log = log.Named("storage")
	sc := cfg.Storage
	if !sc.Enabled() {
		log.Warn("object storage not configured", zap.String("driver", sc.Driver))
		return nil, nil
	}

	switch sc.Driver {
	case config.StorageDriverS3:
		store, err := NewS3(S3Config{
			Endpoint:      sc.Endpoint,
			Region:        sc.Region,
			Bucket:        sc.Bucket,
			AccessKey:     sc.AccessKey,
			SecretKey:     sc.SecretKey,
			UseSSL:        sc.UseSSL,
			PublicBaseURL: sc.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		log.Info("object storage ready", zap.String("driver", sc.Driver), zap.String("bucket", sc.Bucket))
		return store, nil
	case config.StorageDriverLocal:
		base := sc.PublicBaseURL
		if base == "" {
			base = LocalMediaRoute
		}
		store, err := NewLocalDir(sc.LocalRoot, base)
		if err != nil {
			return nil, err
		}
		log.Info("object storage ready", zap.String("driver", sc.Driver), zap.String("root", sc.LocalRoot))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", sc.Driver)
	}
}
