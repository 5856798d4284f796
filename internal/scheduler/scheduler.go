// Package scheduler runs periodic maintenance over product media.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrisfit/storefront/internal/clock"
	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	"github.com/chrisfit/storefront/internal/observability/metrics"
	"github.com/chrisfit/storefront/internal/ratelimit"
	"github.com/chrisfit/storefront/internal/storage"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobOrphanSweep = "orphan_sweep"

	orphanSweepLockKey = "orphan_sweep"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// ErrUnresolvedReferences stops a sweep when stored media URLs do not map to
// the configured storage, for example after the public base URL changed.
var ErrUnresolvedReferences = errors.New("unresolved_media_references")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	MediaRepo mediadomain.Repository
	Clock     clock.Clock
	Config    Config            `optional:"true"`
	Storage   storage.Storage   `optional:"true"`
	Locker    *ratelimit.Locker `optional:"true"`
	Metrics   *metrics.Metrics  `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	mediaRepo mediadomain.Repository
	store     storage.Storage
	locker    *ratelimit.Locker
	metrics   *metrics.Metrics
	cron      *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.MediaRepo == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Cron); err != nil {
		return nil, fmt.Errorf("%w: cron %q: %v", ErrInvalidConfig, cfg.Cron, err)
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       cfg,
		clock:     p.Clock,
		mediaRepo: p.MediaRepo,
		store:     p.Storage,
		locker:    p.Locker,
		metrics:   p.Metrics,
		cron:      cron.New(cron.WithParser(parser)),
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	schedMetrics := metrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	return s.withLock(parent, JobOrphanSweep, orphanSweepLockKey, func(ctx context.Context) error {
		return s.runJob(ctx, JobOrphanSweep, s.cfg.Timeout, func(ctx context.Context) error {
			_, err := s.SweepOrphans(ctx)
			return err
		})
	})
}

// withLock runs fn only on the replica holding key. Without Redis every
// replica runs the job.
func (s *Scheduler) withLock(ctx context.Context, job, key string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("scheduler lock unavailable, running unlocked", zap.String("job", job), zap.Error(err))
		return fn(ctx)
	}
	if !ok {
		metrics.Scheduler().IncJobSkipped(job, metrics.JobReasonLockHeld)
		s.log.Debug("scheduler lock held elsewhere", zap.String("job", job))
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.Background(), key, token); err != nil {
			s.log.Warn("scheduler lock release failed", zap.String("job", job), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// SweepOrphans deletes stored media objects that no product image row
// references and that are older than the grace period. Recent objects are
// left alone since an upload may still be waiting for its rows to commit.
func (s *Scheduler) SweepOrphans(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	run := jobRunFromContext(ctx)

	urls, err := s.mediaRepo.ListAllURLs(ctx, s.db.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	referenced := make(map[string]struct{}, len(urls))
	unresolved := 0
	for _, url := range urls {
		objectPath, ok := s.store.PathFromURL(url)
		if !ok {
			if unresolved == 0 {
				s.logger(ctx).Warn("media url does not match storage", zap.String("url", url))
			}
			unresolved++
			continue
		}
		referenced[objectPath] = struct{}{}
	}
	// every live object would look orphaned, so nothing is deleted
	if unresolved > 0 {
		s.logger(ctx).Warn("orphan sweep skipped",
			zap.Int("unresolved_urls", unresolved),
			zap.Int("stored_urls", len(urls)),
		)
		return 0, fmt.Errorf("%w: %d of %d stored urls", ErrUnresolvedReferences, unresolved, len(urls))
	}

	objects, err := s.store.List(ctx, "")
	if err != nil {
		return 0, errors.Join(metrics.ErrStorage, err)
	}

	cutoff := s.clock.Now().Add(-s.cfg.GracePeriod)
	deleted := 0
	var errs error
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			errs = errors.Join(errs, err)
			break
		}
		if _, ok := referenced[obj.Path]; ok {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, obj.Path); err != nil && !errors.Is(err, storage.ErrObjectMissing) {
			run.IncError()
			s.logger(ctx).Warn("orphan delete failed", zap.String("path", obj.Path), zap.Error(err))
			errs = errors.Join(errs, metrics.ErrStorage, err)
			continue
		}
		deleted++
	}

	run.AddProcessed(deleted)
	metrics.Scheduler().AddBatchProcessed(JobOrphanSweep, "media_object", deleted)
	s.metrics.RecordOrphansDeleted(ctx, deleted)
	if deleted > 0 {
		s.logger(ctx).Info("orphan media deleted", zap.Int("count", deleted))
	}
	return deleted, errs
}

// Start registers the jobs on the cron schedule and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	_, err := s.cron.AddFunc(s.cfg.Cron, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("scheduler run failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.String("cron", s.cfg.Cron), zap.Duration("grace_period", s.cfg.GracePeriod))
	return nil
}

// Stop halts the schedule and waits for a running job to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
