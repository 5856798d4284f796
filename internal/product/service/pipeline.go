package service

import (
	"context"

	authdomain "github.com/chrisfit/storefront/internal/auth/domain"
	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	"github.com/chrisfit/storefront/internal/product/domain"
	"go.uber.org/zap"
)

const (
	stageAuthorize = "authorize"
	stageValidate  = "validate"
	stagePersist   = "persist"
	stageReconcile = "reconcile"
	stageRefresh   = "refresh"
)

// mutation carries the state threaded through the stages of one call.
type mutation struct {
	op     string
	action string

	req      domain.UpsertRequest
	del      domain.DeleteRequest
	actor    *authdomain.User
	id       int64
	existing *domain.Product
	product  *domain.Product
	slots    mediadomain.SlotArray[string]
}

type stage struct {
	name string
	run  func(ctx context.Context, m *mutation) error
}

// runStages stops at the first failing stage and reports it in a StageError.
func (s *Service) runStages(ctx context.Context, m *mutation, stages ...stage) error {
	for _, st := range stages {
		if err := st.run(ctx, m); err != nil {
			s.log.Warn("product mutation failed",
				zap.String("operation", m.op),
				zap.String("stage", st.name),
				zap.Int64("product_id", m.id),
				zap.Error(err),
			)
			s.metrics.RecordProductMutation(ctx, m.op, st.name, "error")
			return &domain.StageError{Op: m.op, Stage: st.name, Err: err}
		}
	}
	s.metrics.RecordProductMutation(ctx, m.op, "done", "success")
	s.log.Info("product mutation applied",
		zap.String("operation", m.op),
		zap.Int64("product_id", m.id),
	)
	return nil
}
