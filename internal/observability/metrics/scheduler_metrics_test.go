package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: JobReasonDeadlineExceeded},
		{name: "storage", err: fmt.Errorf("list objects: %w", ErrStorage), want: JobReasonStorage},
		{name: "pg", err: &pgconn.PgError{Code: "40001"}, want: JobReasonDB},
		{name: "duplicate", err: gorm.ErrDuplicatedKey, want: JobReasonDB},
		{name: "not_found", err: gorm.ErrRecordNotFound, want: JobReasonUnknown},
		{name: "unknown", err: errors.New("boom"), want: JobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyJobReason(tc.err))
		})
	}
}

func TestSchedulerMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newSchedulerMetrics(reg, Config{ServiceName: "storefront", Environment: "test"})

	m.IncJobRun("orphan_sweep")
	m.IncJobError("orphan_sweep", fmt.Errorf("delete: %w", ErrStorage))
	m.AddBatchProcessed("orphan_sweep", "storage_object", 4)
	m.IncJobSkipped("orphan_sweep", JobReasonLockHeld)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobRuns.WithLabelValues("orphan_sweep")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("orphan_sweep", JobReasonStorage)))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.batchProcessed.WithLabelValues("orphan_sweep", "storage_object")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobSkipped.WithLabelValues("orphan_sweep", JobReasonLockHeld)))
}

func TestHTTPMetricsRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := newHTTPMetrics(reg, Config{})
	second := newHTTPMetrics(reg, Config{})
	assert.Same(t, first.requests, second.requests)
}
