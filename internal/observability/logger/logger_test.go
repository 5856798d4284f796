package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	obscontext "github.com/chrisfit/storefront/internal/observability/context"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-7")
	ctx = obscontext.WithActor(ctx, "user", "99")
	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "user", fields["actor_type"])
	assert.Equal(t, "99", fields["actor_id"])
}

func TestGinMiddlewarePropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(err error) (string, string) { return "validation_error", err.Error() },
	}))
	r.GET("/admin/products/:id", func(c *gin.Context) {
		_ = c.Error(errors.New("invalid_id"))
		c.Status(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/products/abc", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-Id"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http_request", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "/admin/products/:id", fields["route"])
	assert.Equal(t, "invalid_id", fields["error_code"])
	assert.Equal(t, "fixed-id", fields["request_id"])
}

func TestGormLoggerLogsSlowQueries(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormLogger(GormLoggerConfig{
		Base:          zap.New(core),
		Level:         gormlogger.Warn,
		SlowThreshold: time.Millisecond,
	})

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT * FROM products", 3
	}, nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "SELECT", fields["operation"])
	assert.Equal(t, int64(3), fields["rows_affected"])
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "DELETE", operationFromSQL("DELETE FROM product_images WHERE product_id = ?"))
	assert.Equal(t, "INSERT", operationFromSQL("WITH x AS (SELECT 1) INSERT INTO t VALUES (1)"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
