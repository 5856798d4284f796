package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", "success"),
		attribute.String("product_id", "456"),
		attribute.String("kind", "video"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("outcome"))
	assert.Contains(t, keys, attribute.Key("kind"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordMediaUpload(context.Background(), "image", "success")
	m.RecordReconciliation(context.Background(), "success")
	m.RecordProductMutation(context.Background(), "create", "persist", "error")
	m.RecordOrphansDeleted(context.Background(), 3)
	m.RecordLoginAttempt(context.Background(), "denied")
}

func TestRecordMediaUploadExports(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "storefront-test"}, provider)
	require.NoError(t, err)

	m.RecordMediaUpload(context.Background(), "image", "success")
	m.RecordMediaUpload(context.Background(), "image", "success")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var found bool
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if md.Name != "storefront_media_uploads_total" {
			continue
		}
		sum, ok := md.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		found = true
	}
	assert.True(t, found)
}
