package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestParseHeaders(t *testing.T) {
	assert.Empty(t, parseHeaders(""))
	assert.Equal(t,
		map[string]string{"signoz-ingestion-key": "abc", "x-team": "shop"},
		parseHeaders(" signoz-ingestion-key = abc ,x-team=shop,broken"),
	)
}

func TestNewNoop_RecordsWithoutPanicking(t *testing.T) {
	m := NewNoop()
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "/health", 200, time.Millisecond)
	m.RecordStoreOp(ctx, "get", "alxne_products", time.Now(), errors.New("boom"))
	m.RecordSnapshotFallback(ctx, "products", true)
	m.RecordOrder(ctx, 12.5, "USD")
	m.RecordCartItems(ctx, 3)
	m.AddListeners(ctx, 1)
}

func TestRecordStoreOp_ExportsStatus(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newAppMetrics(provider.Meter("test"), "storefront")
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordStoreOp(ctx, "set", "alxne_products", time.Now(), nil)
	m.RecordStoreOp(ctx, "set", "alxne_products", time.Now(), errors.New("quota"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "store.operations.count" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			assert.Len(t, sum.DataPoints, 2)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)
}
