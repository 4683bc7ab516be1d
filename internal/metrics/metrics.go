package metrics

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/alxne/storefront/pkg/config"
)

// AppMetrics holds all application metrics
type AppMetrics struct {
	// HTTP Metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestsErrors  metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Persistent store metrics
	StoreOpsTotal   metric.Int64Counter
	StoreOpDuration metric.Float64Histogram

	// Database Metrics
	DBQueriesTotal  metric.Int64Counter
	DBQueryDuration metric.Float64Histogram

	// Business Metrics
	ProductsCreated metric.Int64Counter
	OrdersCreated   metric.Int64Counter
	RevenueTotal    metric.Float64Counter
	CartItemsCount  metric.Int64Gauge

	// Application Metrics
	ActiveListeners metric.Int64UpDownCounter
	CacheHits       metric.Int64Counter
	CacheMisses     metric.Int64Counter

	// Service name for adding to all metrics
	serviceName string
}

// InitMetrics sets up the OTLP/HTTP exporter and the global meter provider
func InitMetrics(ctx context.Context, cfg *config.Config) (*AppMetrics, *sdkmetric.MeterProvider, error) {
	// OTEL_RESOURCE_ATTRIBUTES first, explicit service attributes take precedence
	envRes, err := resource.New(ctx, resource.WithFromEnv())
	if err != nil {
		envRes = resource.Empty()
	}

	explicitRes, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.OTELServiceName),
			semconv.ServiceVersion(cfg.OTELServiceVersion),
			attribute.String("deployment.environment", cfg.OTELDeploymentEnvironment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create explicit resource: %w", err)
	}

	res, err := resource.Merge(envRes, explicitRes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	// WithEndpoint expects host:port without a scheme
	exporterOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.OTELExporterOTLPEndpoint),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
	}
	if cfg.OTELExporterOTLPHeaders != "" {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithHeaders(parseHeaders(cfg.OTELExporterOTLPHeaders)))
	}
	if cfg.OTELExporterOTLPInsecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(10*time.Second),
	)

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(meterProvider)

	log.Printf("[METRICS] exporting to %s/v1/metrics every 10s as %s (insecure=%t)",
		cfg.OTELExporterOTLPEndpoint, cfg.OTELServiceName, cfg.OTELExporterOTLPInsecure)

	appMetrics, err := newAppMetrics(meterProvider.Meter(cfg.OTELServiceName), cfg.OTELServiceName)
	if err != nil {
		return nil, nil, err
	}
	return appMetrics, meterProvider, nil
}

// NewNoop returns metrics that record nothing, for tests and METRICS_ENABLED=false
func NewNoop() *AppMetrics {
	m, err := newAppMetrics(noop.NewMeterProvider().Meter("noop"), "noop")
	if err != nil {
		// the noop meter never fails
		panic(err)
	}
	return m
}

func newAppMetrics(meter metric.Meter, serviceName string) (*AppMetrics, error) {
	// SigNoz default histogram buckets in milliseconds, expanded to 60s
	buckets := []float64{2, 4, 6, 8, 10, 50, 100, 200, 400, 800, 1000, 1400, 2000, 5000, 10000, 15000, 20000, 30000, 45000, 60000}

	httpRequestsTotal, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	httpRequestsErrors, err := meter.Int64Counter(
		"http.server.request.error.count",
		metric.WithDescription("Total number of HTTP error requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http errors counter: %w", err)
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	storeOpsTotal, err := meter.Int64Counter(
		"store.operations.count",
		metric.WithDescription("Total number of persistent store operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store operations counter: %w", err)
	}

	storeOpDuration, err := meter.Float64Histogram(
		"store.operations.duration",
		metric.WithDescription("Persistent store operation duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store duration histogram: %w", err)
	}

	dbQueriesTotal, err := meter.Int64Counter(
		"db.client.queries.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db queries counter: %w", err)
	}

	dbQueryDuration, err := meter.Float64Histogram(
		"db.client.queries.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db duration histogram: %w", err)
	}

	productsCreated, err := meter.Int64Counter(
		"products_created_total",
		metric.WithDescription("Total number of products created"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create products counter: %w", err)
	}

	ordersCreated, err := meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of orders created"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orders counter: %w", err)
	}

	revenueTotal, err := meter.Float64Counter(
		"revenue_total",
		metric.WithDescription("Total revenue generated"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create revenue counter: %w", err)
	}

	cartItemsCount, err := meter.Int64Gauge(
		"cart_items_count",
		metric.WithDescription("Current number of items in the cart"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart items gauge: %w", err)
	}

	activeListeners, err := meter.Int64UpDownCounter(
		"active_listeners_count",
		metric.WithDescription("Change listeners currently attached"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active listeners counter: %w", err)
	}

	cacheHits, err := meter.Int64Counter(
		"cache_hits_total",
		metric.WithDescription("Reads served from the last good snapshot"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		"cache_misses_total",
		metric.WithDescription("Reads that failed with no snapshot to fall back on"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	return &AppMetrics{
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestsErrors:  httpRequestsErrors,
		HTTPRequestDuration: httpRequestDuration,
		StoreOpsTotal:       storeOpsTotal,
		StoreOpDuration:     storeOpDuration,
		DBQueriesTotal:      dbQueriesTotal,
		DBQueryDuration:     dbQueryDuration,
		ProductsCreated:     productsCreated,
		OrdersCreated:       ordersCreated,
		RevenueTotal:        revenueTotal,
		CartItemsCount:      cartItemsCount,
		ActiveListeners:     activeListeners,
		CacheHits:           cacheHits,
		CacheMisses:         cacheMisses,
		serviceName:         serviceName,
	}, nil
}

// WithServiceName adds service.name to attributes
func (m *AppMetrics) WithServiceName(attrs []attribute.KeyValue) []attribute.KeyValue {
	return append(attrs, attribute.String("service.name", m.serviceName))
}

// RecordHTTPRequest records one served request
func (m *AppMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	})...)

	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	if status >= 400 {
		m.HTTPRequestsErrors.Add(ctx, 1, attrs)
	}
	m.HTTPRequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordStoreOp records a persistent store read or write
func (m *AppMetrics) RecordStoreOp(ctx context.Context, operation, key string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	attrs := metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("store.operation", operation),
		attribute.String("store.key", key),
		attribute.String("status", status),
	})...)

	m.StoreOpsTotal.Add(ctx, 1, attrs)
	m.StoreOpDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
}

// RecordDBQuery records a backend database query
func (m *AppMetrics) RecordDBQuery(ctx context.Context, operation, table, system string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	attrs := metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
		attribute.String("db.system", system),
		attribute.String("status", status),
	})...)

	m.DBQueriesTotal.Add(ctx, 1, attrs)
	m.DBQueryDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
}

// RecordSnapshotFallback counts a failed store read; hit is true when a
// snapshot was served instead.
func (m *AppMetrics) RecordSnapshotFallback(ctx context.Context, collection string, hit bool) {
	attrs := metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("cache", collection),
	})...)
	if hit {
		m.CacheHits.Add(ctx, 1, attrs)
	} else {
		m.CacheMisses.Add(ctx, 1, attrs)
	}
}

func (m *AppMetrics) RecordProductCreated(ctx context.Context, category string) {
	m.ProductsCreated.Add(ctx, 1, metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("product.category", category),
	})...))
}

// RecordOrder counts a placed order and its revenue
func (m *AppMetrics) RecordOrder(ctx context.Context, total float64, currency string) {
	attrs := metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("currency", currency),
	})...)
	m.OrdersCreated.Add(ctx, 1, attrs)
	m.RevenueTotal.Add(ctx, total, attrs)
}

func (m *AppMetrics) RecordCartItems(ctx context.Context, count int) {
	m.CartItemsCount.Record(ctx, int64(count), metric.WithAttributes(m.WithServiceName(nil)...))
}

// AddListeners adjusts the attached listener count by delta
func (m *AppMetrics) AddListeners(ctx context.Context, delta int64) {
	m.ActiveListeners.Add(ctx, delta, metric.WithAttributes(m.WithServiceName(nil)...))
}

// parseHeaders parses header string in format "key1=value1,key2=value2"
// and returns a map of headers
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}

	pairs := strings.Split(headerStr, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
