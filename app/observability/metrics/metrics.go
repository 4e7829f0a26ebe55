package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ChatRequestsTotal             metric.Int64Counter
	LLMRequestDurationSeconds     metric.Float64Histogram
	LLMRequestErrorsTotal         metric.Int64Counter
	RecommendationDurationSeconds metric.Float64Histogram
	RecommendationFailuresTotal   metric.Int64Counter
	PlaceLookupsTotal             metric.Int64Counter
	PlaceLookupFailuresTotal      metric.Int64Counter
	PlaceCacheHitsTotal           metric.Int64Counter
	StorageErrorsTotal            metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments from the global MeterProvider. Call
// it after the provider is installed; later calls are no-ops.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("yeopl")
		m := &AppMetrics{}

		m.ChatRequestsTotal = counter(meter, "chat_requests_total", "Chat proxy requests by mode", "{request}")
		m.LLMRequestDurationSeconds = histogram(meter, "llm_request_duration_seconds", "Latency of language model calls")
		m.LLMRequestErrorsTotal = counter(meter, "llm_request_errors_total", "Failed language model calls", "{error}")
		m.RecommendationDurationSeconds = histogram(meter, "recommendation_duration_seconds", "End-to-end route recommendation latency")
		m.RecommendationFailuresTotal = counter(meter, "recommendation_failures_total", "Recommendation failures by kind", "{error}")
		m.PlaceLookupsTotal = counter(meter, "place_lookups_total", "Place directory lookups", "{request}")
		m.PlaceLookupFailuresTotal = counter(meter, "place_lookup_failures_total", "Failed place directory lookups", "{error}")
		m.PlaceCacheHitsTotal = counter(meter, "place_cache_hits_total", "Place lookups answered from cache", "{hit}")
		m.StorageErrorsTotal = counter(meter, "storage_errors_total", "Failed state store reads and writes", "{error}")

		appMetrics = m
	})
}

// Get returns the instruments, initialising them on first use. Before a
// MeterProvider is installed the global no-op provider backs them.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

func counter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return c
}

func histogram(meter metric.Meter, name, desc string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return h
}
