// Package observe provides observability primitives for Lorequill:
// OpenTelemetry metrics for the recap pipeline, tracing helpers, and the
// Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the optional /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Lorequill metrics.
const meterName = "github.com/MrWong99/lorequill"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// PassDuration tracks wall-clock latency of a whole generation pass.
	// Use with attribute.String("pass", "discovery"|"extraction"|"synthesis").
	PassDuration metric.Float64Histogram

	// SceneExtractionDuration tracks per-scene pass-2 latency, including
	// locally synthesised empty scenes (which record near-zero values).
	SceneExtractionDuration metric.Float64Histogram

	// ModelCalls counts LLM completions issued by the pipeline. Use with
	// attributes: attribute.String("pass", ...), attribute.String("status", "ok"|"error").
	ModelCalls metric.Int64Counter

	// ScenesDiscovered records the pass-1 scene count per generation run.
	ScenesDiscovered metric.Int64Histogram

	// EmptyScenes counts scenes whose time window held no transcript entries.
	EmptyScenes metric.Int64Counter

	// Generations counts completed generation runs. Use with
	// attribute.String("status", "ok"|"error").
	Generations metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM round-trip latencies rather than sub-second service calls.
var latencyBuckets = []float64{
	0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PassDuration, err = m.Float64Histogram("lorequill.pass.duration",
		metric.WithDescription("Latency of one full generation pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SceneExtractionDuration, err = m.Float64Histogram("lorequill.scene.extraction.duration",
		metric.WithDescription("Latency of a single pass-2 scene extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ModelCalls, err = m.Int64Counter("lorequill.model.calls",
		metric.WithDescription("Number of LLM completion calls issued."),
	); err != nil {
		return nil, err
	}
	if met.ScenesDiscovered, err = m.Int64Histogram("lorequill.scenes.discovered",
		metric.WithDescription("Scene count produced by pass 1 per run."),
	); err != nil {
		return nil, err
	}
	if met.EmptyScenes, err = m.Int64Counter("lorequill.scenes.empty",
		metric.WithDescription("Scenes skipped because their window held no entries."),
	); err != nil {
		return nil, err
	}
	if met.Generations, err = m.Int64Counter("lorequill.generations",
		metric.WithDescription("Completed generation runs."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
