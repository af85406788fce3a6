package metrics

import (
	"time"

	"cryptolens/logger"
)

// Metric names emitted by the engine.
const (
	MetricCacheHit        = "cache_hit"
	MetricCacheMiss       = "cache_miss"
	MetricExchangeError   = "exchange_error"
	MetricExchangeLatency = "exchange_latency"
	MetricStreamUpdate    = "stream_update"
)

// RecordCacheLookup counts a hit or miss on the named cache.
func RecordCacheLookup(cache string, hit bool) {
	name := MetricCacheMiss
	if hit {
		name = MetricCacheHit
	}
	EmitMetric(nil, "cache", name, int64(1), "counter", logger.Fields{"cache": cache})
}

// RecordExchangeError counts a failed outbound call.
func RecordExchangeError(exchange, operation string) {
	EmitMetric(nil, "exchange_pool", MetricExchangeError, int64(1), "counter", logger.Fields{
		"exchange":  exchange,
		"operation": operation,
	})
}

// RecordExchangeLatency publishes the duration of an outbound call.
func RecordExchangeLatency(exchange, operation string, d time.Duration) {
	EmitMetric(nil, "exchange_pool", MetricExchangeLatency, float64(d.Milliseconds()), "gauge", logger.Fields{
		"exchange":  exchange,
		"operation": operation,
		"unit":      "milliseconds",
	})
}

// RecordStreamUpdate counts one pushed quote from a streaming source.
func RecordStreamUpdate(exchange string) {
	EmitMetric(nil, "stream", MetricStreamUpdate, int64(1), "counter", logger.Fields{"exchange": exchange})
}
