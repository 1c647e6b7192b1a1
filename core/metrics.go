package core

import (
	"context"
	"maps"
)

const (
	metricPrefix         = "ledger."
	metricTotalSuffix    = ".total"
	metricDurationSuffix = ".duration_ms"
)

// CounterName is the per-operation call counter, e.g. ledger.refresh.total.
func CounterName(operation string) string {
	return metricPrefix + operationOrUnknown(operation) + metricTotalSuffix
}

// DurationName is the per-operation latency histogram in milliseconds.
func DurationName(operation string) string {
	return metricPrefix + operationOrUnknown(operation) + metricDurationSuffix
}

func operationOrUnknown(operation string) string {
	if normalized := normalizeOperation(operation); normalized != "" {
		return normalized
	}
	return "unknown"
}

// NopMetricsRecorder drops every sample. Observers default to it.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	maps.Copy(copied, tags)
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
