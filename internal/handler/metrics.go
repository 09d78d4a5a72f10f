package handler

import (
	"fmt"
	"net/http"

	"github.com/platerelay/platerelay/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "platerelay_sends_allowed_total %d\n", snap.SendsAllowed)
	writeMetric(w, "platerelay_sends_denied_total %d\n", snap.SendsDenied)
	writeMetric(w, "platerelay_admission_duration_seconds_count %d\n", snap.AdmissionDurationCount)
	writeMetric(w, "platerelay_admission_duration_seconds_sum %.6f\n", float64(snap.AdmissionDurationTotalNs)/1e9)

	writeMetric(w, "platerelay_plate_cache_hits_total %d\n", snap.PlateCacheHits)
	writeMetric(w, "platerelay_plate_cache_misses_total %d\n", snap.PlateCacheMisses)
	writeMetric(w, "platerelay_plates_registered_total %d\n", snap.PlatesRegistered)
	writeMetric(w, "platerelay_plates_deleted_total %d\n", snap.PlatesDeleted)

	writeMetric(w, "platerelay_deliveries_total{status=\"delivered\"} %d\n", snap.Delivered)
	writeMetric(w, "platerelay_deliveries_total{status=\"failed\"} %d\n", snap.DeliveryFailed)
	writeMetric(w, "platerelay_delivery_duration_seconds_count %d\n", snap.DeliveryDurationCount)
	writeMetric(w, "platerelay_delivery_duration_seconds_sum %.6f\n", float64(snap.DeliveryDurationTotalNs)/1e9)

	writeMetric(w, "platerelay_audit_events_published_total{status=\"success\"} %d\n", snap.AuditPublished)
	writeMetric(w, "platerelay_audit_events_published_total{status=\"dropped\"} %d\n", snap.AuditPublishDropped)
	writeMetric(w, "platerelay_audit_events_processed_total{status=\"success\"} %d\n", snap.AuditProcessed)
	writeMetric(w, "platerelay_audit_events_processed_total{status=\"failed\"} %d\n", snap.AuditProcessFailed)
	writeMetric(w, "platerelay_audit_events_processed_total{status=\"dead_lettered\"} %d\n", snap.AuditDeadLettered)
	writeMetric(w, "platerelay_audit_batches_total %d\n", snap.AuditBatchCount)
	writeMetric(w, "platerelay_audit_batch_events_total %d\n", snap.AuditBatchEventsTotal)
	writeMetric(w, "platerelay_audit_batch_duration_seconds_sum %.6f\n", float64(snap.AuditBatchDurationNs)/1e9)
	writeMetric(w, "platerelay_audit_queue_depth %d\n", snap.AuditQueueDepth)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
