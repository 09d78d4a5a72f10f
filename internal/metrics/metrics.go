// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Send admission metrics
	IncSendAllowed()
	IncSendDenied()
	ObserveAdmissionDuration(duration time.Duration)

	// Plate lookup cache metrics
	IncPlateCacheHit()
	IncPlateCacheMiss()

	// Plate management metrics
	IncPlateRegistered()
	IncPlateDeleted()

	// Courier delivery metrics
	IncDelivery(status string) // status: "delivered" or "failed"
	ObserveDeliveryDuration(duration time.Duration)

	// Audit pipeline metrics
	IncAuditEventPublished(status string) // status: "success" or "dropped"
	IncAuditEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveAuditBatchSize(size int)
	ObserveAuditBatchDuration(duration time.Duration)
	SetAuditQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
