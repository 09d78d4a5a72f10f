package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSendAllowed is a no-op.
func (n *NoopRecorder) IncSendAllowed() {}

// IncSendDenied is a no-op.
func (n *NoopRecorder) IncSendDenied() {}

// ObserveAdmissionDuration is a no-op.
func (n *NoopRecorder) ObserveAdmissionDuration(duration time.Duration) {}

// IncPlateCacheHit is a no-op.
func (n *NoopRecorder) IncPlateCacheHit() {}

// IncPlateCacheMiss is a no-op.
func (n *NoopRecorder) IncPlateCacheMiss() {}

// IncPlateRegistered is a no-op.
func (n *NoopRecorder) IncPlateRegistered() {}

// IncPlateDeleted is a no-op.
func (n *NoopRecorder) IncPlateDeleted() {}

// IncDelivery is a no-op.
func (n *NoopRecorder) IncDelivery(status string) {}

// ObserveDeliveryDuration is a no-op.
func (n *NoopRecorder) ObserveDeliveryDuration(duration time.Duration) {}

// IncAuditEventPublished is a no-op.
func (n *NoopRecorder) IncAuditEventPublished(status string) {}

// IncAuditEventProcessed is a no-op.
func (n *NoopRecorder) IncAuditEventProcessed(status string) {}

// ObserveAuditBatchSize is a no-op.
func (n *NoopRecorder) ObserveAuditBatchSize(size int) {}

// ObserveAuditBatchDuration is a no-op.
func (n *NoopRecorder) ObserveAuditBatchDuration(duration time.Duration) {}

// SetAuditQueueDepth is a no-op.
func (n *NoopRecorder) SetAuditQueueDepth(depth int64) {}
