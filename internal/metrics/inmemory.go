package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	SendsAllowed             uint64
	SendsDenied              uint64
	AdmissionDurationCount   uint64
	AdmissionDurationTotalNs int64
	PlateCacheHits           uint64
	PlateCacheMisses         uint64
	PlatesRegistered         uint64
	PlatesDeleted            uint64
	Delivered                uint64
	DeliveryFailed           uint64
	DeliveryDurationCount    uint64
	DeliveryDurationTotalNs  int64
	AuditPublished           uint64
	AuditPublishDropped      uint64
	AuditProcessed           uint64
	AuditProcessFailed       uint64
	AuditDeadLettered        uint64
	AuditBatchCount          uint64
	AuditBatchEventsTotal    uint64
	AuditBatchDurationNs     int64
	AuditQueueDepth          int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	sendsAllowed             uint64
	sendsDenied              uint64
	admissionDurationCount   uint64
	admissionDurationTotalNs int64
	plateCacheHits           uint64
	plateCacheMisses         uint64
	platesRegistered         uint64
	platesDeleted            uint64
	delivered                uint64
	deliveryFailed           uint64
	deliveryDurationCount    uint64
	deliveryDurationTotalNs  int64
	auditPublished           uint64
	auditPublishDropped      uint64
	auditProcessed           uint64
	auditProcessFailed       uint64
	auditDeadLettered        uint64
	auditBatchCount          uint64
	auditBatchEventsTotal    uint64
	auditBatchDurationNs     int64
	auditQueueDepth          int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		SendsAllowed:             atomic.LoadUint64(&m.sendsAllowed),
		SendsDenied:              atomic.LoadUint64(&m.sendsDenied),
		AdmissionDurationCount:   atomic.LoadUint64(&m.admissionDurationCount),
		AdmissionDurationTotalNs: atomic.LoadInt64(&m.admissionDurationTotalNs),
		PlateCacheHits:           atomic.LoadUint64(&m.plateCacheHits),
		PlateCacheMisses:         atomic.LoadUint64(&m.plateCacheMisses),
		PlatesRegistered:         atomic.LoadUint64(&m.platesRegistered),
		PlatesDeleted:            atomic.LoadUint64(&m.platesDeleted),
		Delivered:                atomic.LoadUint64(&m.delivered),
		DeliveryFailed:           atomic.LoadUint64(&m.deliveryFailed),
		DeliveryDurationCount:    atomic.LoadUint64(&m.deliveryDurationCount),
		DeliveryDurationTotalNs:  atomic.LoadInt64(&m.deliveryDurationTotalNs),
		AuditPublished:           atomic.LoadUint64(&m.auditPublished),
		AuditPublishDropped:      atomic.LoadUint64(&m.auditPublishDropped),
		AuditProcessed:           atomic.LoadUint64(&m.auditProcessed),
		AuditProcessFailed:       atomic.LoadUint64(&m.auditProcessFailed),
		AuditDeadLettered:        atomic.LoadUint64(&m.auditDeadLettered),
		AuditBatchCount:          atomic.LoadUint64(&m.auditBatchCount),
		AuditBatchEventsTotal:    atomic.LoadUint64(&m.auditBatchEventsTotal),
		AuditBatchDurationNs:     atomic.LoadInt64(&m.auditBatchDurationNs),
		AuditQueueDepth:          atomic.LoadInt64(&m.auditQueueDepth),
	}
}

// IncSendAllowed increments the allowed-send counter.
func (m *InMemoryRecorder) IncSendAllowed() {
	atomic.AddUint64(&m.sendsAllowed, 1)
}

// IncSendDenied increments the denied-send counter.
func (m *InMemoryRecorder) IncSendDenied() {
	atomic.AddUint64(&m.sendsDenied, 1)
}

// ObserveAdmissionDuration records an admission check duration.
func (m *InMemoryRecorder) ObserveAdmissionDuration(duration time.Duration) {
	atomic.AddUint64(&m.admissionDurationCount, 1)
	atomic.AddInt64(&m.admissionDurationTotalNs, duration.Nanoseconds())
}

// IncPlateCacheHit increments the plate cache hit counter.
func (m *InMemoryRecorder) IncPlateCacheHit() {
	atomic.AddUint64(&m.plateCacheHits, 1)
}

// IncPlateCacheMiss increments the plate cache miss counter.
func (m *InMemoryRecorder) IncPlateCacheMiss() {
	atomic.AddUint64(&m.plateCacheMisses, 1)
}

// IncPlateRegistered increments the plate registered counter.
func (m *InMemoryRecorder) IncPlateRegistered() {
	atomic.AddUint64(&m.platesRegistered, 1)
}

// IncPlateDeleted increments the plate deleted counter.
func (m *InMemoryRecorder) IncPlateDeleted() {
	atomic.AddUint64(&m.platesDeleted, 1)
}

// IncDelivery increments the delivery counter for the given status.
func (m *InMemoryRecorder) IncDelivery(status string) {
	if status == "delivered" {
		atomic.AddUint64(&m.delivered, 1)
		return
	}
	atomic.AddUint64(&m.deliveryFailed, 1)
}

// ObserveDeliveryDuration records a delivery duration.
func (m *InMemoryRecorder) ObserveDeliveryDuration(duration time.Duration) {
	atomic.AddUint64(&m.deliveryDurationCount, 1)
	atomic.AddInt64(&m.deliveryDurationTotalNs, duration.Nanoseconds())
}

// IncAuditEventPublished increments the publish counter for the status.
func (m *InMemoryRecorder) IncAuditEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.auditPublished, 1)
		return
	}
	atomic.AddUint64(&m.auditPublishDropped, 1)
}

// IncAuditEventProcessed increments the worker outcome counter for the
// status.
func (m *InMemoryRecorder) IncAuditEventProcessed(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.auditProcessed, 1)
	case "dead_lettered":
		atomic.AddUint64(&m.auditDeadLettered, 1)
	default:
		atomic.AddUint64(&m.auditProcessFailed, 1)
	}
}

// ObserveAuditBatchSize records the size of a processed batch.
func (m *InMemoryRecorder) ObserveAuditBatchSize(size int) {
	atomic.AddUint64(&m.auditBatchCount, 1)
	atomic.AddUint64(&m.auditBatchEventsTotal, uint64(size))
}

// ObserveAuditBatchDuration records the time spent on a batch.
func (m *InMemoryRecorder) ObserveAuditBatchDuration(duration time.Duration) {
	atomic.AddInt64(&m.auditBatchDurationNs, duration.Nanoseconds())
}

// SetAuditQueueDepth records the last observed stream backlog.
func (m *InMemoryRecorder) SetAuditQueueDepth(depth int64) {
	atomic.StoreInt64(&m.auditQueueDepth, depth)
}
