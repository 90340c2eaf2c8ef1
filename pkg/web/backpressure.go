package web

import (
	"sync/atomic"
)

// BackpressureController bounds in-flight requests at the normal capacity.
// Requests above it are rejected with 503 instead of queueing without limit.
type BackpressureController struct {
	normalCapacity int64
	currentLoad    int64
	rejectedCount  int64
}

// NewBackpressureController creates a controller admitting up to normalCapacity requests
func NewBackpressureController(normalCapacity int) *BackpressureController {
	if normalCapacity < 1 {
		normalCapacity = 1
	}
	return &BackpressureController{normalCapacity: int64(normalCapacity)}
}

// TryAcquire reserves a slot. It returns false, and counts a rejection, when full.
func (bc *BackpressureController) TryAcquire() bool {
	for {
		current := atomic.LoadInt64(&bc.currentLoad)
		if current >= bc.normalCapacity {
			atomic.AddInt64(&bc.rejectedCount, 1)
			return false
		}
		if atomic.CompareAndSwapInt64(&bc.currentLoad, current, current+1) {
			return true
		}
	}
}

// Release frees a slot taken by TryAcquire
func (bc *BackpressureController) Release() {
	atomic.AddInt64(&bc.currentLoad, -1)
}

// GetMetrics returns current backpressure metrics
func (bc *BackpressureController) GetMetrics() BackpressureMetrics {
	currentLoad := atomic.LoadInt64(&bc.currentLoad)
	return BackpressureMetrics{
		NormalCapacity: bc.normalCapacity,
		CurrentLoad:    currentLoad,
		RejectedCount:  atomic.LoadInt64(&bc.rejectedCount),
		Utilization:    float64(currentLoad) / float64(bc.normalCapacity) * 100,
	}
}

// BackpressureMetrics provides backpressure statistics
type BackpressureMetrics struct {
	NormalCapacity int64
	CurrentLoad    int64
	RejectedCount  int64
	Utilization    float64 // percent of normal capacity
}
