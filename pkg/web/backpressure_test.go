package web

import (
	"sync"
	"testing"
)

func TestCCUBasedConfigWithUtilization(t *testing.T) {
	maxCCU := 5000
	utilizationPercent := 67
	config := CCUBasedConfigWithUtilization(":8080", maxCCU, utilizationPercent)

	expectedNormalCapacity := int(float64(maxCCU) * float64(utilizationPercent) / 100.0)
	if got := config.MaxQueue + config.Workers; got != expectedNormalCapacity {
		t.Errorf("Normal capacity = %d, want %d", got, expectedNormalCapacity)
	}
	if config.Workers < 50 || config.MaxQueue < 100 {
		t.Errorf("workers/queue below minimum: %d/%d", config.Workers, config.MaxQueue)
	}
	if config.MaxConns != maxCCU {
		t.Errorf("MaxConns = %d, want %d", config.MaxConns, maxCCU)
	}

	small := CCUBasedConfigWithUtilization(":8080", 10, 0)
	if small.Workers != 50 || small.MaxQueue != 100 {
		t.Errorf("small config = %d workers, %d queue", small.Workers, small.MaxQueue)
	}
}

func TestBackpressureController(t *testing.T) {
	normalCapacity := 3350
	bc := NewBackpressureController(normalCapacity)

	for i := 0; i < normalCapacity; i++ {
		if !bc.TryAcquire() {
			t.Fatalf("Should acquire capacity for request %d", i)
		}
	}

	if bc.TryAcquire() {
		t.Error("Should reject request when normal capacity exceeded")
	}

	metrics := bc.GetMetrics()
	if metrics.CurrentLoad != int64(normalCapacity) {
		t.Errorf("CurrentLoad = %d, want %d", metrics.CurrentLoad, normalCapacity)
	}
	if metrics.RejectedCount != 1 {
		t.Errorf("RejectedCount = %d, want 1", metrics.RejectedCount)
	}
	if metrics.Utilization != 100.0 {
		t.Errorf("Utilization = %.2f%%, want 100%%", metrics.Utilization)
	}

	bc.Release()
	if got := bc.GetMetrics().CurrentLoad; got != int64(normalCapacity-1) {
		t.Errorf("CurrentLoad = %d, want %d", got, normalCapacity-1)
	}
	if !bc.TryAcquire() {
		t.Error("Should acquire capacity after release")
	}
}

func TestBackpressureController_Concurrent(t *testing.T) {
	bc := NewBackpressureController(10)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if bc.TryAcquire() {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 10 {
		t.Errorf("acquired = %d, want exactly 10", acquired)
	}
	if got := bc.GetMetrics().RejectedCount; got != 40 {
		t.Errorf("RejectedCount = %d, want 40", got)
	}
}
