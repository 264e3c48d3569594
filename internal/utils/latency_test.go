package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(16)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := tracker.Percentile(0); got != time.Millisecond {
		t.Fatalf("expected min at p0, got %s", got)
	}
	if got := tracker.Percentile(100); got != 10*time.Millisecond {
		t.Fatalf("expected max at p100, got %s", got)
	}
	if got := tracker.Percentile(50); got != 5*time.Millisecond {
		t.Fatalf("expected median 5ms, got %s", got)
	}
}

func TestLatencyTrackerEviction(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 5; i++ {
		tracker.Observe(time.Duration(i) * time.Second)
	}

	if got := tracker.Count(); got != 3 {
		t.Fatalf("expected window of 3 samples, got %d", got)
	}
	if got := tracker.Percentile(0); got != 3*time.Second {
		t.Fatalf("expected oldest samples evicted, min is %s", got)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(4)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("expected zero for empty tracker, got %s", got)
	}
}
