package metrics

import (
	"runtime"
	"testing"
)

func TestSampler_Snapshot(t *testing.T) {
	s := NewSampler()
	snap := s.Snapshot()
	if snap.HeapAlloc == 0 || snap.Sys == 0 {
		t.Errorf("expected non-zero heap and sys, got %+v", snap)
	}
	if snap.Goroutines < 1 {
		t.Errorf("Goroutines = %d", snap.Goroutines)
	}
	if snap.Sys < snap.HeapAlloc {
		t.Errorf("Sys (%d) should cover HeapAlloc (%d)", snap.Sys, snap.HeapAlloc)
	}
}

func TestSampler_CountsGC(t *testing.T) {
	var s Sampler
	before := s.Snapshot().NumGC
	runtime.GC()
	if after := s.Snapshot().NumGC; after <= before {
		t.Errorf("NumGC did not advance: %d -> %d", before, after)
	}
}

func TestRuntimeSnapshot_HeapMiB(t *testing.T) {
	if got := (RuntimeSnapshot{HeapAlloc: 3 << 20}).HeapMiB(); got != 3 {
		t.Errorf("HeapMiB = %v, want 3", got)
	}
}
