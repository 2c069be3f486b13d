// Package metrics samples Go runtime statistics for the server's status
// reports.
package metrics

import "runtime"

// RuntimeSnapshot is a point-in-time reading of the process runtime.
type RuntimeSnapshot struct {
	Goroutines   int    `json:"goroutines"`
	HeapAlloc    uint64 `json:"heap_alloc_bytes"` // bytes in use by the heap
	HeapObjects  uint64 `json:"heap_objects"`
	Sys          uint64 `json:"sys_bytes"` // total bytes obtained from the OS
	NumGC        uint32 `json:"num_gc"`
	PauseTotalNs uint64 `json:"gc_pause_total_ns"`
}

// Sampler reads runtime statistics. The zero value is ready to use.
type Sampler struct{}

// NewSampler creates a Sampler.
func NewSampler() *Sampler { return &Sampler{} }

// Snapshot reads the current statistics. It briefly stops the world.
func (*Sampler) Snapshot() RuntimeSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeSnapshot{
		Goroutines:   runtime.NumGoroutine(),
		HeapAlloc:    m.HeapAlloc,
		HeapObjects:  m.HeapObjects,
		Sys:          m.Sys,
		NumGC:        m.NumGC,
		PauseTotalNs: m.PauseTotalNs,
	}
}

// HeapMiB returns the heap in use in mebibytes.
func (s RuntimeSnapshot) HeapMiB() float64 {
	return float64(s.HeapAlloc) / (1 << 20)
}
