package common

import (
	"fmt"
	"runtime"
)

// MemoryStats is a small snapshot of runtime memory usage.
type MemoryStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	Goroutines      int    `json:"goroutines"`
}

// GetMemoryStats reads the current runtime statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		Goroutines:      runtime.NumGoroutine(),
	}
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("alloc: %d KB, sys: %d KB, gc: %d, goroutines: %d",
		m.AllocBytes/1024, m.SysBytes/1024, m.NumGC, m.Goroutines)
}
