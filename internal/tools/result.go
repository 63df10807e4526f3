// Package tools implements the tool handlers exposed over MCP.
//
// Every handler returns a Result envelope: business failures are data
// inside the envelope, never Go errors, so callers always get a uniform
// shape with timing and memory metrics attached. Only infrastructure
// problems (a nil dependency, a canceled context) surface as Go errors
// from constructors.
package tools

import (
	"runtime"
	"time"
)

// Metrics carries per-operation measurements. ProcessingTime is wall
// clock from operation entry; MemoryUsage is a point-in-time heap sample
// at completion, not a delta.
type Metrics struct {
	ProcessingTimeMS int64  `json:"processingTime"`
	MemoryUsageBytes uint64 `json:"memoryUsage"`
}

// Result is the uniform envelope for every tool outcome.
// Exactly one of Data and Error is meaningful, selected by Success.
type Result struct {
	Success bool    `json:"success"`
	Data    any     `json:"data,omitempty"`
	Error   string  `json:"error,omitempty"`
	Metrics Metrics `json:"metrics"`
}

// Success wraps a completed operation's payload.
func Success(start time.Time, data any) Result {
	return Result{Success: true, Data: data, Metrics: metricsSince(start)}
}

// Failure wraps a failed operation. Metrics are populated even on failure.
func Failure(start time.Time, err error) Result {
	return Result{Success: false, Error: err.Error(), Metrics: metricsSince(start)}
}

func metricsSince(start time.Time) Metrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Metrics{
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		MemoryUsageBytes: mem.HeapAlloc,
	}
}
