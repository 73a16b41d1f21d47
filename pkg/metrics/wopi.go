package metrics

import "time"

// WOPIMetrics provides observability for WOPI protocol requests.
//
// This interface is optional - if not provided to the WOPI adapter, a no-op
// implementation is used with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewWOPIMetrics()
//	handler := wopi.NewHandler(deps, m)
//
//	// Without metrics (no-op)
//	handler := wopi.NewHandler(deps, nil)
type WOPIMetrics interface {
	// RecordRequest records a completed WOPI request.
	//
	// Parameters:
	//   - operation: WOPI operation name (e.g., "CheckFileInfo", "LOCK")
	//   - status: HTTP status code sent to the client
	//   - duration: Time taken to process the request
	RecordRequest(operation string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart(operation string)

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd(operation string)

	// RecordBytesTransferred records file content read or written.
	//
	// Parameters:
	//   - direction: "read" or "write"
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)
}

type noopWOPIMetrics struct{}

// NewNoopWOPIMetrics returns a WOPIMetrics that discards everything.
func NewNoopWOPIMetrics() WOPIMetrics {
	return noopWOPIMetrics{}
}

func (noopWOPIMetrics) RecordRequest(string, int, time.Duration) {}
func (noopWOPIMetrics) RecordRequestStart(string)                {}
func (noopWOPIMetrics) RecordRequestEnd(string)                  {}
func (noopWOPIMetrics) RecordBytesTransferred(string, int64)     {}
