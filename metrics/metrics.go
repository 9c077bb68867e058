// Package metrics defines the measurement contract for the gateway and
// ships prometheus and noop recorders. Counter names used by the
// gateway: requests_total, payments_required_total,
// payments_rejected_total, validations_total, upstream_errors_total.
package metrics

import "time"

// Recorder receives gateway events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// NoopRecorder drops all measurements.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
