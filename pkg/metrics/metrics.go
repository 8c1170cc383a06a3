// Package metrics exposes the call-level Prometheus metrics this
// subsystem emits. Packet-level RTP/RTCP metrics are a backend
// concern (spec.md §1 non-goals) and have no place here.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the counters/gauges a signalling state machine
// reports against. The zero value is unusable; build one with
// NewMetrics and register it with a prometheus.Registerer (or leave
// unregistered for tests).
type Metrics struct {
	CallsEstablished prometheus.Counter
	CallsFailed      *prometheus.CounterVec // label: reason
	ICERetries       prometheus.Counter
	ActiveCalls      prometheus.Gauge
	FileBytesSent    prometheus.Counter
	FileBytesRecv    prometheus.Counter
}

// NewMetrics builds a fresh Metrics set under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		CallsEstablished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "calls_established_total",
			Help: "Calls that reached the Established state.",
		}),
		CallsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "calls_failed_total",
			Help: "Calls that ended before Established, by reason.",
		}, []string{"reason"}),
		ICERetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ice_retries_total",
			Help: "Outbound INVITEs retried under the alternative ICE version.",
		}),
		ActiveCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_calls",
			Help: "Calls currently tracked in the registry.",
		}),
		FileBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "file_transfer_bytes_sent_total",
			Help: "File bytes written to data-stream chunk frames.",
		}),
		FileBytesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "file_transfer_bytes_received_total",
			Help: "File bytes read from data-stream chunk frames.",
		}),
	}
}

// MustRegister registers every collector with r, panicking on
// collision (mirrors the teacher's own MustRegister-at-startup idiom).
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(m.CallsEstablished, m.CallsFailed, m.ICERetries, m.ActiveCalls, m.FileBytesSent, m.FileBytesRecv)
}
