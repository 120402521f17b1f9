// Package metrics holds the Prometheus collectors for client transfers.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder records transfer metrics. A nil *Recorder records nothing.
type Recorder struct {
	requests *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New builds a Recorder and registers its collectors on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spiral",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Total client requests by operation and outcome.",
			},
			[]string{"op", "status"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spiral",
				Subsystem: "client",
				Name:      "bytes_total",
				Help:      "Body bytes transferred by direction.",
			},
			[]string{"direction"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "spiral",
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Client request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	for _, c := range []prometheus.Collector{r.requests, r.bytes, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// Default returns a Recorder registered on the global Prometheus registry.
func Default() *Recorder {
	defaultOnce.Do(func() {
		r, err := New(prometheus.DefaultRegisterer)
		if err != nil {
			panic(err)
		}
		defaultRecorder = r
	})
	return defaultRecorder
}

// Direction labels for ObserveBytes.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// ObserveRequest counts one request and its duration.
func (r *Recorder) ObserveRequest(op string, err error, d time.Duration) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.requests.WithLabelValues(op, status).Inc()
	r.duration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveBytes adds n transferred bytes in the given direction.
func (r *Recorder) ObserveBytes(direction string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.bytes.WithLabelValues(direction).Add(float64(n))
}
