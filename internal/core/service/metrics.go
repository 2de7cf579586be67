package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer, which records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
	payment  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_requests_total",
			Help: "Booking attempts by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_duration_seconds",
			Help:    "End to end booking latency, including lock waits and payment.",
			Buckets: prometheus.DefBuckets,
		}),
		payment: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_charge_duration_seconds",
			Help:    "Time spent in the payment gate while item class locks are held.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.payment)
	return m
}

func (m *Metrics) observeBooking(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) observePayment(d time.Duration) {
	if m == nil {
		return
	}
	m.payment.Observe(d.Seconds())
}
