package session

import (
	"time"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/grez-lucas/webbank/internal/scraper/page"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects session counters. A nil *Metrics records nothing.
type Metrics struct {
	navigations            *prometheus.CounterVec
	classificationFailures *prometheus.CounterVec
	fetchDuration          *prometheus.HistogramVec
	transfers              *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Share the result between
// sessions; registering twice on one registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &Metrics{
		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webbank",
			Name:      "navigations_total",
			Help:      "Completed navigations by classified page kind.",
		}, []string{"bank", "kind"}),
		classificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webbank",
			Name:      "classification_failures_total",
			Help:      "Fetched documents no page rule matched.",
		}, []string{"bank"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webbank",
			Name:      "fetch_duration_seconds",
			Help:      "Round trip time of page fetches, redirects included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"bank"}),
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webbank",
			Name:      "transfers_total",
			Help:      "Transfer attempts by outcome.",
		}, []string{"bank", "outcome"}),
	}
}

func (m *Metrics) navigated(code bank.BankCode, kind page.Kind) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(string(code), kind.String()).Inc()
}

func (m *Metrics) classificationFailed(code bank.BankCode) {
	if m == nil {
		return
	}
	m.classificationFailures.WithLabelValues(string(code)).Inc()
}

func (m *Metrics) observeFetch(code bank.BankCode, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(string(code)).Observe(d.Seconds())
}

// RecordTransfer counts a transfer attempt ending with outcome.
func (m *Metrics) RecordTransfer(code bank.BankCode, outcome string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(string(code), outcome).Inc()
}
