package observability

import "github.com/prometheus/client_golang/prometheus"

func ledgerCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_postings_total",
		Help: "Posting engine outcomes: posted, draft, replayed or the rejection kind.",
	}, []string{"outcome"})
	voids := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_voids_total",
		Help: "Void engine outcomes: voided or the rejection kind.",
	}, []string{"outcome"})
	return postings, voids
}

// ObservePosting counts one posting engine outcome.
func (m *Metrics) ObservePosting(outcome string) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(outcome).Inc()
}

// ObserveVoid counts one void engine outcome.
func (m *Metrics) ObserveVoid(outcome string) {
	if m == nil {
		return
	}
	m.voids.WithLabelValues(outcome).Inc()
}
