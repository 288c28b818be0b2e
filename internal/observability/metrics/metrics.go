package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for qualification conversations.
type ConversationMetrics struct {
	turnsTotal       *prometheus.CounterVec
	reasonerFailures prometheus.Counter
	recorderFailures prometheus.Counter
	outcomesTotal    *prometheus.CounterVec
	turnLatency      prometheus.Histogram
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartcaller",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed conversation turns",
		}, []string{"state", "status"}),
		reasonerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartcaller",
			Subsystem: "conversation",
			Name:      "reasoner_failures_total",
			Help:      "Total reasoner calls that fell back to the canned utterance",
		}),
		recorderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartcaller",
			Subsystem: "conversation",
			Name:      "recorder_failures_total",
			Help:      "Total best-effort snapshot saves that failed",
		}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartcaller",
			Subsystem: "conversation",
			Name:      "outcomes_total",
			Help:      "Total terminal conversation outcomes",
		}, []string{"qualified", "meeting_accepted"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smartcaller",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full turn including the reasoner call",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.reasonerFailures, m.recorderFailures, m.outcomesTotal, m.turnLatency)
	return m
}

func (m *ConversationMetrics) ObserveTurn(state, status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state, status).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *ConversationMetrics) ObserveReasonerFailure() {
	if m == nil {
		return
	}
	m.reasonerFailures.Inc()
}

func (m *ConversationMetrics) ObserveRecorderFailure() {
	if m == nil {
		return
	}
	m.recorderFailures.Inc()
}

func (m *ConversationMetrics) ObserveOutcome(qualified, meetingAccepted bool) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(boolLabel(qualified), boolLabel(meetingAccepted)).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
