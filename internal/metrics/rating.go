package metrics

import "github.com/prometheus/client_golang/prometheus"

// RatingMetrics counts rating submissions by outcome.
type RatingMetrics struct {
	submitted *prometheus.CounterVec
}

func NewRatingMetrics(reg prometheus.Registerer) *RatingMetrics {
	if reg == nil {
		return &RatingMetrics{}
	}
	submitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratings_submitted_total",
		Help: "Rating submissions by action (created or updated).",
	}, []string{"action"})
	reg.MustRegister(submitted)
	return &RatingMetrics{submitted: submitted}
}

// IncSubmitted records one successful submission.
func (m *RatingMetrics) IncSubmitted(created bool) {
	if m == nil || m.submitted == nil {
		return
	}
	action := "updated"
	if created {
		action = "created"
	}
	m.submitted.WithLabelValues(action).Inc()
}
