// Package metrics exposes Prometheus counters for domain events.  A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Signups             prometheus.Counter
	TokensIssued        prometheus.Counter
	TokenRejections     *prometheus.CounterVec
	PolicyDenials       *prometheus.CounterVec
	ReviewsCreated      prometheus.Counter
	NotificationsFailed prometheus.Counter
}

// New registers every counter with reg.  Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Signups: f.NewCounter(prometheus.CounterOpts{
			Name: "reviews_signups_total",
			Help: "Total number of signups, including re-registrations",
		}),
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "reviews_tokens_issued_total",
			Help: "Total number of access tokens issued",
		}),
		TokenRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reviews_token_rejections_total",
			Help: "Rejected code exchanges and bearer tokens by reason",
		}, []string{"reason"}),
		PolicyDenials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reviews_policy_denials_total",
			Help: "Actions denied by the access policy",
		}, []string{"resource", "action"}),
		ReviewsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "reviews_reviews_created_total",
			Help: "Total number of reviews created",
		}),
		NotificationsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "reviews_notifications_failed_total",
			Help: "Confirmation code deliveries that failed",
		}),
	}
}

func (m *Metrics) IncrementSignups() {
	if m != nil {
		m.Signups.Inc()
	}
}

func (m *Metrics) IncrementTokensIssued() {
	if m != nil {
		m.TokensIssued.Inc()
	}
}

// IncrementTokenRejections records a rejected exchange or bearer token.
// reason is a short fixed label such as "invalid_code".
func (m *Metrics) IncrementTokenRejections(reason string) {
	if m != nil {
		m.TokenRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementPolicyDenials(resource, action string) {
	if m != nil {
		m.PolicyDenials.WithLabelValues(resource, action).Inc()
	}
}

func (m *Metrics) IncrementReviewsCreated() {
	if m != nil {
		m.ReviewsCreated.Inc()
	}
}

func (m *Metrics) IncrementNotificationsFailed() {
	if m != nil {
		m.NotificationsFailed.Inc()
	}
}
