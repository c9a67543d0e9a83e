package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Decision outcomes recorded by ReferralMetrics.
const (
	OutcomePending           = "pending"
	OutcomeDuplicate         = "duplicate"
	OutcomeCooldown          = "cooldown"
	OutcomeInsufficientTrust = "insufficient_trust"
	OutcomeSkipped           = "skipped"
)

// ReferralMetrics tracks reward decisions and settlement results.
type ReferralMetrics struct {
	decisions      *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	creditedPoints *prometheus.CounterVec
}

// NewReferralMetrics registers the referral metrics on the provided registerer.
func NewReferralMetrics(reg prometheus.Registerer) *ReferralMetrics {
	if reg == nil {
		return &ReferralMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_decisions_total",
		Help: "Signup reward decisions by outcome.",
	}, []string{"outcome"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_settlements_total",
		Help: "Pending rewards evaluated by the settlement sweep.",
	}, []string{"result"})
	credited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_points_credited_total",
		Help: "Points credited to referrers.",
	}, []string{"source"})
	reg.MustRegister(decisions, settlements, credited)
	return &ReferralMetrics{
		decisions:      decisions,
		settlements:    settlements,
		creditedPoints: credited,
	}
}

func (m *ReferralMetrics) IncDecision(outcome string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveSettlement adds one sweep's credited/voided/failed counts.
func (m *ReferralMetrics) ObserveSettlement(credited, voided, failed int) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues("credited").Add(float64(credited))
	m.settlements.WithLabelValues("voided").Add(float64(voided))
	m.settlements.WithLabelValues("failed").Add(float64(failed))
}

// AddCreditedPoints records points granted by settlement or claim.
func (m *ReferralMetrics) AddCreditedPoints(source string, points int64) {
	if m == nil || m.creditedPoints == nil || points <= 0 {
		return
	}
	m.creditedPoints.WithLabelValues(normalizeLabel(source)).Add(float64(points))
}
