package metrics

import (
	"math/big"
	"strconv"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// RewardsMetrics tracks era reward computation and settlement.
type RewardsMetrics struct {
	erasComputed   prometheus.Counter
	eraBudget      prometheus.Gauge
	creditedSum    *prometheus.GaugeVec
	roundingDust   *prometheus.GaugeVec
	requests       *prometheus.CounterVec
	payouts        *prometheus.CounterVec
	paidAmount     *prometheus.CounterVec
	poolShortfalls prometheus.Counter
	queueDepth     prometheus.Gauge
}

var (
	rewardsOnce     sync.Once
	rewardsRegistry *RewardsMetrics
)

// Rewards returns the process wide reward collectors, registering them on first use.
func Rewards() *RewardsMetrics {
	rewardsOnce.Do(func() {
		rewardsRegistry = &RewardsMetrics{
			erasComputed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rewards_eras_computed_total",
				Help: "Number of eras whose rewards were credited.",
			}),
			eraBudget: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "rewards_era_budget",
				Help: "Scaled reward budget of the most recently computed era.",
			}),
			creditedSum: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "rewards_credited_sum",
				Help: "Scaled amount credited to pending ledgers per era.",
			}, []string{"era"}),
			roundingDust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "rewards_rounding_dust",
				Help: "Part of the era budget lost to truncation.",
			}, []string{"era"}),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rewards_requests_total",
				Help: "Reward requests by outcome.",
			}, []string{"outcome"}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rewards_payouts_total",
				Help: "Settlement transfers by recipient role and outcome.",
			}, []string{"role", "outcome"}),
			paidAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rewards_paid_amount_total",
				Help: "Scaled amount transferred out of the reward pool by recipient role.",
			}, []string{"role"}),
			poolShortfalls: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rewards_pool_insufficient_total",
				Help: "Transfers skipped because the reward pool could not cover them.",
			}),
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "rewards_claim_queue_depth",
				Help: "Validators waiting for settlement.",
			}),
		}
		prometheus.MustRegister(
			rewardsRegistry.erasComputed,
			rewardsRegistry.eraBudget,
			rewardsRegistry.creditedSum,
			rewardsRegistry.roundingDust,
			rewardsRegistry.requests,
			rewardsRegistry.payouts,
			rewardsRegistry.paidAmount,
			rewardsRegistry.poolShortfalls,
			rewardsRegistry.queueDepth,
		)
	})
	return rewardsRegistry
}

// ObserveEraComputed records the outcome of a distribution pass.
func (m *RewardsMetrics) ObserveEraComputed(era uint32, budget, credited, dust *uint256.Int) {
	if m == nil {
		return
	}
	label := strconv.FormatUint(uint64(era), 10)
	m.erasComputed.Inc()
	m.eraBudget.Set(toFloat(budget))
	m.creditedSum.WithLabelValues(label).Set(toFloat(credited))
	m.roundingDust.WithLabelValues(label).Set(toFloat(dust))
}

// ObserveRequest counts a reward request by outcome.
func (m *RewardsMetrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// ObservePayout counts a settlement transfer attempt.
func (m *RewardsMetrics) ObservePayout(role, outcome string, amount *uint256.Int) {
	if m == nil {
		return
	}
	if role == "" {
		role = "unknown"
	}
	m.payouts.WithLabelValues(role, outcome).Inc()
	switch outcome {
	case "paid":
		m.paidAmount.WithLabelValues(role).Add(toFloat(amount))
	case "insufficient":
		m.poolShortfalls.Inc()
	}
}

// SetQueueDepth records the number of queued validators.
func (m *RewardsMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
