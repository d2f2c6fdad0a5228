// Package jobmetrics instruments ledger maintenance tasks.
package jobmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs. A nil *Metrics
// records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	drifts      *prometheus.CounterVec
	pruned      prometheus.Counter
}

// NewMetrics registers the job collectors. A nil registerer gets a private
// registry, which keeps tests from colliding on the global one.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_jobs_total",
			Help: "Job executions by task type and status.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_job_duration_seconds",
			Help:    "Duration of job executions.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odyssey_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per task type.",
		}, []string{"job"}),
		drifts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_ledger_integrity_drifts_total",
			Help: "Accounts found out of sync by the ledger integrity job.",
		}, []string{"company", "repaired"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_idempotency_keys_pruned_total",
			Help: "Idempotency keys removed by the cleanup job.",
		}),
	}
	registerer.MustRegister(m.runs, m.duration, m.lastSuccess, m.drifts, m.pruned)
	return m
}

// Tracker times a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	} else {
		t.metrics.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddDrifts counts accounts found out of sync during an integrity run.
func (m *Metrics) AddDrifts(companyID int64, drifted, repaired int) {
	if m == nil || drifted <= 0 {
		return
	}
	company := strconv.FormatInt(companyID, 10)
	if open := drifted - repaired; open > 0 {
		m.drifts.WithLabelValues(company, "false").Add(float64(open))
	}
	if repaired > 0 {
		m.drifts.WithLabelValues(company, "true").Add(float64(repaired))
	}
}

// AddPruned counts removed idempotency keys.
func (m *Metrics) AddPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}
