package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	accrualCounter        *prometheus.CounterVec
	reversalCounter       *prometheus.CounterVec
	projectionDrift       *prometheus.CounterVec
	cancellationCounter   *prometheus.CounterVec
	idempotencyCounter    *prometheus.CounterVec
	mailCounter           *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
	rateLimitCounter      *prometheus.CounterVec
	panicCounter          prometheus.Counter
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		accrualCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_accrual_postings_total",
			Help: "Accrual credit attempts by subtype and outcome",
		}, []string{"subtype", "outcome"})

		reversalCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_reversal_postings_total",
			Help: "Reversal debit attempts by subtype and outcome",
		}, []string{"subtype", "outcome"})

		projectionDrift = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_projection_drift_total",
			Help: "Accounts whose cached payout status diverged from the ledger",
		}, []string{"account_type"})

		cancellationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_cancellation_events_total",
			Help: "Guest cancellation workflow outcomes",
		}, []string{"step", "outcome"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		mailCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_deliveries_total",
			Help: "Outbound mail enqueue and delivery outcomes",
		}, []string{"stage", "result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		rateLimitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		}, []string{"limiter"})

		panicCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panics_recovered_total",
			Help: "Handler panics converted into 500 responses",
		})

		prometheus.MustRegister(
			httpDurationHistogram,
			accrualCounter,
			reversalCounter,
			projectionDrift,
			cancellationCounter,
			idempotencyCounter,
			mailCounter,
			workerRunCounter,
			rateLimitCounter,
			panicCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementAccrual(subtype, outcome string) {
	if accrualCounter == nil {
		return
	}
	accrualCounter.WithLabelValues(subtype, outcome).Inc()
}

func IncrementReversal(subtype, outcome string) {
	if reversalCounter == nil {
		return
	}
	reversalCounter.WithLabelValues(subtype, outcome).Inc()
}

func IncrementProjectionDrift(accountType string) {
	if projectionDrift == nil {
		return
	}
	projectionDrift.WithLabelValues(accountType).Inc()
}

func IncrementCancellation(step, outcome string) {
	if cancellationCounter == nil {
		return
	}
	cancellationCounter.WithLabelValues(step, outcome).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementMail(stage, result string) {
	if mailCounter == nil {
		return
	}
	mailCounter.WithLabelValues(stage, result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func IncrementRateLimited(limiter string) {
	if rateLimitCounter == nil {
		return
	}
	rateLimitCounter.WithLabelValues(limiter).Inc()
}

func IncrementPanic() {
	if panicCounter == nil {
		return
	}
	panicCounter.Inc()
}
