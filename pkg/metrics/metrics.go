package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// CartMetrics counts cart engine operations by outcome.
type CartMetrics struct {
	operations *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_operations_total",
		Help:      "Cart operations grouped by operation and result.",
	}, []string{"op", "result"})
	reg.MustRegister(operations)
	return &CartMetrics{operations: operations}
}

// Observe records one operation under result ("ok" or an error code).
func (c *CartMetrics) Observe(op string, result string) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

// RemoteMetrics times outbound calls to the storefront API and the postal lookup.
type RemoteMetrics struct {
	duration *prometheus.HistogramVec
}

// NewRemoteMetrics registers the remote call histogram on the provided registerer.
func NewRemoteMetrics(reg prometheus.Registerer) *RemoteMetrics {
	if reg == nil {
		return &RemoteMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_request_duration_seconds",
		Help:      "Duration of outbound API requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "status"})
	reg.MustRegister(duration)
	return &RemoteMetrics{duration: duration}
}

// ObserveRequest records the duration of a call; status 0 means the transport failed.
func (r *RemoteMetrics) ObserveRequest(endpoint string, status int, duration time.Duration) {
	if r == nil || r.duration == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.duration.WithLabelValues(normalizeLabel(endpoint), label).Observe(duration.Seconds())
}

// JobMetrics records runs of the maintenance scheduler's jobs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of maintenance jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_success_total",
		Help:      "Successful maintenance job runs.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_failure_total",
		Help:      "Failed maintenance job runs.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &JobMetrics{duration: duration, success: success, failure: failure}
}

func (j *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if j == nil || j.duration == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (j *JobMetrics) IncSuccess(job string) {
	if j == nil || j.success == nil {
		return
	}
	j.success.WithLabelValues(normalizeLabel(job)).Inc()
}

func (j *JobMetrics) IncFailure(job string) {
	if j == nil || j.failure == nil {
		return
	}
	j.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
