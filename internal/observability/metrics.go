package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	apiRequestsTotal    *prometheus.CounterVec
	apiLatencySeconds   *prometheus.HistogramVec
	apiErrorsTotal      *prometheus.CounterVec
	submissionsTotal    *prometheus.CounterVec
	duplicateSubmits    *prometheus.CounterVec
	gradingsTotal       *prometheus.CounterVec
	attemptsStarted     prometheus.Counter
	attemptsForceClosed prometheus.Counter
	documentUploads     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the API and the quiz lifecycle.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_submissions_recorded_total",
			Help: "Quiz submissions recorded, by quiz kind and trigger.",
		}, []string{"kind", "trigger"})

		duplicateSubmits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_submissions_duplicate_total",
			Help: "Submit calls that resolved to an already recorded submission.",
		}, []string{"kind"})

		gradingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_gradings_total",
			Help: "Manual grading operations, by whether they completed the score.",
		}, []string{"outcome"})

		attemptsStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Quiz attempts started.",
		})

		attemptsForceClosed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_forced_total",
			Help: "Attempts force-submitted because their time limit ran out.",
		})

		documentUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_document_uploads_total",
			Help: "Quiz document and answer file uploads, by purpose and outcome.",
		}, []string{"purpose", "outcome"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			submissionsTotal,
			duplicateSubmits,
			gradingsTotal,
			attemptsStarted,
			attemptsForceClosed,
			documentUploads,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SubmissionsRecorded exposes the recorded submissions counter.
func SubmissionsRecorded() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// DuplicateSubmissions exposes the duplicate submit counter.
func DuplicateSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return duplicateSubmits
}

// Gradings exposes the manual grading counter.
func Gradings() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingsTotal
}

// AttemptsStarted exposes the started attempts counter.
func AttemptsStarted() prometheus.Counter {
	RegisterMetrics()
	return attemptsStarted
}

// AttemptsForced exposes the forced submission counter.
func AttemptsForced() prometheus.Counter {
	RegisterMetrics()
	return attemptsForceClosed
}

// DocumentUploads exposes the upload counter.
func DocumentUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return documentUploads
}
