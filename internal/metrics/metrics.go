// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package metrics provides Prometheus instrumentation for ceremony outcomes,
// scan uploads, and the HTTP surface.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all tailorfit metrics
	Namespace = "tailorfit"

	// Label names
	LabelCeremony   = "ceremony"
	LabelStep       = "step"
	LabelResult     = "result"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"

	// Ceremony names
	CeremonyRegistration = "registration"
	CeremonyLogin        = "login"

	// Step names
	StepBegin  = "begin"
	StepFinish = "finish"

	// Result values
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// CeremoniesTotal tracks ceremony steps by ceremony, step, and result.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of WebAuthn ceremony steps by ceremony, step, and result",
		},
		[]string{LabelCeremony, LabelStep, LabelResult},
	)

	// CeremonyDuration tracks the server-side duration of ceremony steps in
	// seconds. Buckets are tuned for CBOR parsing plus one or two store
	// round trips.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of WebAuthn ceremony steps in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelCeremony, LabelStep},
	)

	// CloneWarningsTotal counts authentications rejected for a stalled or
	// regressed signature counter.
	CloneWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "clone_warnings_total",
			Help:      "Total number of authentications rejected as possible cloned authenticators",
		},
	)

	// ScansTotal tracks scan uploads by result.
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scans_total",
			Help:      "Total number of scan uploads by result",
		},
		[]string{LabelResult},
	)

	// ScanBytesTotal tracks the cumulative size of accepted scan uploads.
	ScanBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scan_bytes_total",
			Help:      "Cumulative bytes of accepted scan uploads",
		},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method,
	// route, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	// HTTPRequestsInFlight tracks the number of requests currently being
	// served.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordCeremony records one ceremony step with its duration and result.
//
// Parameters:
//   - ceremony: CeremonyRegistration or CeremonyLogin
//   - step: StepBegin or StepFinish
//   - result: ResultSuccess or ResultFailure
//   - duration: the step duration in seconds
func RecordCeremony(ceremony, step, result string, duration float64) {
	if !enabled.Load() {
		return
	}
	CeremoniesTotal.WithLabelValues(ceremony, step, result).Inc()
	CeremonyDuration.WithLabelValues(ceremony, step).Observe(duration)
}

// RecordCloneWarning records an authentication rejected for a non-advancing
// signature counter.
func RecordCloneWarning() {
	if !enabled.Load() {
		return
	}
	CloneWarningsTotal.Inc()
}

// RecordScan records a scan upload attempt. Accepted uploads also add their
// size to the byte counter.
func RecordScan(result string, bytes int64) {
	if !enabled.Load() {
		return
	}
	ScansTotal.WithLabelValues(result).Inc()
	if result == ResultSuccess && bytes > 0 {
		ScanBytesTotal.Add(float64(bytes))
	}
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, route, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
