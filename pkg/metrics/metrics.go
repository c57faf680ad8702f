// Copyright (c) 2025 Web3Authn Labs
//
// This file is part of go-vrf-sdk.
//
// go-vrf-sdk is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@web3authn.dev for commercial licensing options.

// Package metrics provides Prometheus instrumentation: relay operation
// counters, latency histograms, key store gauges, and SDK login-path
// counters.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all VRF SDK metrics.
	Namespace = "vrfsdk"

	// Label names
	LabelOperation  = "operation"
	LabelStatus     = "status"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"
	LabelPath       = "path"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpApplyServerLock  = "apply_server_lock"
	OpRemoveServerLock = "remove_server_lock"
	OpRotateServerKey  = "rotate_server_key"
	OpHealthCheck      = "health_check"
	OpSilentLogin      = "silent_login"
	OpCeremonyLogin    = "ceremony_login"
)

var (
	// OperationsTotal counts relay operations by type and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of relay operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks relay operation latency. Buckets cover the
	// range of a 2048-bit modular exponentiation up to slow hosts.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of relay operations in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{LabelOperation},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatusCode},
	)

	// HTTPRequestDuration tracks HTTP request latency by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// ServerKeysActive gauges the number of server keys able to remove
	// locks, including retired ones kept for old records.
	ServerKeysActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_keys_active",
			Help:      "Number of server lock keys currently held",
		},
	)
)

// enabled gates metric recording; on by default.
var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

// Enable turns metric recording on.
func Enable() { enabled.Store(true) }

// Disable turns metric recording off. Registered collectors remain but stop
// receiving samples.
func Disable() { enabled.Store(false) }

// IsEnabled reports whether metric recording is on.
func IsEnabled() bool { return enabled.Load() }

// RecordOperation increments the operation counter.
func RecordOperation(op string, err error) {
	if !IsEnabled() {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	OperationsTotal.WithLabelValues(op, status).Inc()
}

// TimeOperation records the duration of an operation started at start and
// its outcome.
func TimeOperation(op string, start time.Time, err error) {
	if !IsEnabled() {
		return
	}
	RecordOperation(op, err)
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetServerKeyCount updates the server key gauge.
func SetServerKeyCount(n int) {
	if !IsEnabled() {
		return
	}
	ServerKeysActive.Set(float64(n))
}
