// Package metrics declares the Prometheus collectors shared by intake,
// symbolication, and the broadcaster. Collectors register against the
// default registry; the HTTP server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_events_captured_total",
			Help: "Capture attempts by outcome.",
		},
		[]string{"outcome"},
	)

	IssuesOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_issues_opened_total",
			Help: "New issues created from previously unseen fingerprints.",
		},
	)

	IssueRegressions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_issue_regressions_total",
			Help: "Resolved issues reopened by a recurring event.",
		},
	)

	FramesSymbolicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_frames_symbolicated_total",
			Help: "Stack frames processed by symbolication, by result.",
		},
		[]string{"result"},
	)

	MapParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_map_parse_failures_total",
			Help: "Uploaded source maps rejected as unparseable.",
		},
	)

	ArtifactUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_artifact_uploads_total",
			Help: "Artifact uploads by outcome.",
		},
		[]string{"outcome"},
	)

	BroadcastPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_broadcast_published_total",
			Help: "Envelopes delivered to subscriber buffers.",
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_broadcast_dropped_total",
			Help: "Subscribers disconnected because their buffer overflowed.",
		},
	)

	BroadcastSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faultline_broadcast_subscribers",
			Help: "Currently connected broadcast subscribers.",
		},
	)
)

// Capture outcomes.
const (
	OutcomeOK                = "ok"
	OutcomeValidationError   = "validation_error"
	OutcomeConflictExhausted = "conflict_exhausted"
	OutcomeStorageError      = "storage_error"
)

// Symbolication results.
const (
	FrameResolved = "resolved"
	FrameRaw      = "raw"
)

// Artifact upload outcomes.
const (
	UploadCreated      = "created"
	UploadDeduplicated = "deduplicated"
)
