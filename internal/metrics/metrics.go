package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Edit Metrics
	EditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splice_edits_total",
			Help: "Total number of timeline edit operations",
		},
		[]string{"op", "outcome"},
	)

	ClipsOnTimeline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "splice_clips_on_timeline",
			Help: "Number of clips in the edit decision list",
		},
	)

	// Thumbnail Metrics
	ThumbnailBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splice_thumbnail_batches_total",
			Help: "Thumbnail batches by outcome",
		},
		[]string{"outcome"},
	)

	ThumbnailFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splice_thumbnail_frames_total",
			Help: "Thumbnail frames by result",
		},
		[]string{"result"},
	)

	ThumbnailBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "splice_thumbnail_batch_duration_seconds",
			Help:    "Wall time of a thumbnail batch",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	ThumbnailSessionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "splice_thumbnail_sessions_in_flight",
			Help: "Offscreen decode sessions currently open",
		},
	)

	// Playback Metrics
	PlaybackResyncsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "splice_playback_resyncs_total",
			Help: "Forced decode-session seeks after the requested time drifted",
		},
	)

	PlaybackErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splice_playback_errors_total",
			Help: "Decode session errors by recovery result",
		},
		[]string{"result"},
	)
)

// Batch outcomes
const (
	OutcomeCommitted  = "committed"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
)

// Frame results
const (
	FrameCaptured = "captured"
	FrameCached   = "cached"
	FrameFailed   = "failed"
)

// RecordEdit counts an edit operation; err == nil counts as applied
func RecordEdit(op string, err error) {
	outcome := "applied"
	if err != nil {
		outcome = "noop"
	}
	EditsTotal.WithLabelValues(op, outcome).Inc()
}
