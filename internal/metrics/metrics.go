// Package metrics holds the Prometheus collectors for the render pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished render jobs by terminal status.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slideshow_jobs_total",
		Help: "Total number of render jobs finished, by status",
	}, []string{"status"})

	// StageDuration observes how long each pipeline stage takes.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slideshow_stage_duration_seconds",
		Help:    "Duration of each render pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	// SkippedInputsTotal counts undecodable images and audio that were skipped.
	SkippedInputsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slideshow_skipped_inputs_total",
		Help: "Inputs dropped because they could not be decoded, by kind",
	}, []string{"kind"})

	// ClampedTransitionsTotal counts transitions shortened to fit a frame.
	ClampedTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slideshow_clamped_transitions_total",
		Help: "Transitions shortened because an adjacent frame was too short",
	})

	// FramesEncodedTotal counts frames written to ffmpeg.
	FramesEncodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slideshow_frames_encoded_total",
		Help: "Total number of video frames piped to the encoder",
	})

	// ActiveEncodes is the number of encodes holding a pool slot.
	ActiveEncodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slideshow_active_encodes",
		Help: "Number of encodes currently running",
	})

	// QueuedEncodes is the number of encodes waiting for a pool slot.
	QueuedEncodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slideshow_queued_encodes",
		Help: "Number of encodes waiting for a free slot",
	})

	// HTTPRequestDuration observes API latency by method, route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slideshow_http_request_duration_seconds",
		Help:    "Duration of HTTP requests, by route and status code",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Stage labels for StageDuration.
const (
	StageNormalize = "normalize"
	StageCover     = "cover"
	StageAssemble  = "assemble"
	StageAudio     = "audio"
	StageEncode    = "encode"
	StageUpload    = "upload"
)
