package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "client",
			Name:      "frames_total",
			Help:      "Frames received by outcome.",
		},
		[]string{"outcome"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "client",
			Name:      "errors_total",
			Help:      "Pipeline errors by diagnostic code.",
		},
		[]string{"code"},
	)
	primitivesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "client",
			Name:      "primitives_skipped_total",
			Help:      "Primitives left out of draw lists.",
		},
		[]string{"kind", "code"},
	)
	atlasBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scenecast",
			Subsystem: "client",
			Name:      "atlas_bytes",
			Help:      "Bytes of atlas pixel data currently bound.",
		},
	)
	frameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scenecast",
			Subsystem: "client",
			Name:      "frame_duration_seconds",
			Help:      "Decode, assemble and render time per frame.",
			Buckets:   []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066, 0.1},
		},
	)
	inputsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "client",
			Name:      "inputs_total",
			Help:      "Input messages sent by variant.",
		},
		[]string{"kind"},
	)
	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "client",
			Name:      "reconnects_total",
			Help:      "Connection attempts after the first.",
		},
	)

	hostClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scenecast",
			Subsystem: "host",
			Name:      "clients",
			Help:      "Connected viewers.",
		},
	)
	hostFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "host",
			Name:      "frames_published_total",
			Help:      "Frames published to viewers.",
		},
	)
	hostBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "host",
			Name:      "bytes_sent_total",
			Help:      "Encoded frame bytes queued to viewers.",
		},
	)
	hostInputs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "host",
			Name:      "inputs_total",
			Help:      "Input messages received by variant and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	hostDisconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "host",
			Name:      "disconnects_total",
			Help:      "Viewer disconnects by reason.",
		},
		[]string{"reason"},
	)

	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "recording",
			Name:      "uploads_total",
			Help:      "Recording file uploads by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenecast",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scenecast",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesReceived, decodeErrors, primitivesSkipped, atlasBytes, frameDuration, inputsSent, reconnects,
			hostClients, hostFrames, hostBytes, hostInputs, hostDisconnects,
			uploads,
			httpRequests, httpDuration,
		)
	})
}

// Frame outcomes.
const (
	OutcomeRendered = "rendered"
	OutcomeStale    = "stale"
	OutcomeDecode   = "decode_error"
	OutcomeRender   = "render_error"
)

func RecordFrame(outcome string, d time.Duration) {
	RegisterMetrics()
	framesReceived.WithLabelValues(outcome).Inc()
	if outcome == OutcomeRendered {
		frameDuration.Observe(d.Seconds())
	}
}

func RecordError(code string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(code).Inc()
}

func RecordSkip(kind, code string) {
	RegisterMetrics()
	primitivesSkipped.WithLabelValues(kind, code).Inc()
}

func SetAtlasBytes(n int64) {
	RegisterMetrics()
	atlasBytes.Set(float64(n))
}

func RecordInputSent(kind string) {
	RegisterMetrics()
	inputsSent.WithLabelValues(kind).Inc()
}

func RecordReconnect() {
	RegisterMetrics()
	reconnects.Inc()
}

func SetHostClients(n int) {
	RegisterMetrics()
	hostClients.Set(float64(n))
}

func RecordHostFrame(bytes int) {
	RegisterMetrics()
	hostFrames.Inc()
	hostBytes.Add(float64(bytes))
}

func RecordHostInput(kind string, accepted bool) {
	RegisterMetrics()
	outcome := "accepted"
	if !accepted {
		outcome = "dropped"
	}
	hostInputs.WithLabelValues(kind, outcome).Inc()
}

func RecordHostDisconnect(reason string) {
	RegisterMetrics()
	hostDisconnects.WithLabelValues(reason).Inc()
}

// RecordUpload counts a recording upload; outcome is "ok", "failed" or
// "dropped".
func RecordUpload(outcome string) {
	RegisterMetrics()
	uploads.WithLabelValues(outcome).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
