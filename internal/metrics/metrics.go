// Package metrics exposes prometheus collectors for both services.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// MessagesTotal counts inbound chat messages by how their handling ended.
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "bot",
		Name:      "messages_total",
		Help:      "Inbound chat messages handled, labeled by outcome.",
	}, []string{"outcome"})

	// DuplicateUpdatesTotal counts webhook deliveries dropped as already seen.
	DuplicateUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "bot",
		Name:      "duplicate_updates_total",
		Help:      "Webhook updates ignored because their update id was already handled.",
	})

	// InferenceDurationSeconds measures the bot's blocking call to the inference service.
	InferenceDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "polybot",
		Subsystem: "bot",
		Name:      "inference_duration_seconds",
		Help:      "Duration of inference requests issued by the bot, labeled by outcome.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"outcome"})

	// PredictionsTotal counts /predict requests by result.
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "predictor",
		Name:      "predictions_total",
		Help:      "Prediction requests served, labeled by result.",
	}, []string{"result"})

	// DetectedObjectsTotal counts detected objects by class.
	DetectedObjectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "predictor",
		Name:      "detected_objects_total",
		Help:      "Objects detected across all predictions, labeled by class.",
	}, []string{"class"})

	// BestEffortFailuresTotal counts swallowed failures of non-fatal side effects.
	BestEffortFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "predictor",
		Name:      "best_effort_failures_total",
		Help:      "Failures of best-effort steps (summary persistence, event publishing).",
	}, []string{"step"})
)

// Register adds all collectors to the default registry. Safe to call more
// than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			MessagesTotal,
			DuplicateUpdatesTotal,
			InferenceDurationSeconds,
			PredictionsTotal,
			DetectedObjectsTotal,
			BestEffortFailuresTotal,
		)
	})
}
