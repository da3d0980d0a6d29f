// Package predictor implements the inference service behind POST /predict.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/polybot/internal/config"
	"github.com/example/polybot/internal/detector"
	"github.com/example/polybot/internal/events"
	"github.com/example/polybot/internal/labels"
	"github.com/example/polybot/internal/logging"
	"github.com/example/polybot/internal/metrics"
	"github.com/example/polybot/internal/objectstore"
	"github.com/example/polybot/internal/prediction"
	"github.com/example/polybot/internal/summarystore"
)

// ErrPredictionNotFound is returned when the detector produced no label file
// for the image.
var ErrPredictionNotFound = errors.New("prediction result not found")

// Service downloads an image, runs the detector on it and reports the
// detected objects.
type Service struct {
	store     objectstore.Store
	detector  detector.Detector
	classes   labels.ClassTable
	summaries summarystore.Store
	publisher events.Publisher
	workDir   string
	runsDir   string
	logger    *zap.Logger
}

// NewService constructs the prediction service. summaries and publisher may
// be nil, in which case persistence and events are skipped.
func NewService(store objectstore.Store, det detector.Detector, classes labels.ClassTable, summaries summarystore.Store, publisher events.Publisher, cfg *config.Predictor, logger *zap.Logger) *Service {
	if summaries == nil {
		summaries = summarystore.NopStore{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:     store,
		detector:  det,
		classes:   classes,
		summaries: summaries,
		publisher: publisher,
		workDir:   cfg.WorkDir,
		runsDir:   cfg.RunsDir,
		logger:    logger.Named("predictor_service"),
	}
}

// Predict runs object detection on the image stored under imgName.
func (s *Service) Predict(ctx context.Context, imgName string) (*prediction.Summary, error) {
	predictionID := uuid.NewString()
	opLogger := logging.WithOperation(s.logger, "predictor.predict", predictionID).With(zap.String("image_key", imgName))
	opLogger.Info("prediction started")

	summary, err := s.predict(ctx, predictionID, imgName, opLogger)
	if err != nil {
		result := "error"
		if errors.Is(err, ErrPredictionNotFound) {
			result = "not_found"
		}
		metrics.PredictionsTotal.WithLabelValues(result).Inc()
		opLogger.Error("prediction failed", zap.Error(err))
		return nil, err
	}
	metrics.PredictionsTotal.WithLabelValues("success").Inc()
	for _, record := range summary.Labels {
		metrics.DetectedObjectsTotal.WithLabelValues(record.Class).Inc()
	}

	s.persist(ctx, opLogger, summary)
	s.publish(ctx, opLogger, summary)

	opLogger.Info("prediction done", zap.Int("objects", len(summary.Labels)))
	return summary, nil
}

func (s *Service) predict(ctx context.Context, predictionID, imgName string, opLogger *zap.Logger) (*prediction.Summary, error) {
	base := path.Base(imgName)
	originalPath := filepath.Join(s.workDir, "predictions", base)

	data, err := s.store.Get(ctx, imgName)
	if err != nil {
		return nil, logging.NewOperationError("predictor.download_image", predictionID, err)
	}
	if err := os.MkdirAll(filepath.Dir(originalPath), 0o755); err != nil {
		return nil, logging.NewOperationError("predictor.stage_image", predictionID, err)
	}
	if err := os.WriteFile(originalPath, data, 0o644); err != nil {
		return nil, logging.NewOperationError("predictor.stage_image", predictionID, err)
	}
	opLogger.Info("image downloaded", zap.String("path", originalPath))

	job := detector.Job{Source: originalPath, Project: s.runsDir, Name: predictionID}
	if err := s.detector.Detect(ctx, job); err != nil {
		return nil, logging.NewOperationError("predictor.detect", predictionID, err)
	}
	opLogger.Info("detection completed")

	predictedPath := job.AnnotatedPath()
	annotated, err := os.ReadFile(predictedPath)
	if err != nil {
		return nil, logging.NewOperationError("predictor.read_annotated", predictionID, err)
	}
	if err := s.store.Put(ctx, prediction.PredictedKey(imgName), annotated); err != nil {
		return nil, logging.NewOperationError("predictor.upload_annotated", predictionID, err)
	}

	labelsPath := job.LabelsPath()
	if _, err := os.Stat(labelsPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("prediction: %s/%s. %w", predictionID, originalPath, ErrPredictionNotFound)
	}
	records, err := labels.ParseFile(labelsPath, s.classes)
	if err != nil {
		return nil, logging.NewOperationError("predictor.parse_labels", predictionID, err)
	}

	return &prediction.Summary{
		PredictionID:     predictionID,
		OriginalImgPath:  originalPath,
		PredictedImgPath: predictedPath,
		Labels:           records,
		Time:             float64(time.Now().UnixNano()) / float64(time.Second),
	}, nil
}

func (s *Service) persist(ctx context.Context, opLogger *zap.Logger, summary *prediction.Summary) {
	id, err := s.summaries.Insert(ctx, summary)
	if err != nil {
		metrics.BestEffortFailuresTotal.WithLabelValues("persist").Inc()
		opLogger.Warn("failed to persist prediction summary", zap.Error(err))
		return
	}
	if id != "" {
		summary.ID = id
	}
}

func (s *Service) publish(ctx context.Context, opLogger *zap.Logger, summary *prediction.Summary) {
	if err := s.publisher.PublishPrediction(ctx, summary); err != nil {
		metrics.BestEffortFailuresTotal.WithLabelValues("publish").Inc()
		opLogger.Warn("failed to publish prediction event", zap.Error(err))
	}
}
