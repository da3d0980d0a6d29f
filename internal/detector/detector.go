// Package detector runs the object detection model on a staged image and
// leaves its results on disk in the YOLOv5 layout:
//
//	<project>/<name>/<image file>              annotated image
//	<project>/<name>/labels/<image stem>.txt    one "class cx cy w h" line per object
//
// No label file is written when nothing was detected.
package detector

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/example/polybot/internal/config"
	"github.com/example/polybot/internal/labels"
	"github.com/example/polybot/internal/prediction"
)

// Job describes one detection run.
type Job struct {
	Source  string
	Project string
	Name    string
}

// OutputDir is the directory results are written to.
func (j Job) OutputDir() string {
	return filepath.Join(j.Project, j.Name)
}

// AnnotatedPath is where the annotated copy of Source is written.
func (j Job) AnnotatedPath() string {
	return filepath.Join(j.OutputDir(), filepath.Base(j.Source))
}

// LabelsPath is where the label lines for Source are written.
func (j Job) LabelsPath() string {
	return filepath.Join(j.OutputDir(), "labels", prediction.Stem(filepath.Base(j.Source))+".txt")
}

// Detector runs the model for a job.
type Detector interface {
	Detect(ctx context.Context, job Job) error
}

// New builds the detector selected by cfg.Kind. The returned close function
// releases model resources and is never nil.
func New(cfg config.Detector, classes labels.ClassTable, logger *zap.Logger) (Detector, func(), error) {
	switch cfg.Kind {
	case "command":
		return NewCommandDetector(cfg, logger), func() {}, nil
	case "onnx":
		d, err := NewONNXDetector(cfg, classes, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported detector: %s", cfg.Kind)
	}
}
