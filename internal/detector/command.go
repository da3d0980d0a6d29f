package detector

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/example/polybot/internal/config"
	"github.com/example/polybot/internal/logging"
)

const maxOutputTail = 2048

// CommandDetector runs the YOLOv5 detect script as a child process.
type CommandDetector struct {
	python  string
	script  string
	weights string
	data    string
	logger  *zap.Logger
}

// NewCommandDetector builds a detector from configuration.
func NewCommandDetector(cfg config.Detector, logger *zap.Logger) *CommandDetector {
	return &CommandDetector{
		python:  cfg.Python,
		script:  cfg.Script,
		weights: cfg.Weights,
		data:    cfg.Data,
		logger:  logger.Named("command_detector"),
	}
}

// Args returns the command line used for job.
func (d *CommandDetector) Args(job Job) []string {
	return []string{
		d.script,
		"--weights", d.weights,
		"--data", d.data,
		"--source", job.Source,
		"--project", job.Project,
		"--name", job.Name,
		"--save-txt",
		"--exist-ok",
	}
}

// Detect runs the script and waits for it to exit.
func (d *CommandDetector) Detect(ctx context.Context, job Job) error {
	cmd := exec.CommandContext(ctx, d.python, d.Args(job)...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	d.logger.Info("running detection", zap.String("prediction_id", job.Name), zap.String("source", job.Source))
	if err := cmd.Run(); err != nil {
		return logging.NewOperationError("detector.command", job.Name, fmt.Errorf("%w: %s", err, tail(output.String())))
	}
	d.logger.Debug("detection output", zap.String("prediction_id", job.Name), zap.String("output", tail(output.String())))
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutputTail {
		return s[len(s)-maxOutputTail:]
	}
	return s
}
