package bot

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/example/polybot/internal/chat"
	"github.com/example/polybot/internal/config"
	"github.com/example/polybot/internal/logging"
	"github.com/example/polybot/internal/metrics"
	"github.com/example/polybot/internal/objectstore"
	"github.com/example/polybot/internal/prediction"
)

const (
	echoPrefix  = "Your original message: "
	apologyText = "Oops... No predictions could be made for the image. Try again !"
)

// MessageHandler consumes one inbound message. All outcomes are reported to
// the user through chat replies.
type MessageHandler interface {
	Handle(ctx context.Context, msg InboundMessage)
}

// Predictor runs detection on an image already stored in the bucket.
type Predictor interface {
	Predict(ctx context.Context, imageKey string) prediction.Result
}

// DetectionHandler echoes text messages and runs photos through the
// detection service.
type DetectionHandler struct {
	gateway   chat.Gateway
	store     objectstore.Store
	predictor Predictor
	cfg       *config.Bot
	logger    *zap.Logger
}

// NewDetectionHandler wires the handler. cfg is shared and never modified.
func NewDetectionHandler(gateway chat.Gateway, store objectstore.Store, predictor Predictor, cfg *config.Bot, logger *zap.Logger) *DetectionHandler {
	return &DetectionHandler{
		gateway:   gateway,
		store:     store,
		predictor: predictor,
		cfg:       cfg,
		logger:    logger.Named("detection_handler"),
	}
}

// Handle processes msg to completion.
func (h *DetectionHandler) Handle(ctx context.Context, msg InboundMessage) {
	opLogger := logging.WithOperation(h.logger, "bot.handle_message", strconv.FormatInt(msg.ChatID, 10))
	opLogger.Info("incoming message", zap.Int("message_id", msg.MessageID), zap.Bool("has_photo", msg.HasPhoto()))

	if !msg.HasPhoto() {
		h.sendText(ctx, opLogger, msg.ChatID, echoPrefix+msg.Text)
		metrics.MessagesTotal.WithLabelValues("text").Inc()
		return
	}

	imageKey, err := h.stageAndUpload(ctx, msg)
	if err != nil {
		// No reply is sent for failures before the inference call.
		opLogger.Error("failed to stage photo, aborting", zap.Error(err))
		metrics.MessagesTotal.WithLabelValues("staging_failed").Inc()
		return
	}
	opLogger = opLogger.With(zap.String("image_key", imageKey))

	result := h.predictor.Predict(ctx, imageKey)
	metrics.MessagesTotal.WithLabelValues(result.Outcome.String()).Inc()

	switch result.Outcome {
	case prediction.OutcomeSuccess:
		h.replyWithPrediction(ctx, opLogger, msg.ChatID, imageKey, result.Summary)
	case prediction.OutcomeNotFound, prediction.OutcomeDecodeFailure, prediction.OutcomeTransportFailure:
		opLogger.Warn("no prediction for image", zap.Stringer("outcome", result.Outcome), zap.Error(result.Err))
		h.sendText(ctx, opLogger, msg.ChatID, apologyText)
	default:
		opLogger.Error("unexpected prediction outcome", zap.Stringer("outcome", result.Outcome))
		h.sendText(ctx, opLogger, msg.ChatID, apologyText)
	}
}

// stageAndUpload downloads the largest photo variant, writes it to the
// staging directory and uploads it to the bucket. It returns the bucket key.
func (h *DetectionHandler) stageAndUpload(ctx context.Context, msg InboundMessage) (string, error) {
	photo := msg.LargestPhoto()
	file, err := h.gateway.FetchFile(ctx, photo.FileID)
	if err != nil {
		return "", err
	}

	localPath, err := h.stagingPath(file.Path)
	if err != nil {
		return "", logging.NewOperationError("bot.stage_photo", file.Path, err)
	}
	if err := writeFile(localPath, file.Data); err != nil {
		return "", logging.NewOperationError("bot.stage_photo", localPath, err)
	}
	h.logger.Info("staged received photo", zap.String("path", localPath), zap.Int("bytes", len(file.Data)))

	imageKey := ResolveImageKey(msg.Caption, path.Base(file.Path))

	if err := h.store.Put(ctx, imageKey, file.Data); err != nil {
		return "", err
	}
	return imageKey, nil
}

func (h *DetectionHandler) replyWithPrediction(ctx context.Context, opLogger *zap.Logger, chatID int64, imageKey string, summary *prediction.Summary) {
	opLogger.Info("prediction succeeded", zap.String("prediction_id", summary.PredictionID), zap.Int("labels", len(summary.Labels)))

	if annotatedPath, err := h.stageAnnotated(ctx, imageKey); err != nil {
		opLogger.Error("failed to fetch annotated image", zap.Error(err))
	} else if err := h.gateway.SendPhoto(ctx, chatID, annotatedPath); err != nil {
		opLogger.Error("failed to send annotated image", zap.Error(err))
	}

	h.sendText(ctx, opLogger, chatID, RenderLabelCounts(CountByClass(summary.Labels)))
}

func (h *DetectionHandler) stageAnnotated(ctx context.Context, imageKey string) (string, error) {
	annotatedKey := prediction.PredictedKey(imageKey)
	data, err := h.store.Get(ctx, annotatedKey)
	if err != nil {
		return "", err
	}
	localPath, err := h.stagingPath(annotatedKey)
	if err != nil {
		return "", logging.NewOperationError("bot.stage_annotated", annotatedKey, err)
	}
	if err := writeFile(localPath, data); err != nil {
		return "", logging.NewOperationError("bot.stage_annotated", localPath, err)
	}
	return localPath, nil
}

func (h *DetectionHandler) sendText(ctx context.Context, opLogger *zap.Logger, chatID int64, text string) {
	if err := h.gateway.SendText(ctx, chatID, text); err != nil {
		opLogger.Error("failed to send reply", zap.Error(err))
	}
}

// stagingPath maps a slash separated relative path into the staging directory.
func (h *DetectionHandler) stagingPath(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("path %q escapes the staging directory", rel)
	}
	return filepath.Join(h.cfg.StagingDir, local), nil
}

func writeFile(localPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o644)
}
