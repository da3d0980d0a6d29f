// Package inference is the bot's client for the prediction service.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/polybot/internal/auth"
	"github.com/example/polybot/internal/logging"
	"github.com/example/polybot/internal/metrics"
	"github.com/example/polybot/internal/prediction"
)

const (
	serviceSubject = "polybot"
	tokenTTL       = 5 * time.Minute
	maxBodyBytes   = 4 << 20
)

// Client issues prediction requests. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	jwtSecret  string
	logger     *zap.Logger
}

// NewClient builds a client for the service at baseURL. A zero timeout means
// the request is bounded only by ctx. jwtSecret may be empty when the service
// runs without authentication.
func NewClient(baseURL string, timeout time.Duration, jwtSecret string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		jwtSecret:  jwtSecret,
		logger:     logger.Named("inference_client"),
	}
}

// Predict asks the service to run detection on the object stored at imageKey.
func (c *Client) Predict(ctx context.Context, imageKey string) prediction.Result {
	start := time.Now()
	result := c.predict(ctx, imageKey)
	metrics.InferenceDurationSeconds.WithLabelValues(result.Outcome.String()).Observe(time.Since(start).Seconds())

	opLogger := logging.WithOperation(c.logger, "inference.predict", imageKey)
	if result.Outcome == prediction.OutcomeSuccess {
		opLogger.Info("prediction received",
			zap.String("prediction_id", result.Summary.PredictionID),
			zap.Int("labels", len(result.Summary.Labels)))
	} else {
		opLogger.Warn("prediction failed", zap.Stringer("outcome", result.Outcome), zap.Error(result.Err))
	}
	return result
}

func (c *Client) predict(ctx context.Context, imageKey string) prediction.Result {
	endpoint := fmt.Sprintf("%s/predict?imgName=%s", c.baseURL, url.QueryEscape(imageKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return prediction.Failed(prediction.OutcomeTransportFailure, logging.NewOperationError("inference.build_request", imageKey, err))
	}

	if c.jwtSecret != "" {
		token, err := auth.IssueServiceToken(c.jwtSecret, serviceSubject, auth.PredictorAudience, tokenTTL)
		if err != nil {
			return prediction.Failed(prediction.OutcomeTransportFailure, logging.NewOperationError("inference.issue_token", imageKey, err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return prediction.Failed(prediction.OutcomeTransportFailure, logging.NewOperationError("inference.send", imageKey, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return prediction.Failed(prediction.OutcomeTransportFailure, logging.NewOperationError("inference.read_body", imageKey, err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return prediction.Failed(prediction.OutcomeNotFound, logging.NewOperationError("inference.predict", imageKey, errors.New(strings.TrimSpace(string(body)))))
	case resp.StatusCode != http.StatusOK:
		return prediction.Failed(prediction.OutcomeDecodeFailure, logging.NewOperationError("inference.predict", imageKey, fmt.Errorf("unexpected status %d", resp.StatusCode)))
	}

	summary, err := decodeSummary(body)
	if err != nil {
		return prediction.Failed(prediction.OutcomeDecodeFailure, logging.NewOperationError("inference.decode", imageKey, err))
	}
	return prediction.Succeeded(summary)
}

func decodeSummary(body []byte) (*prediction.Summary, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.New("empty response body")
	}
	var summary prediction.Summary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, err
	}
	if summary.PredictionID == "" {
		return nil, errors.New("response has no prediction_id")
	}
	return &summary, nil
}
