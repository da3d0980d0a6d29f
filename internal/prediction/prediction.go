// Package prediction holds the types exchanged between the bot and the
// inference service.
package prediction

import (
	"path"
	"strings"

	"github.com/example/polybot/internal/labels"
)

// Key prefixes inside the image bucket.
const (
	ImagesPrefix      = "images/"
	PredictionsPrefix = "predictions/"
)

// Summary is the outcome of one prediction request. Image paths are plain
// strings, Time is epoch seconds.
type Summary struct {
	ID               string          `json:"_id,omitempty"`
	PredictionID     string          `json:"prediction_id"`
	OriginalImgPath  string          `json:"original_img_path"`
	PredictedImgPath string          `json:"predicted_img_path"`
	Labels           []labels.Record `json:"labels"`
	Time             float64         `json:"time"`
}

// PredictedKey is the bucket key the annotated image is stored under for a
// given original image key.
func PredictedKey(imageKey string) string {
	return PredictionsPrefix + path.Base(imageKey)
}

// Stem returns the base name of key without its extension.
func Stem(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Outcome enumerates the results an inference call can have.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotFound
	OutcomeDecodeFailure
	OutcomeTransportFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeDecodeFailure:
		return "decode_failure"
	case OutcomeTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Result is what the inference client hands back to the orchestrator. Summary
// is only set for OutcomeSuccess; Err carries the cause otherwise.
type Result struct {
	Outcome Outcome
	Summary *Summary
	Err     error
}

// Succeeded builds a success result.
func Succeeded(summary *Summary) Result {
	return Result{Outcome: OutcomeSuccess, Summary: summary}
}

// Failed builds a failure result of the given outcome.
func Failed(outcome Outcome, err error) Result {
	return Result{Outcome: outcome, Err: err}
}
