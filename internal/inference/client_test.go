package inference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/polybot/internal/prediction"
)

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var captured http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r.Clone(r.Context())
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestPredictSuccess(t *testing.T) {
	body := `{"prediction_id":"p-1","original_img_path":"predictions/cat1.jpg","predicted_img_path":"static/data/p-1/cat1.jpg",` +
		`"labels":[{"class":"cat","cx":0.5,"cy":0.5,"width":0.2,"height":0.2},{"class":"dog","cx":0.1,"cy":0.1,"width":0.1,"height":0.1}],` +
		`"time":1700000000.5,"_id":"42"}`
	server, captured := newTestServer(t, http.StatusOK, body)

	client := NewClient(server.URL+"/", time.Second, "", zap.NewNop())
	result := client.Predict(context.Background(), "images/cat 1.jpg")

	if result.Outcome != prediction.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%v)", result.Outcome, result.Err)
	}
	if result.Summary.PredictionID != "p-1" || len(result.Summary.Labels) != 2 || result.Summary.ID != "42" {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if captured.Method != http.MethodPost || captured.URL.Path != "/predict" {
		t.Fatalf("unexpected request: %s %s", captured.Method, captured.URL.Path)
	}
	if got := captured.URL.Query().Get("imgName"); got != "images/cat 1.jpg" {
		t.Fatalf("unexpected imgName: %q", got)
	}
	if captured.Header.Get("Authorization") != "" {
		t.Fatal("expected no authorization header without a secret")
	}
}

func TestPredictSendsServiceToken(t *testing.T) {
	server, captured := newTestServer(t, http.StatusOK, `{"prediction_id":"p-1","labels":[]}`)

	client := NewClient(server.URL, time.Second, "secret", zap.NewNop())
	result := client.Predict(context.Background(), "images/cat1.jpg")

	if result.Outcome != prediction.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%v)", result.Outcome, result.Err)
	}
	if !strings.HasPrefix(captured.Header.Get("Authorization"), "Bearer ") {
		t.Fatalf("expected bearer token, got %q", captured.Header.Get("Authorization"))
	}
}

func TestPredictFailureOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   prediction.Outcome
	}{
		{"not found", http.StatusNotFound, "prediction: p-1/predictions/cat1.jpg. prediction result not found", prediction.OutcomeNotFound},
		{"empty body", http.StatusOK, "", prediction.OutcomeDecodeFailure},
		{"html body", http.StatusOK, "<html>oops</html>", prediction.OutcomeDecodeFailure},
		{"json without id", http.StatusOK, `{"labels":[]}`, prediction.OutcomeDecodeFailure},
		{"server error", http.StatusInternalServerError, "label line 1: unknown class index 99", prediction.OutcomeDecodeFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server, _ := newTestServer(t, tc.status, tc.body)
			client := NewClient(server.URL, time.Second, "", zap.NewNop())

			result := client.Predict(context.Background(), "images/cat1.jpg")
			if result.Outcome != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, result.Outcome)
			}
			if result.Summary != nil {
				t.Fatal("expected no summary on failure")
			}
			if result.Err == nil {
				t.Fatal("expected a cause on failure")
			}
		})
	}
}

func TestPredictTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client := NewClient(addr, time.Second, "", zap.NewNop())
	result := client.Predict(context.Background(), "images/cat1.jpg")
	if result.Outcome != prediction.OutcomeTransportFailure {
		t.Fatalf("expected transport failure, got %s", result.Outcome)
	}
}
