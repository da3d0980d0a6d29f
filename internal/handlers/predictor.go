package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/polybot/internal/prediction"
	"github.com/example/polybot/internal/predictor"
)

// predictionFailedText is the body of every 500 from /predict. The service
// logs the underlying error.
const predictionFailedText = "prediction failed"

// PredictionService runs a prediction for an image key.
type PredictionService interface {
	Predict(ctx context.Context, imgName string) (*prediction.Summary, error)
}

// RegisterPredictorRoutes wires the inference service endpoints. authMiddleware
// guards /predict when non-nil.
func RegisterPredictorRoutes(router *gin.Engine, svc PredictionService, authMiddleware gin.HandlerFunc) {
	registerCommon(router)

	handlers := []gin.HandlerFunc{}
	if authMiddleware != nil {
		handlers = append(handlers, authMiddleware)
	}
	handlers = append(handlers, func(c *gin.Context) {
		imgName := c.Query("imgName")
		if imgName == "" {
			c.String(http.StatusBadRequest, "imgName is required")
			return
		}

		summary, err := svc.Predict(c.Request.Context(), imgName)
		if err != nil {
			if errors.Is(err, predictor.ErrPredictionNotFound) {
				c.String(http.StatusNotFound, err.Error())
				return
			}
			c.String(http.StatusInternalServerError, predictionFailedText)
			return
		}

		c.JSON(http.StatusOK, summary)
	})

	router.POST("/predict", handlers...)
}
