package main

import (
	"context"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/polybot/internal/auth"
	"github.com/example/polybot/internal/config"
	"github.com/example/polybot/internal/detector"
	"github.com/example/polybot/internal/events"
	"github.com/example/polybot/internal/handlers"
	"github.com/example/polybot/internal/labels"
	"github.com/example/polybot/internal/logging"
	"github.com/example/polybot/internal/metrics"
	"github.com/example/polybot/internal/objectstore"
	"github.com/example/polybot/internal/predictor"
	"github.com/example/polybot/internal/server"
	"github.com/example/polybot/internal/summarystore"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadPredictor()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	metrics.Register()

	classes, err := labels.LoadClassTable(cfg.ClassesPath)
	if err != nil {
		logger.Fatal("failed to load class names", zap.String("path", cfg.ClassesPath), zap.Error(err))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("failed to load AWS configuration", zap.Error(err))
	}
	store := objectstore.NewS3Store(s3.NewFromConfig(awsCfg), cfg.BucketName, logger)

	det, closeDetector, err := detector.New(cfg.Detector, classes, logger)
	if err != nil {
		logger.Fatal("failed to initialize detector", zap.String("detector", cfg.Detector.Kind), zap.Error(err))
	}
	defer closeDetector()

	summaries, err := summarystore.New(ctx, cfg.SummaryStore, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("failed to open summary store", zap.String("driver", cfg.SummaryStore), zap.Error(err))
	}
	defer summaries.Close()

	publisher := initPublisher(cfg, logger)
	defer publisher.Close()

	svc := predictor.NewService(store, det, classes, summaries, publisher, cfg, logger)

	var authMiddleware gin.HandlerFunc
	if cfg.ServiceJWTSecret != "" {
		authMiddleware = auth.JWTMiddleware(cfg.ServiceJWTSecret, auth.PredictorAudience)
	}

	r := gin.Default()
	handlers.RegisterPredictorRoutes(r, svc, authMiddleware)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("predictor listening", zap.String("addr", cfg.Addr), zap.String("detector", cfg.Detector.Kind))
	if err := server.Serve(srv, 30*time.Second, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
	}
}

func initPublisher(cfg *config.Predictor, logger *zap.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP_URL not set, prediction events disabled")
		return events.NopPublisher{}
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	if err != nil {
		logger.Fatal("failed to connect to message broker", zap.Error(err))
	}
	return publisher
}
