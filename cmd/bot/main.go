package main

import (
	"context"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/polybot/internal/bot"
	"github.com/example/polybot/internal/cache"
	"github.com/example/polybot/internal/chat"
	"github.com/example/polybot/internal/config"
	"github.com/example/polybot/internal/handlers"
	"github.com/example/polybot/internal/inference"
	"github.com/example/polybot/internal/logging"
	"github.com/example/polybot/internal/metrics"
	"github.com/example/polybot/internal/objectstore"
	"github.com/example/polybot/internal/server"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadBot()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	metrics.Register()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("failed to load AWS configuration", zap.Error(err))
	}
	store := objectstore.NewS3Store(s3.NewFromConfig(awsCfg), cfg.BucketName, logger)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Fatal("failed to connect to Telegram", zap.Error(err))
	}
	if err := chat.RegisterWebhook(api, cfg.TelegramAppURL, cfg.TelegramToken); err != nil {
		logger.Fatal("failed to register webhook", zap.Error(err))
	}
	gateway := chat.NewTelegramGateway(api, cfg.TelegramToken, &http.Client{Timeout: time.Minute}, logger)

	predictor := inference.NewClient(cfg.InferenceURL, cfg.InferenceTimeout, cfg.ServiceJWTSecret, logger)
	handler := bot.NewDetectionHandler(gateway, store, predictor, cfg, logger)

	r := gin.Default()
	handlers.RegisterBotRoutes(r, cfg.TelegramToken, handler, initTracker(ctx, cfg, logger), logger)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("bot listening", zap.String("addr", cfg.Addr))
	if err := server.Serve(srv, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initTracker(ctx context.Context, cfg *config.Bot, logger *zap.Logger) cache.UpdateTracker {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, webhook deduplication disabled")
		return cache.NopTracker{}
	}

	redisCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(redisCtx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	return cache.NewRedisCache(client, cfg.UpdateTTL)
}
