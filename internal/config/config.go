// Package config builds the immutable process configuration of both binaries
// from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Bot configures the Telegram-facing process.
type Bot struct {
	Addr             string
	TelegramToken    string
	TelegramAppURL   string
	BucketName       string
	InferenceURL     string
	InferenceTimeout time.Duration
	StagingDir       string
	RedisAddr        string
	UpdateTTL        time.Duration
	ServiceJWTSecret string
}

// Predictor configures the inference service.
type Predictor struct {
	Addr             string
	BucketName       string
	ClassesPath      string
	WorkDir          string
	RunsDir          string
	Detector         Detector
	SummaryStore     string
	DatabaseDSN      string
	AMQPURL          string
	AMQPExchange     string
	AMQPRoutingKey   string
	ServiceJWTSecret string
}

// Detector selects and configures the model runner.
type Detector struct {
	Kind string

	// command runner
	Python  string
	Script  string
	Weights string
	Data    string

	// onnx runner
	ModelPath         string
	SharedLibraryPath string
	InputSize         int
	ConfThreshold     float64
	IoUThreshold      float64
}

// LoadBot reads the bot configuration. A .env file in the working directory
// is loaded first when present.
func LoadBot() (*Bot, error) {
	loadDotEnv()

	token, err := readSecret("TELEGRAM_TOKEN", "TELEGRAM_TOKEN_PATH")
	if err != nil {
		return nil, err
	}
	appURL, err := readSecret("TELEGRAM_APP_URL", "TELEGRAM_APP_URL_PATH")
	if err != nil {
		return nil, err
	}
	timeout, err := getDuration("INFERENCE_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	ttl, err := getDuration("UPDATE_DEDUP_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Bot{
		Addr:             getEnv("BOT_ADDR", ":8443"),
		TelegramToken:    token,
		TelegramAppURL:   strings.TrimRight(appURL, "/"),
		BucketName:       os.Getenv("BUCKET_NAME"),
		InferenceURL:     strings.TrimRight(getEnv("INFERENCE_URL", "http://yolo5:8081"), "/"),
		InferenceTimeout: timeout,
		StagingDir:       getEnv("STAGING_DIR", "."),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		UpdateTTL:        ttl,
		ServiceJWTSecret: strings.TrimSpace(os.Getenv("SERVICE_JWT_SECRET")),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Bot) validate() error {
	if c.TelegramToken == "" {
		return errors.New("telegram token is required (TELEGRAM_TOKEN or TELEGRAM_TOKEN_PATH)")
	}
	if c.BucketName == "" {
		return errors.New("BUCKET_NAME is required")
	}
	return nil
}

// LoadPredictor reads the inference service configuration.
func LoadPredictor() (*Predictor, error) {
	loadDotEnv()

	inputSize, err := getInt("ONNX_INPUT_SIZE", 640)
	if err != nil {
		return nil, err
	}
	conf, err := getFloat("ONNX_CONF_THRESHOLD", 0.25)
	if err != nil {
		return nil, err
	}
	iou, err := getFloat("ONNX_IOU_THRESHOLD", 0.45)
	if err != nil {
		return nil, err
	}

	cfg := &Predictor{
		Addr:             getEnv("PREDICTOR_ADDR", ":8081"),
		BucketName:       os.Getenv("BUCKET_NAME"),
		ClassesPath:      getEnv("CLASSES_PATH", "data/coco128.yaml"),
		WorkDir:          getEnv("WORK_DIR", "."),
		RunsDir:          getEnv("RUNS_DIR", "static/data"),
		SummaryStore:     getEnv("SUMMARY_STORE", "postgres"),
		DatabaseDSN:      getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=predictions port=5432 sslmode=disable"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "predictions"),
		AMQPRoutingKey:   getEnv("AMQP_ROUTING_KEY", "prediction.completed"),
		ServiceJWTSecret: strings.TrimSpace(os.Getenv("SERVICE_JWT_SECRET")),
		Detector: Detector{
			Kind:              getEnv("DETECTOR", "command"),
			Python:            getEnv("DETECT_PYTHON", "python3"),
			Script:            getEnv("DETECT_SCRIPT", "detect.py"),
			Weights:           getEnv("DETECT_WEIGHTS", "yolov5s.pt"),
			Data:              getEnv("DETECT_DATA", "data/coco128.yaml"),
			ModelPath:         getEnv("ONNX_MODEL_PATH", "yolov5s.onnx"),
			SharedLibraryPath: os.Getenv("ONNX_SHARED_LIBRARY"),
			InputSize:         inputSize,
			ConfThreshold:     conf,
			IoUThreshold:      iou,
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Predictor) validate() error {
	if c.BucketName == "" {
		return errors.New("BUCKET_NAME is required")
	}
	switch c.Detector.Kind {
	case "command", "onnx":
	default:
		return fmt.Errorf("unsupported DETECTOR %q", c.Detector.Kind)
	}
	switch c.SummaryStore {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("unsupported SUMMARY_STORE %q", c.SummaryStore)
	}
	if c.Detector.InputSize <= 0 {
		return errors.New("ONNX_INPUT_SIZE must be positive")
	}
	return nil
}
