package summarystore

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/polybot/internal/labels"
	"github.com/example/polybot/internal/logging"
	"github.com/example/polybot/internal/prediction"
)

// SummaryRecord is the persisted form of a prediction summary.
type SummaryRecord struct {
	ID               uint            `gorm:"primaryKey"`
	PredictionID     string          `gorm:"column:prediction_id;uniqueIndex;size:64"`
	OriginalImgPath  string          `gorm:"column:original_img_path;type:text"`
	PredictedImgPath string          `gorm:"column:predicted_img_path;type:text"`
	Labels           []labels.Record `gorm:"column:labels;serializer:json"`
	Time             float64         `gorm:"column:time"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (SummaryRecord) TableName() string {
	return "prediction_summaries"
}

func newSummaryRecord(summary *prediction.Summary) *SummaryRecord {
	return &SummaryRecord{
		PredictionID:     summary.PredictionID,
		OriginalImgPath:  summary.OriginalImgPath,
		PredictedImgPath: summary.PredictedImgPath,
		Labels:           summary.Labels,
		Time:             summary.Time,
		CreatedAt:        time.Now().UTC(),
	}
}

// GormStore persists summaries with gorm.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	return &GormStore{db: db, logger: logger.Named("summary_store")}
}

// OpenPostgres connects to PostgreSQL and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, logging.NewOperationError("summarystore.open", "postgres", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, logging.NewOperationError("summarystore.open", "postgres", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, logging.NewOperationError("summarystore.ping", "postgres", err)
	}
	return NewGormStore(db, logger), nil
}

// AutoMigrate ensures the schema is available.
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&SummaryRecord{})
}

// Insert persists summary and returns the generated row id.
func (s *GormStore) Insert(ctx context.Context, summary *prediction.Summary) (string, error) {
	record := newSummaryRecord(summary)
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", logging.NewOperationError("summarystore.insert", summary.PredictionID, err)
	}
	return strconv.FormatUint(uint64(record.ID), 10), nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
