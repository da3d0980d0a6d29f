package summarystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/polybot/internal/logging"
	"github.com/example/polybot/internal/prediction"
)

// SQLiteStore keeps summaries in a local SQLite file, for single node setups.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, logging.NewOperationError("summarystore.open", "sqlite", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// CreateSchema creates the summaries table if it does not exist.
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS prediction_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prediction_id TEXT NOT NULL UNIQUE,
		original_img_path TEXT NOT NULL,
		predicted_img_path TEXT NOT NULL,
		labels TEXT NOT NULL,
		time REAL NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// Insert persists summary and returns the generated row id.
func (s *SQLiteStore) Insert(ctx context.Context, summary *prediction.Summary) (string, error) {
	labelsJSON, err := json.Marshal(summary.Labels)
	if err != nil {
		return "", logging.NewOperationError("summarystore.insert", summary.PredictionID, err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prediction_summaries (prediction_id, original_img_path, predicted_img_path, labels, time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		summary.PredictionID, summary.OriginalImgPath, summary.PredictedImgPath, string(labelsJSON), summary.Time,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", logging.NewOperationError("summarystore.insert", summary.PredictionID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return "", logging.NewOperationError("summarystore.insert", summary.PredictionID, err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
