/**
 * PostgreSQL Outcome Store for the Recognition Worker
 *
 * Persists one row per recognition request: which engine won, confidence,
 * duration, whether the cache answered, and any failure cause. The rolling
 * quality window stays in memory; this table is the durable audit trail.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore handles database operations.
type PostgresStore struct {
	db *sql.DB
}

// RequestRecord is the persisted outcome of one recognition request.
type RequestRecord struct {
	RequestID    string
	Filename     string
	FileHash     string
	Languages    []string
	EngineID     string
	Success      bool
	CacheHit     bool
	Confidence   float64
	DurationMs   int64
	WordCount    int
	ErrorMessage string
	Metadata     map[string]interface{}
}

// sanitizeConfidence rounds confidence to 4 decimal places and clamps it to
// [0.0, 1.0]. PostgreSQL NUMERIC(5,4) columns reject float64 noise like
// 0.9632000000000001.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresStore creates a new PostgreSQL outcome store.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// RecordRequest upserts the outcome row for a request. Re-processing the same
// request ID (queue retries) overwrites the previous outcome.
func (p *PostgresStore) RecordRequest(ctx context.Context, rec *RequestRecord) error {
	if rec == nil {
		return fmt.Errorf("record is required")
	}
	if rec.RequestID == "" {
		return fmt.Errorf("request ID is required")
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO recognition.requests (
			id, filename, file_hash, languages,
			engine_id, success, cache_hit,
			confidence, duration_ms, word_count,
			error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, NULLIF($2, ''), NULLIF($3, ''), $4,
			NULLIF($5, ''), $6, $7,
			NULLIF($8::NUMERIC(5,4), 0), NULLIF($9, 0), NULLIF($10, 0),
			NULLIF($11, ''), COALESCE($12::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			engine_id = NULLIF(EXCLUDED.engine_id, ''),
			success = EXCLUDED.success,
			cache_hit = EXCLUDED.cache_hit,
			confidence = EXCLUDED.confidence,
			duration_ms = EXCLUDED.duration_ms,
			word_count = EXCLUDED.word_count,
			error_message = NULLIF(EXCLUDED.error_message, ''),
			metadata = COALESCE(EXCLUDED.metadata, recognition.requests.metadata),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		rec.RequestID,
		rec.Filename,
		rec.FileHash,
		pq.Array(rec.Languages),
		rec.EngineID,
		rec.Success,
		rec.CacheHit,
		sanitizeConfidence(rec.Confidence),
		rec.DurationMs,
		rec.WordCount,
		rec.ErrorMessage,
		metadataJSON,
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to record request (request=%s, engine=%s): %w",
			rec.RequestID, rec.EngineID, err)
	}

	return nil
}

// GetRequest retrieves a persisted outcome by request ID.
func (p *PostgresStore) GetRequest(ctx context.Context, requestID string) (*RequestRecord, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request ID is required")
	}

	query := `
		SELECT
			id, filename, file_hash, languages,
			engine_id, success, cache_hit,
			confidence, duration_ms, word_count,
			error_message, metadata
		FROM recognition.requests
		WHERE id = $1::uuid
	`

	var (
		rec          RequestRecord
		filename     sql.NullString
		fileHash     sql.NullString
		languages    pq.StringArray
		engineID     sql.NullString
		confidence   sql.NullFloat64
		durationMs   sql.NullInt64
		wordCount    sql.NullInt64
		errorMessage sql.NullString
		metadataJSON []byte
	)

	err := p.db.QueryRowContext(ctx, query, requestID).Scan(
		&rec.RequestID, &filename, &fileHash, &languages,
		&engineID, &rec.Success, &rec.CacheHit,
		&confidence, &durationMs, &wordCount,
		&errorMessage, &metadataJSON,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request not found: %s", requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	rec.Filename = filename.String
	rec.FileHash = fileHash.String
	rec.Languages = []string(languages)
	rec.EngineID = engineID.String
	rec.Confidence = confidence.Float64
	rec.DurationMs = durationMs.Int64
	rec.WordCount = int(wordCount.Int64)
	rec.ErrorMessage = errorMessage.String

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &rec, nil
}

// EngineSuccessRates aggregates persisted outcomes per engine. Complements
// the in-memory rolling window with an all-time view.
func (p *PostgresStore) EngineSuccessRates(ctx context.Context) (map[string]float64, error) {
	query := `
		SELECT engine_id, AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END)
		FROM recognition.requests
		WHERE engine_id IS NOT NULL AND NOT cache_hit
		GROUP BY engine_id
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate engine outcomes: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]float64)
	for rows.Next() {
		var engineID string
		var rate float64
		if err := rows.Scan(&engineID, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan engine rate: %w", err)
		}
		rates[engineID] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read engine rates: %w", err)
	}

	return rates, nil
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics.
func (p *PostgresStore) GetStats() sql.DBStats {
	return p.db.Stats()
}
