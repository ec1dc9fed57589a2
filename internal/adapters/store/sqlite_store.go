package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gardenos/mailgarden/internal/core"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore is the durable single-file Store implementation.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// sqliteSchema holds one table per entity with the indexes the dashboard
// queries need.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS classifications (
		email_id TEXT,
		thread_id TEXT,
		zone TEXT,
		score INTEGER,
		confidence REAL,
		signals TEXT,
		reasoning TEXT,
		method TEXT,
		classified_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_classifications_zone ON classifications(zone)`,
	`CREATE INDEX IF NOT EXISTS idx_classifications_thread ON classifications(thread_id)`,
	`CREATE TABLE IF NOT EXISTS seeds (
		id TEXT PRIMARY KEY,
		type TEXT,
		status TEXT,
		email_id TEXT,
		thread_id TEXT,
		zone TEXT,
		score INTEGER,
		shelf_life TEXT,
		planted_at TIMESTAMP,
		expires_at TIMESTAMP,
		escalated BOOLEAN,
		harvested_at TIMESTAMP,
		outcome TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_seeds_status ON seeds(status)`,
	`CREATE INDEX IF NOT EXISTS idx_seeds_expires_at ON seeds(expires_at)`,
	`CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		subject TEXT,
		participants TEXT,
		messages TEXT,
		velocity REAL,
		temperature INTEGER,
		trajectory TEXT,
		first_message_at TIMESTAMP,
		last_message_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS insights (
		thread_id TEXT,
		type TEXT,
		message TEXT,
		severity TEXT,
		data TEXT,
		created_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_insights_thread ON insights(thread_id)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		cycle INTEGER,
		data TEXT,
		created_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS evolutions (
		cycle INTEGER,
		data TEXT,
		created_at TIMESTAMP
	)`,
}

// NewSQLiteStore opens (and if necessary initializes) a SQLite store.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// SaveClassification appends a classification record.
func (s *SQLiteStore) SaveClassification(ctx context.Context, c *core.Classification) error {
	signals, err := json.Marshal(c.Signals)
	if err != nil {
		return fmt.Errorf("failed to encode signals: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO classifications (email_id, thread_id, zone, score, confidence, signals, reasoning, method, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.EmailID, c.ThreadID, string(c.Zone), c.Score, c.Confidence, string(signals), c.Reasoning, string(c.Method), c.ClassifiedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert classification: %w", err)
	}
	return nil
}

// SaveSeed upserts a seed by id.
func (s *SQLiteStore) SaveSeed(ctx context.Context, seed *core.Seed) error {
	var harvestedAt any
	if seed.HarvestedAt != nil {
		harvestedAt = seed.HarvestedAt.Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO seeds (id, type, status, email_id, thread_id, zone, score, shelf_life, planted_at, expires_at, escalated, harvested_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, seed.ID, string(seed.Type), string(seed.Status), seed.EmailID, seed.ThreadID, string(seed.Zone), seed.Score,
		seed.ShelfLife.String(), seed.PlantedAt.Format(time.RFC3339), seed.ExpiresAt.Format(time.RFC3339),
		seed.Escalated, harvestedAt, seed.Outcome)
	if err != nil {
		return fmt.Errorf("failed to upsert seed: %w", err)
	}
	return nil
}

// SaveThread upserts a thread by id.
func (s *SQLiteStore) SaveThread(ctx context.Context, t *core.Thread) error {
	participants, err := json.Marshal(t.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO threads (id, subject, participants, messages, velocity, temperature, trajectory, first_message_at, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Subject, string(participants), string(messages), t.Velocity, t.Temperature, string(t.Trajectory),
		t.FirstMessageAt.Format(time.RFC3339), t.LastMessageAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}
	return nil
}

// SaveInsight appends an insight record.
func (s *SQLiteStore) SaveInsight(ctx context.Context, i *core.Insight) error {
	data, err := json.Marshal(i.Data)
	if err != nil {
		return fmt.Errorf("failed to encode insight data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO insights (thread_id, type, message, severity, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, i.ThreadID, string(i.Type), i.Message, i.Severity, string(data), i.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

// SaveReview appends a review record as a JSON document.
func (s *SQLiteStore) SaveReview(ctx context.Context, r *core.Review) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode review: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reviews (cycle, data, created_at) VALUES (?, ?, ?)
	`, r.Cycle, string(data), r.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// SaveEvolution appends an evolution record as a JSON document.
func (s *SQLiteStore) SaveEvolution(ctx context.Context, e *core.Evolution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode evolution: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evolutions (cycle, data, created_at) VALUES (?, ?, ?)
	`, e.Cycle, string(data), e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert evolution: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	return nil
}
