package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gardenos/mailgarden/internal/core"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore is the shared-server durable Store implementation.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS classifications (
		email_id VARCHAR(255),
		thread_id VARCHAR(255),
		zone VARCHAR(16),
		score INT,
		confidence DOUBLE,
		signals TEXT,
		reasoning TEXT,
		method VARCHAR(16),
		classified_at TIMESTAMP NULL,
		INDEX idx_classifications_zone (zone),
		INDEX idx_classifications_thread (thread_id)
	)`,
	`CREATE TABLE IF NOT EXISTS seeds (
		id VARCHAR(64) PRIMARY KEY,
		type VARCHAR(32),
		status VARCHAR(16),
		email_id VARCHAR(255),
		thread_id VARCHAR(255),
		zone VARCHAR(16),
		score INT,
		shelf_life VARCHAR(32),
		planted_at TIMESTAMP NULL,
		expires_at TIMESTAMP NULL,
		escalated BOOLEAN,
		harvested_at TIMESTAMP NULL,
		outcome TEXT,
		INDEX idx_seeds_status (status),
		INDEX idx_seeds_expires_at (expires_at)
	)`,
	`CREATE TABLE IF NOT EXISTS threads (
		id VARCHAR(255) PRIMARY KEY,
		subject TEXT,
		participants TEXT,
		messages MEDIUMTEXT,
		velocity DOUBLE,
		temperature INT,
		trajectory VARCHAR(16),
		first_message_at TIMESTAMP NULL,
		last_message_at TIMESTAMP NULL
	)`,
	`CREATE TABLE IF NOT EXISTS insights (
		thread_id VARCHAR(255),
		type VARCHAR(64),
		message TEXT,
		severity VARCHAR(16),
		data TEXT,
		created_at TIMESTAMP NULL,
		INDEX idx_insights_thread (thread_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		cycle INT,
		data MEDIUMTEXT,
		created_at TIMESTAMP NULL
	)`,
	`CREATE TABLE IF NOT EXISTS evolutions (
		cycle INT,
		data MEDIUMTEXT,
		created_at TIMESTAMP NULL
	)`,
}

// NewMySQLStore connects to MySQL and initializes the schema.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}
	for _, stmt := range mysqlSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &MySQLStore{db: db, logger: logger}, nil
}

// SaveClassification appends a classification record.
func (s *MySQLStore) SaveClassification(ctx context.Context, c *core.Classification) error {
	signals, err := json.Marshal(c.Signals)
	if err != nil {
		return fmt.Errorf("failed to encode signals: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO classifications (email_id, thread_id, zone, score, confidence, signals, reasoning, method, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.EmailID, c.ThreadID, string(c.Zone), c.Score, c.Confidence, string(signals), c.Reasoning, string(c.Method), c.ClassifiedAt)
	if err != nil {
		return fmt.Errorf("failed to insert classification: %w", err)
	}
	return nil
}

// SaveSeed upserts a seed by id.
func (s *MySQLStore) SaveSeed(ctx context.Context, seed *core.Seed) error {
	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO seeds (id, type, status, email_id, thread_id, zone, score, shelf_life, planted_at, expires_at, escalated, harvested_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, seed.ID, string(seed.Type), string(seed.Status), seed.EmailID, seed.ThreadID, string(seed.Zone), seed.Score,
		seed.ShelfLife.String(), seed.PlantedAt, seed.ExpiresAt, seed.Escalated, seed.HarvestedAt, seed.Outcome)
	if err != nil {
		return fmt.Errorf("failed to upsert seed: %w", err)
	}
	return nil
}

// SaveThread upserts a thread by id.
func (s *MySQLStore) SaveThread(ctx context.Context, t *core.Thread) error {
	participants, err := json.Marshal(t.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		REPLACE INTO threads (id, subject, participants, messages, velocity, temperature, trajectory, first_message_at, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Subject, string(participants), string(messages), t.Velocity, t.Temperature, string(t.Trajectory),
		t.FirstMessageAt, t.LastMessageAt)
	if err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}
	return nil
}

// SaveInsight appends an insight record.
func (s *MySQLStore) SaveInsight(ctx context.Context, i *core.Insight) error {
	data, err := json.Marshal(i.Data)
	if err != nil {
		return fmt.Errorf("failed to encode insight data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO insights (thread_id, type, message, severity, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, i.ThreadID, string(i.Type), i.Message, i.Severity, string(data), i.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

// SaveReview appends a review record as a JSON document.
func (s *MySQLStore) SaveReview(ctx context.Context, r *core.Review) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode review: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reviews (cycle, data, created_at) VALUES (?, ?, ?)
	`, r.Cycle, string(data), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// SaveEvolution appends an evolution record as a JSON document.
func (s *MySQLStore) SaveEvolution(ctx context.Context, e *core.Evolution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode evolution: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evolutions (cycle, data, created_at) VALUES (?, ?, ?)
	`, e.Cycle, string(data), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert evolution: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close MySQL connection: %w", err)
	}
	return nil
}
