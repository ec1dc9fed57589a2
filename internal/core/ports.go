package core

import (
	"context"
)

// ZoneAnalysis is the structured zone verdict returned by an LLM provider
type ZoneAnalysis struct {
	Zone       Zone
	Confidence float64
	Reasoning  string
	Signals    []string
	ModelUsed  string
}

// LLMClient defines the interface for LLM-backed zone classification
type LLMClient interface {
	// ClassifyZone asks the provider which urgency zone the email belongs to
	ClassifyZone(ctx context.Context, email *Email) (*ZoneAnalysis, error)
}

// MailSource defines the interface for fetching normalized emails
type MailSource interface {
	// Fetch returns up to max new emails for the current sync cycle
	Fetch(ctx context.Context, max int) ([]*Email, error)
}

// Store defines the write-through persistence sink. The pipeline writes
// records as they are produced and never reads them back mid-cycle.
type Store interface {
	SaveClassification(ctx context.Context, c *Classification) error
	SaveSeed(ctx context.Context, s *Seed) error
	SaveThread(ctx context.Context, t *Thread) error
	SaveInsight(ctx context.Context, i *Insight) error
	SaveReview(ctx context.Context, r *Review) error
	SaveEvolution(ctx context.Context, e *Evolution) error

	// Close releases any underlying resources
	Close() error
}
