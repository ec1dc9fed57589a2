// Package store provides the write-through persistence sinks for pipeline
// records. The pipeline never reads these back mid-cycle; they exist for
// dashboards and later analysis.
package store

import (
	"context"
	"sync"

	"github.com/gardenos/mailgarden/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is the ephemeral Store implementation. Records live only as
// long as the process.
type MemoryStore struct {
	mu              sync.RWMutex
	classifications []*core.Classification
	seeds           map[string]*core.Seed
	threads         map[string]*core.Thread
	insights        []*core.Insight
	reviews         []*core.Review
	evolutions      []*core.Evolution
	logger          *zap.Logger
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		seeds:   make(map[string]*core.Seed),
		threads: make(map[string]*core.Thread),
		logger:  logger,
	}
}

// SaveClassification appends a classification record.
func (s *MemoryStore) SaveClassification(ctx context.Context, c *core.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifications = append(s.classifications, c)
	return nil
}

// SaveSeed upserts a seed by id.
func (s *MemoryStore) SaveSeed(ctx context.Context, seed *core.Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeds[seed.ID] = seed
	return nil
}

// SaveThread upserts a thread by id.
func (s *MemoryStore) SaveThread(ctx context.Context, t *core.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[t.ID] = t
	return nil
}

// SaveInsight appends an insight record.
func (s *MemoryStore) SaveInsight(ctx context.Context, i *core.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append(s.insights, i)
	return nil
}

// SaveReview appends a review record.
func (s *MemoryStore) SaveReview(ctx context.Context, r *core.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, r)
	return nil
}

// SaveEvolution appends an evolution record.
func (s *MemoryStore) SaveEvolution(ctx context.Context, e *core.Evolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evolutions = append(s.evolutions, e)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Classifications returns the stored classification records.
func (s *MemoryStore) Classifications() []*core.Classification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Classification, len(s.classifications))
	copy(out, s.classifications)
	return out
}

// Insights returns the stored insight records.
func (s *MemoryStore) Insights() []*core.Insight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Insight, len(s.insights))
	copy(out, s.insights)
	return out
}
