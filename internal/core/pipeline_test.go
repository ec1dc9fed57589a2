package core

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/gardenos/mailgarden/internal/bus"
	"github.com/gardenos/mailgarden/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	emails []*Email
	err    error
	calls  int
}

func (f *fakeSource) Fetch(ctx context.Context, max int) ([]*Email, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.emails) > max {
		return f.emails[:max], nil
	}
	return f.emails, nil
}

type fakeStore struct {
	mu              sync.Mutex
	classifications int
	seeds           int
	threads         int
	insights        int
	reviews         int
	evolutions      int
	err             error
}

func (f *fakeStore) count(n *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	*n++
	return nil
}

func (f *fakeStore) SaveClassification(ctx context.Context, c *Classification) error {
	return f.count(&f.classifications)
}
func (f *fakeStore) SaveSeed(ctx context.Context, s *Seed) error       { return f.count(&f.seeds) }
func (f *fakeStore) SaveThread(ctx context.Context, t *Thread) error   { return f.count(&f.threads) }
func (f *fakeStore) SaveInsight(ctx context.Context, i *Insight) error { return f.count(&f.insights) }
func (f *fakeStore) SaveReview(ctx context.Context, r *Review) error   { return f.count(&f.reviews) }
func (f *fakeStore) SaveEvolution(ctx context.Context, e *Evolution) error {
	return f.count(&f.evolutions)
}
func (f *fakeStore) Close() error { return nil }

func newTestPipeline(source MailSource, store Store) (*Pipeline, *bus.Bus) {
	logger := zap.NewNop()
	detector := NewSignalDetector(DetectorConfig{}, logger)
	classifier := NewZoneClassifier(detector, nil, ratelimit.New(0), logger)
	seeds := NewSeedManager(detector, nil, logger)
	threads := NewThreadTracker(logger)
	mirror := NewMirror(10, 50, logger)
	eventBus := bus.New(logger)
	pipeline := NewPipeline(source, classifier, seeds, threads, mirror, store, eventBus, 20, logger)
	return pipeline, eventBus
}

func collectEvents(eventBus *bus.Bus) *[]bus.Event {
	var events []bus.Event
	eventBus.Subscribe(bus.Wildcard, func(evt bus.Event) {
		events = append(events, evt)
	})
	return &events
}

func eventTypes(events []bus.Event) []string {
	var types []string
	for _, evt := range events {
		types = append(types, evt.Type)
	}
	return types
}

func TestRunCycleHappyPath(t *testing.T) {
	source := &fakeSource{emails: []*Email{
		{ID: "m1", ThreadID: "t1", FromAddress: "boss@corp.com", Subject: "Approval needed urgent", Starred: true},
		{ID: "m2", ThreadID: "t2", FromAddress: "news@letters.io", Body: "unsubscribe link below"},
	}}
	store := &fakeStore{}
	pipeline, eventBus := newTestPipeline(source, store)
	events := collectEvents(eventBus)

	require.NoError(t, pipeline.RunCycle(context.Background()))

	assert.Equal(t, StateIdle, pipeline.State())
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 2, store.classifications)
	assert.Equal(t, 2, store.threads)
	assert.Equal(t, 1, store.seeds, "only the action email plants a seed")
	assert.Equal(t, 1, store.reviews)

	// The cycle walks the full state ring.
	var transitions []State
	for _, record := range pipeline.History() {
		transitions = append(transitions, record.To)
	}
	assert.Equal(t, []State{
		StateSyncing, StateProcessing, StateSuggesting, StateComplete, StateIdle,
	}, transitions)

	types := eventTypes(*events)
	assert.Contains(t, types, EventEmailClassified)
	assert.Contains(t, types, EventSeedPlanted)
	assert.Contains(t, types, EventThreadUpdated)
	assert.Contains(t, types, EventMirrorReview)
	assert.Contains(t, types, EventCycleComplete)
}

func TestRunCycleFetchFailure(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("imap connection refused")}
	pipeline, _ := newTestPipeline(source, &fakeStore{})

	err := pipeline.RunCycle(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateError, pipeline.State())
	assert.Equal(t, 1, pipeline.ErrorCount())
	assert.Contains(t, pipeline.LastError(), "imap connection refused")

	// ERROR is recoverable: reset, fix the source, run again.
	require.NoError(t, pipeline.Reset())
	assert.Equal(t, StateIdle, pipeline.State())

	source.err = nil
	require.NoError(t, pipeline.RunCycle(context.Background()))
	assert.Equal(t, StateIdle, pipeline.State())
	assert.Equal(t, 1, pipeline.ErrorCount(), "recovered cycles do not add errors")
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	pipeline, eventBus := newTestPipeline(&fakeSource{}, &fakeStore{})
	events := collectEvents(eventBus)

	err := pipeline.transition(StateComplete, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateIdle, pipeline.State(), "rejected transitions leave the state unchanged")
	assert.Empty(t, pipeline.History())
	assert.Contains(t, eventTypes(*events), EventStateRejected)
}

func TestRunCycleRejectedWhileBusy(t *testing.T) {
	pipeline, _ := newTestPipeline(&fakeSource{}, &fakeStore{})
	require.NoError(t, pipeline.transition(StateSyncing, nil))

	err := pipeline.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRunCycleSurvivesStoreFailures(t *testing.T) {
	source := &fakeSource{emails: []*Email{
		{ID: "m1", ThreadID: "t1", FromAddress: "boss@corp.com", Subject: "Approval needed urgent"},
	}}
	store := &fakeStore{err: fmt.Errorf("disk full")}
	pipeline, _ := newTestPipeline(source, store)

	// Persistence is write-through: failures never abort the cycle.
	require.NoError(t, pipeline.RunCycle(context.Background()))
	assert.Equal(t, StateIdle, pipeline.State())
}

func TestHarvestSeedPublishesAndPersists(t *testing.T) {
	source := &fakeSource{emails: []*Email{
		{ID: "m1", ThreadID: "t1", FromAddress: "boss@corp.com", Subject: "Approval needed urgent"},
	}}
	store := &fakeStore{}
	pipeline, eventBus := newTestPipeline(source, store)
	events := collectEvents(eventBus)

	require.NoError(t, pipeline.RunCycle(context.Background()))
	seedsBefore := store.seeds

	active := pipeline.Seeds().Active()
	require.NotEmpty(t, active)

	seed, err := pipeline.HarvestSeed(context.Background(), active[0].ID, "approved in person")
	require.NoError(t, err)
	assert.Equal(t, SeedHarvested, seed.Status)
	assert.Equal(t, seedsBefore+1, store.seeds)
	assert.Contains(t, eventTypes(*events), EventSeedHarvested)

	_, err = pipeline.HarvestSeed(context.Background(), "seed-999", "missing")
	assert.ErrorIs(t, err, ErrSeedNotFound)
}

func TestCycleCompleteStats(t *testing.T) {
	source := &fakeSource{emails: []*Email{
		{ID: "m1", ThreadID: "t1", FromAddress: "boss@corp.com", Subject: "Approval needed urgent"},
		{ID: "m2", ThreadID: "t2", FromAddress: "peer@corp.com", Subject: "fyi notes"},
	}}
	pipeline, eventBus := newTestPipeline(source, &fakeStore{})

	var stats CycleStats
	eventBus.Subscribe(EventCycleComplete, func(evt bus.Event) {
		stats = evt.Payload.(CycleStats)
	})

	require.NoError(t, pipeline.RunCycle(context.Background()))

	assert.Equal(t, 1, stats.Cycle)
	assert.Equal(t, 2, stats.Emails)
	assert.Equal(t, 1, stats.Seeds)
	assert.Equal(t, 2, stats.Classifier.Keyword)
}
