package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gardenos/mailgarden/internal/bus"
	"go.uber.org/zap"
)

// State is one phase of the sync cycle
type State string

const (
	StateIdle       State = "IDLE"
	StateSyncing    State = "SYNCING"
	StateProcessing State = "PROCESSING"
	StateSuggesting State = "SUGGESTING"
	StateComplete   State = "COMPLETE"
	StateError      State = "ERROR"
)

// ErrInvalidTransition is returned when a requested transition is not in the
// transition table. The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions is the fixed transition table. ERROR is reachable from
// the three working states and always recoverable back to IDLE.
var validTransitions = map[State][]State{
	StateIdle:       {StateSyncing},
	StateSyncing:    {StateProcessing, StateError},
	StateProcessing: {StateSuggesting, StateError},
	StateSuggesting: {StateComplete, StateError},
	StateComplete:   {StateIdle},
	StateError:      {StateIdle},
}

// Event types published on the bus.
const (
	EventStateTransition = "state.transition"
	EventStateRejected   = "state.rejected"
	EventEmailClassified = "email.classified"
	EventSeedPlanted     = "seed.planted"
	EventSeedEscalated   = "seed.escalated"
	EventSeedHarvested   = "seed.harvested"
	EventThreadUpdated   = "thread.updated"
	EventInsight         = "insight.generated"
	EventMirrorReview    = "mirror.review"
	EventMirrorEvolution = "mirror.evolution"
	EventCycleComplete   = "cycle.complete"
)

// TransitionRecord is one entry in the append-only state history
type TransitionRecord struct {
	From     State
	To       State
	At       time.Time
	Metadata map[string]any
}

// CycleStats summarizes one completed sync cycle
type CycleStats struct {
	Cycle      int              `json:"cycle"`
	Emails     int              `json:"emails"`
	Seeds      int              `json:"seeds"`
	Insights   int              `json:"insights"`
	Escalated  int              `json:"escalated"`
	Duration   time.Duration    `json:"duration"`
	Classifier ClassifierStats  `json:"classifier"`
}

// Pipeline sequences the pipeline components through one sync cycle at a
// time and enforces the state machine around them. All per-cycle objects are
// owned here; the bus only relays and the store only receives.
type Pipeline struct {
	source     MailSource
	classifier *ZoneClassifier
	seeds      *SeedManager
	threads    *ThreadTracker
	mirror     *Mirror
	store      Store
	bus        *bus.Bus
	logger     *zap.Logger
	batchSize  int
	now        func() time.Time

	state         State
	history       []TransitionRecord
	errorCount    int
	lastError     string
	syncStartedAt time.Time
	cycles        int
}

// NewPipeline creates a pipeline in the IDLE state.
func NewPipeline(
	source MailSource,
	classifier *ZoneClassifier,
	seeds *SeedManager,
	threads *ThreadTracker,
	mirror *Mirror,
	store Store,
	eventBus *bus.Bus,
	batchSize int,
	logger *zap.Logger,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Pipeline{
		source:     source,
		classifier: classifier,
		seeds:      seeds,
		threads:    threads,
		mirror:     mirror,
		store:      store,
		bus:        eventBus,
		logger:     logger,
		batchSize:  batchSize,
		now:        time.Now,
		state:      StateIdle,
	}
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	return p.state
}

// History returns the append-only transition history.
func (p *Pipeline) History() []TransitionRecord {
	return p.history
}

// ErrorCount returns how many times the pipeline has entered ERROR.
func (p *Pipeline) ErrorCount() int {
	return p.errorCount
}

// LastError returns the last recorded error message.
func (p *Pipeline) LastError() string {
	return p.lastError
}

// CycleElapsed returns the time since the current cycle entered SYNCING.
func (p *Pipeline) CycleElapsed() time.Duration {
	if p.syncStartedAt.IsZero() {
		return 0
	}
	return p.now().Sub(p.syncStartedAt)
}

// Seeds exposes the seed manager for callers resolving seeds out of band.
func (p *Pipeline) Seeds() *SeedManager {
	return p.seeds
}

// Threads exposes the thread tracker for read access.
func (p *Pipeline) Threads() *ThreadTracker {
	return p.threads
}

// transition moves the state machine to next, rejecting and publishing
// anything not in the transition table. The state never silently jumps.
func (p *Pipeline) transition(next State, metadata map[string]any) error {
	allowed := false
	for _, s := range validTransitions[p.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		p.logger.Warn("Rejected state transition",
			zap.String("from", string(p.state)),
			zap.String("to", string(next)))
		p.bus.Publish("pipeline", EventStateRejected, map[string]any{
			"from": p.state,
			"to":   next,
		})
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, p.state, next)
	}

	record := TransitionRecord{
		From:     p.state,
		To:       next,
		At:       p.now(),
		Metadata: metadata,
	}
	p.history = append(p.history, record)
	p.state = next

	p.logger.Debug("State transition",
		zap.String("from", string(record.From)),
		zap.String("to", string(next)))
	p.bus.Publish("pipeline", EventStateTransition, record)
	return nil
}

// fail moves the pipeline into ERROR and records the cause.
func (p *Pipeline) fail(err error) {
	p.errorCount++
	p.lastError = err.Error()
	p.logger.Error("Pipeline cycle failed", zap.Error(err))
	_ = p.transition(StateError, map[string]any{"error": err.Error()})
}

// Reset recovers the pipeline from ERROR back to IDLE so the next cycle can
// be attempted.
func (p *Pipeline) Reset() error {
	return p.transition(StateIdle, nil)
}

// RunCycle executes one full sync cycle. Emails are classified strictly
// sequentially; persistence failures are logged and never block in-memory
// progression.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	if err := p.transition(StateSyncing, nil); err != nil {
		return err
	}
	p.syncStartedAt = p.now()
	p.cycles++

	emails, err := p.source.Fetch(ctx, p.batchSize)
	if err != nil {
		p.fail(fmt.Errorf("fetching email batch: %w", err))
		return err
	}

	if err := p.transition(StateProcessing, map[string]any{"batch_size": len(emails)}); err != nil {
		return err
	}

	classifications := p.classifier.ClassifyBatch(ctx, emails)
	seedsPlanted := 0
	insightCount := 0
	for i, cls := range classifications {
		email := emails[i]

		p.bus.Publish("classifier", EventEmailClassified, cls)
		p.persist(ctx, "classification", func() error { return p.store.SaveClassification(ctx, cls) })

		if seed := p.seeds.Evaluate(email, cls); seed != nil {
			seedsPlanted++
			p.bus.Publish("seeds", EventSeedPlanted, seed)
			p.persist(ctx, "seed", func() error { return p.store.SaveSeed(ctx, seed) })
		}

		thread, insights := p.threads.Track(email, cls)
		p.bus.Publish("threads", EventThreadUpdated, thread)
		p.persist(ctx, "thread", func() error { return p.store.SaveThread(ctx, thread) })
		for _, insight := range insights {
			insightCount++
			p.bus.Publish("threads", EventInsight, insight)
			p.persist(ctx, "insight", func() error { return p.store.SaveInsight(ctx, insight) })
		}
	}

	if err := p.transition(StateSuggesting, nil); err != nil {
		return err
	}

	escalated := p.seeds.CheckEscalation()
	for _, seed := range escalated {
		p.bus.Publish("seeds", EventSeedEscalated, seed)
		p.persist(ctx, "seed", func() error { return p.store.SaveSeed(ctx, seed) })
	}

	review, evolution := p.mirror.Review(classifications, p.seeds.Stats())
	p.bus.Publish("mirror", EventMirrorReview, review)
	p.persist(ctx, "review", func() error { return p.store.SaveReview(ctx, review) })
	if evolution != nil {
		p.bus.Publish("mirror", EventMirrorEvolution, evolution)
		p.persist(ctx, "evolution", func() error { return p.store.SaveEvolution(ctx, evolution) })
	}

	stats := CycleStats{
		Cycle:      p.cycles,
		Emails:     len(emails),
		Seeds:      seedsPlanted,
		Insights:   insightCount,
		Escalated:  len(escalated),
		Duration:   p.CycleElapsed(),
		Classifier: p.classifier.Stats(),
	}
	if err := p.transition(StateComplete, map[string]any{"emails": len(emails)}); err != nil {
		return err
	}
	p.bus.Publish("pipeline", EventCycleComplete, stats)

	p.logger.Info("Sync cycle complete",
		zap.Int("cycle", stats.Cycle),
		zap.Int("emails", stats.Emails),
		zap.Int("seeds", stats.Seeds),
		zap.Int("insights", stats.Insights),
		zap.Duration("duration", stats.Duration))

	return p.transition(StateIdle, nil)
}

// HarvestSeed terminally resolves a seed, publishing and persisting the
// outcome.
func (p *Pipeline) HarvestSeed(ctx context.Context, id, outcome string) (*Seed, error) {
	seed, err := p.seeds.Harvest(id, outcome)
	if err != nil {
		return nil, err
	}
	p.bus.Publish("seeds", EventSeedHarvested, seed)
	p.persist(ctx, "seed", func() error { return p.store.SaveSeed(ctx, seed) })
	return seed, nil
}

// persist runs one write-through, logging failures. The in-memory record
// stays the source of truth for the rest of the cycle.
func (p *Pipeline) persist(ctx context.Context, kind string, save func() error) {
	if p.store == nil {
		return
	}
	if err := save(); err != nil {
		p.logger.Warn("Write-through failed",
			zap.String("record", kind),
			zap.Error(err))
	}
}
