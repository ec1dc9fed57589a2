package core

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ErrSeedNotFound is returned when a seed id does not exist.
var ErrSeedNotFound = fmt.Errorf("seed not found")

// ErrSeedTerminal is returned when a lifecycle transition is attempted on a
// harvested or expired seed.
var ErrSeedTerminal = fmt.Errorf("seed is in a terminal state")

// ShelfLives maps each seed type to its configured maximum lifetime.
type ShelfLives map[SeedType]time.Duration

// DefaultShelfLives returns the built-in shelf lives: decisions are
// short-fused, relationship building is patient.
func DefaultShelfLives() ShelfLives {
	return ShelfLives{
		SeedDecisionNeeded:    4 * time.Hour,
		SeedOpportunity:       48 * time.Hour,
		SeedFollowUp:          72 * time.Hour,
		SeedRelationshipBuild: 168 * time.Hour,
	}
}

// SeedManager decides which classified emails become tracked follow-up
// obligations and drives them through plant → escalate → harvest.
type SeedManager struct {
	detector   *SignalDetector
	shelfLives ShelfLives
	logger     *zap.Logger
	now        func() time.Time

	seeds  map[string]*Seed
	order  []string
	nextID int
}

// NewSeedManager creates a seed manager.
func NewSeedManager(detector *SignalDetector, shelfLives ShelfLives, logger *zap.Logger) *SeedManager {
	if shelfLives == nil {
		shelfLives = DefaultShelfLives()
	}
	return &SeedManager{
		detector:   detector,
		shelfLives: shelfLives,
		logger:     logger,
		now:        time.Now,
		seeds:      make(map[string]*Seed),
	}
}

// Evaluate decides whether the classification warrants a seed and plants one
// if so. Confidently green emails never produce seeds.
func (m *SeedManager) Evaluate(email *Email, cls *Classification) *Seed {
	if cls.Zone == ZoneGreen && cls.Confidence > 0.7 {
		return nil
	}
	seedType, ok := m.detectSeedType(email, cls)
	if !ok {
		return nil
	}
	return m.plant(seedType, email, cls)
}

// detectSeedType applies the typing rules in priority order.
func (m *SeedManager) detectSeedType(email *Email, cls *Classification) (SeedType, bool) {
	switch {
	case cls.HasUrgency(UrgencyHigh):
		return SeedDecisionNeeded, true
	case cls.HasSignal(SignalVIPSender) || m.detector.HasOpportunityKeywords(email):
		return SeedOpportunity, true
	case email.IsReply() || cls.HasUrgency(UrgencyMedium):
		return SeedFollowUp, true
	case cls.HasSignal(SignalFrequentSender) && cls.Zone != ZoneGreen:
		return SeedRelationshipBuild, true
	case cls.Zone == ZoneRed:
		return SeedFollowUp, true
	}
	return "", false
}

// plant creates a seed with an expiry computed from the type's shelf life.
func (m *SeedManager) plant(seedType SeedType, email *Email, cls *Classification) *Seed {
	m.nextID++
	now := m.now()
	shelfLife := m.shelfLives[seedType]

	seed := &Seed{
		ID:        fmt.Sprintf("seed-%d", m.nextID),
		Type:      seedType,
		Status:    SeedPlanted,
		EmailID:   email.ID,
		ThreadID:  email.ThreadID,
		Zone:      cls.Zone,
		Score:     cls.Score,
		ShelfLife: shelfLife,
		PlantedAt: now,
		ExpiresAt: now.Add(shelfLife),
	}
	m.seeds[seed.ID] = seed
	m.order = append(m.order, seed.ID)

	m.logger.Info("Planted seed",
		zap.String("seed_id", seed.ID),
		zap.String("type", string(seedType)),
		zap.String("zone", string(seed.Zone)),
		zap.Time("expires_at", seed.ExpiresAt))
	return seed
}

// CheckEscalation promotes every planted, unescalated seed past its
// half-life to the red zone, and expires seeds past their shelf life that
// were never escalated in time to be harvested. Both transitions are one-way
// and the pass is idempotent: running it twice escalates the same subset.
func (m *SeedManager) CheckEscalation() []*Seed {
	now := m.now()
	var escalated []*Seed

	for _, id := range m.order {
		seed := m.seeds[id]
		if seed.Status != SeedPlanted {
			continue
		}
		if !seed.Escalated {
			halfLife := seed.ExpiresAt.Sub(seed.PlantedAt) / 2
			if seed.ExpiresAt.Sub(now) < halfLife {
				seed.Escalated = true
				seed.Zone = ZoneRed
				escalated = append(escalated, seed)
				m.logger.Info("Escalated seed",
					zap.String("seed_id", seed.ID),
					zap.String("type", string(seed.Type)),
					zap.Time("expires_at", seed.ExpiresAt))
			}
		}
		if now.After(seed.ExpiresAt) {
			seed.Status = SeedExpired
			m.logger.Info("Seed expired unharvested",
				zap.String("seed_id", seed.ID),
				zap.String("type", string(seed.Type)))
		}
	}
	return escalated
}

// Harvest terminally resolves a seed with an outcome. Harvested and expired
// seeds reject further transitions.
func (m *SeedManager) Harvest(id, outcome string) (*Seed, error) {
	seed, ok := m.seeds[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSeedNotFound, id)
	}
	if seed.Status == SeedHarvested {
		return nil, fmt.Errorf("%w: %s already harvested", ErrSeedTerminal, id)
	}
	now := m.now()
	seed.Status = SeedHarvested
	seed.HarvestedAt = &now
	seed.Outcome = outcome

	m.logger.Info("Harvested seed",
		zap.String("seed_id", seed.ID),
		zap.String("outcome", outcome))
	return seed, nil
}

// Get returns a seed by id.
func (m *SeedManager) Get(id string) (*Seed, error) {
	seed, ok := m.seeds[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSeedNotFound, id)
	}
	return seed, nil
}

// Active returns the planted seeds, red zone first, then soonest-to-expire
// first, so the most urgent items always surface at the top.
func (m *SeedManager) Active() []*Seed {
	var active []*Seed
	for _, id := range m.order {
		if seed := m.seeds[id]; seed.Status == SeedPlanted {
			active = append(active, seed)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		ri, rj := active[i].Zone == ZoneRed, active[j].Zone == ZoneRed
		if ri != rj {
			return ri
		}
		return active[i].ExpiresAt.Before(active[j].ExpiresAt)
	})
	return active
}

// Stats summarizes the seed population for the mirror.
func (m *SeedManager) Stats() SeedStats {
	var stats SeedStats
	for _, id := range m.order {
		seed := m.seeds[id]
		stats.Planted++
		if seed.Status == SeedPlanted {
			stats.Active++
		}
		if seed.Escalated {
			stats.Escalated++
		}
		if seed.Status == SeedHarvested {
			stats.Harvested++
		}
	}
	return stats
}

// SeedStats is a snapshot of seed population counts.
type SeedStats struct {
	Planted   int
	Active    int
	Escalated int
	Harvested int
}
