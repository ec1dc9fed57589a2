package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSeedManager(shelfLives ShelfLives) (*SeedManager, *time.Time) {
	detector := NewSignalDetector(DetectorConfig{}, zap.NewNop())
	m := NewSeedManager(detector, shelfLives, zap.NewNop())
	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }
	return m, &current
}

func TestDetectSeedType(t *testing.T) {
	tests := []struct {
		name  string
		email *Email
		cls   *Classification
		want  SeedType
		none  bool
	}{
		{
			name:  "high urgency forces decision",
			email: &Email{ID: "m1"},
			cls: &Classification{
				Zone:    ZoneRed,
				Signals: []Signal{{Type: SignalUrgency, Level: UrgencyHigh}},
			},
			want: SeedDecisionNeeded,
		},
		{
			name:  "vip sender is an opportunity",
			email: &Email{ID: "m2"},
			cls: &Classification{
				Zone:    ZoneYellow,
				Signals: []Signal{{Type: SignalVIPSender}},
			},
			want: SeedOpportunity,
		},
		{
			name:  "rfq keywords are an opportunity",
			email: &Email{ID: "m3", Subject: "Request for quotation"},
			cls:   &Classification{Zone: ZoneYellow, Signals: []Signal{{Type: SignalThreadReply}}},
			want:  SeedOpportunity,
		},
		{
			name:  "reply becomes follow-up",
			email: &Email{ID: "m4", InReplyTo: "<x@y.z>"},
			cls:   &Classification{Zone: ZoneYellow, Signals: []Signal{{Type: SignalThreadReply}}},
			want:  SeedFollowUp,
		},
		{
			name:  "medium urgency becomes follow-up",
			email: &Email{ID: "m5"},
			cls: &Classification{
				Zone:    ZoneYellow,
				Signals: []Signal{{Type: SignalUrgency, Level: UrgencyMedium}},
			},
			want: SeedFollowUp,
		},
		{
			name:  "frequent sender builds relationship",
			email: &Email{ID: "m6"},
			cls: &Classification{
				Zone:    ZoneYellow,
				Signals: []Signal{{Type: SignalFrequentSender, Count: 7}},
			},
			want: SeedRelationshipBuild,
		},
		{
			name:  "red zone without typed signals still follows up",
			email: &Email{ID: "m7"},
			cls:   &Classification{Zone: ZoneRed, Confidence: 0.5},
			want:  SeedFollowUp,
		},
		{
			name:  "plain yellow mail plants nothing",
			email: &Email{ID: "m8"},
			cls:   &Classification{Zone: ZoneYellow, Confidence: 0.3},
			none:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestSeedManager(nil)
			seed := m.Evaluate(tt.email, tt.cls)
			if tt.none {
				assert.Nil(t, seed)
				return
			}
			require.NotNil(t, seed)
			assert.Equal(t, tt.want, seed.Type)
		})
	}
}

func TestEvaluateSkipsConfidentGreen(t *testing.T) {
	m, _ := newTestSeedManager(nil)

	seed := m.Evaluate(&Email{ID: "m1"}, &Classification{
		Zone:       ZoneGreen,
		Confidence: 0.9,
		Signals:    []Signal{{Type: SignalUrgency, Level: UrgencyHigh}},
	})
	assert.Nil(t, seed)

	// An uncertain green still gets evaluated.
	seed = m.Evaluate(&Email{ID: "m2"}, &Classification{
		Zone:       ZoneGreen,
		Confidence: 0.4,
		Signals:    []Signal{{Type: SignalUrgency, Level: UrgencyHigh}},
	})
	require.NotNil(t, seed)
	assert.Equal(t, SeedDecisionNeeded, seed.Type)
}

func TestPlantSetsExpiryFromShelfLife(t *testing.T) {
	m, current := newTestSeedManager(ShelfLives{SeedDecisionNeeded: 4 * time.Hour})

	seed := m.Evaluate(&Email{ID: "m1", ThreadID: "t1"}, &Classification{
		Zone:    ZoneRed,
		Score:   90,
		Signals: []Signal{{Type: SignalUrgency, Level: UrgencyHigh}},
	})

	require.NotNil(t, seed)
	assert.Equal(t, "seed-1", seed.ID)
	assert.Equal(t, SeedPlanted, seed.Status)
	assert.Equal(t, *current, seed.PlantedAt)
	assert.Equal(t, current.Add(4*time.Hour), seed.ExpiresAt)
	assert.Equal(t, "m1", seed.EmailID)
	assert.Equal(t, "t1", seed.ThreadID)
	assert.False(t, seed.Escalated)
}

func TestCheckEscalationAtHalfLife(t *testing.T) {
	m, current := newTestSeedManager(ShelfLives{SeedDecisionNeeded: 2 * time.Hour})
	plantedAt := *current

	seed := m.Evaluate(&Email{ID: "m1"}, &Classification{
		Zone:    ZoneYellow,
		Signals: []Signal{{Type: SignalUrgency, Level: UrgencyHigh}},
	})
	require.NotNil(t, seed)

	// Before the half-life nothing happens.
	*current = plantedAt.Add(59 * time.Minute)
	assert.Empty(t, m.CheckEscalation())
	assert.False(t, seed.Escalated)

	// Past the half-life the seed escalates to red.
	*current = plantedAt.Add(61 * time.Minute)
	escalated := m.CheckEscalation()
	require.Len(t, escalated, 1)
	assert.True(t, seed.Escalated)
	assert.Equal(t, ZoneRed, seed.Zone)
	assert.Equal(t, SeedPlanted, seed.Status)

	// Idempotent: a second pass escalates nothing new.
	assert.Empty(t, m.CheckEscalation())
}

func TestCheckEscalationExpiresOverdueSeeds(t *testing.T) {
	m, current := newTestSeedManager(ShelfLives{SeedDecisionNeeded: 2 * time.Hour})
	plantedAt := *current

	seed := m.Evaluate(&Email{ID: "m1"}, &Classification{
		Zone:    ZoneYellow,
		Signals: []Signal{{Type: SignalUrgency, Level: UrgencyHigh}},
	})
	require.NotNil(t, seed)

	*current = plantedAt.Add(3 * time.Hour)
	m.CheckEscalation()
	assert.Equal(t, SeedExpired, seed.Status)

	// Expired seeds are out of the active set and out of future passes.
	assert.Empty(t, m.Active())
	assert.Empty(t, m.CheckEscalation())
}

func TestHarvestIsTerminal(t *testing.T) {
	m, current := newTestSeedManager(nil)

	planted := m.Evaluate(&Email{ID: "m1"}, &Classification{
		Zone:    ZoneYellow,
		Signals: []Signal{{Type: SignalUrgency, Level: UrgencyHigh}},
	})
	require.NotNil(t, planted)

	seed, err := m.Harvest(planted.ID, "replied with decision")
	require.NoError(t, err)
	assert.Equal(t, SeedHarvested, seed.Status)
	assert.Equal(t, "replied with decision", seed.Outcome)
	require.NotNil(t, seed.HarvestedAt)
	assert.Equal(t, *current, *seed.HarvestedAt)

	_, err = m.Harvest(planted.ID, "again")
	assert.ErrorIs(t, err, ErrSeedTerminal)

	_, err = m.Harvest("seed-999", "missing")
	assert.ErrorIs(t, err, ErrSeedNotFound)
}

func TestActiveOrdering(t *testing.T) {
	m, current := newTestSeedManager(ShelfLives{
		SeedDecisionNeeded: 4 * time.Hour,
		SeedFollowUp:       72 * time.Hour,
		SeedOpportunity:    48 * time.Hour,
	})

	yellowLate := m.Evaluate(&Email{ID: "m1", InReplyTo: "<a@b.c>"}, &Classification{
		Zone:    ZoneYellow,
		Signals: []Signal{{Type: SignalThreadReply}},
	})
	*current = current.Add(time.Minute)
	redSeed := m.Evaluate(&Email{ID: "m2"}, &Classification{
		Zone:    ZoneRed,
		Signals: []Signal{{Type: SignalUrgency, Level: UrgencyHigh}},
	})
	*current = current.Add(time.Minute)
	yellowSoon := m.Evaluate(&Email{ID: "m3"}, &Classification{
		Zone:    ZoneYellow,
		Signals: []Signal{{Type: SignalVIPSender}},
	})

	active := m.Active()
	require.Len(t, active, 3)
	assert.Equal(t, redSeed.ID, active[0].ID, "red zone surfaces first")
	assert.Equal(t, yellowSoon.ID, active[1].ID, "then soonest expiry")
	assert.Equal(t, yellowLate.ID, active[2].ID)
}

func TestSeedStats(t *testing.T) {
	m, current := newTestSeedManager(ShelfLives{SeedDecisionNeeded: 2 * time.Hour, SeedFollowUp: 72 * time.Hour})
	plantedAt := *current

	first := m.Evaluate(&Email{ID: "m1"}, &Classification{
		Zone:    ZoneYellow,
		Signals: []Signal{{Type: SignalUrgency, Level: UrgencyHigh}},
	})
	m.Evaluate(&Email{ID: "m2", InReplyTo: "<a@b.c>"}, &Classification{
		Zone:    ZoneYellow,
		Signals: []Signal{{Type: SignalThreadReply}},
	})

	*current = plantedAt.Add(90 * time.Minute)
	m.CheckEscalation()

	_, err := m.Harvest(first.ID, "done")
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, 2, stats.Planted)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Escalated)
	assert.Equal(t, 1, stats.Harvested)
}
