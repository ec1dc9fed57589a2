package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestThreadTracker() (*ThreadTracker, *time.Time) {
	tracker := NewThreadTracker(zap.NewNop())
	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }
	return tracker, &current
}

func TestTrackSingleMessage(t *testing.T) {
	tracker, current := newTestThreadTracker()

	thread, insights := tracker.Track(&Email{
		ID:          "m1",
		ThreadID:    "t1",
		FromAddress: "a@corp.com",
		Subject:     "Kickoff",
		ReceivedAt:  current.Add(-time.Hour),
	}, &Classification{Zone: ZoneYellow})

	assert.Equal(t, "t1", thread.ID)
	assert.Equal(t, 0.0, thread.Velocity, "a single message has no span")
	assert.Equal(t, TrajectoryNew, thread.Trajectory)
	assert.Len(t, thread.Participants, 1)
	assert.Empty(t, insights)
}

func TestTrackFallsBackToEmailID(t *testing.T) {
	tracker, current := newTestThreadTracker()

	thread, _ := tracker.Track(&Email{
		ID:         "solo-1",
		ReceivedAt: *current,
	}, &Classification{Zone: ZoneGreen})

	assert.Equal(t, "solo-1", thread.ID)
}

func TestThreadVelocity(t *testing.T) {
	tracker, current := newTestThreadTracker()
	start := current.Add(-48 * time.Hour)

	// Five messages across two days: velocity 2.5 messages/day.
	var thread *Thread
	for i := 0; i < 5; i++ {
		thread, _ = tracker.Track(&Email{
			ID:          fmt.Sprintf("m%d", i),
			ThreadID:    "t1",
			FromAddress: fmt.Sprintf("p%d@corp.com", i%2),
			ReceivedAt:  start.Add(time.Duration(i) * 12 * time.Hour),
		}, &Classification{Zone: ZoneGreen})
	}

	assert.InDelta(t, 2.5, thread.Velocity, 1e-9)
}

func TestThreadVelocitySameInstant(t *testing.T) {
	tracker, current := newTestThreadTracker()

	var thread *Thread
	for i := 0; i < 3; i++ {
		thread, _ = tracker.Track(&Email{
			ID:         fmt.Sprintf("m%d", i),
			ThreadID:   "t1",
			ReceivedAt: *current,
		}, &Classification{Zone: ZoneGreen})
	}

	// Zero span degenerates to the message count.
	assert.InDelta(t, 3.0, thread.Velocity, 1e-9)
}

func TestThreadTemperatureHotThread(t *testing.T) {
	tracker, current := newTestThreadTracker()
	start := current.Add(-48 * time.Hour)

	var thread *Thread
	var all []*Insight
	for i := 0; i < 5; i++ {
		var insights []*Insight
		thread, insights = tracker.Track(&Email{
			ID:          fmt.Sprintf("m%d", i),
			ThreadID:    "t1",
			FromAddress: fmt.Sprintf("p%d@corp.com", i%2),
			ReceivedAt:  start.Add(time.Duration(i) * 12 * time.Hour),
		}, &Classification{Zone: ZoneRed})
		all = append(all, insights...)
	}

	// 25 for messages, 10 for two participants, 12 for velocity 2.5,
	// 75 for five red messages, clamped to 100.
	assert.Equal(t, 100, thread.Temperature)
	assert.Equal(t, ZoneRed, thread.Messages[0].Zone)

	var types []InsightType
	for _, i := range all {
		types = append(types, i.Type)
	}
	assert.Contains(t, types, InsightHotThread)
}

func TestThreadTemperatureStaleThreadCoolsOff(t *testing.T) {
	tracker, current := newTestThreadTracker()

	thread, _ := tracker.Track(&Email{
		ID:         "m1",
		ThreadID:   "t1",
		ReceivedAt: current.Add(-200 * time.Hour),
	}, &Classification{Zone: ZoneGreen})

	// 5 for one message, 0 participants recorded without a sender,
	// velocity 0, minus 20 for staleness.
	assert.Equal(t, 0, thread.Temperature)
}

func TestThreadTrajectory(t *testing.T) {
	tests := []struct {
		name  string
		zones []Zone
		want  Trajectory
	}{
		{
			name:  "too short is new",
			zones: []Zone{ZoneRed, ZoneRed},
			want:  TrajectoryNew,
		},
		{
			name:  "recent red run heats up",
			zones: []Zone{ZoneGreen, ZoneGreen, ZoneGreen, ZoneRed, ZoneRed},
			want:  TrajectoryHeating,
		},
		{
			name:  "recent green run cools down",
			zones: []Zone{ZoneRed, ZoneRed, ZoneRed, ZoneGreen, ZoneGreen},
			want:  TrajectoryCooling,
		},
		{
			name:  "flat history is steady",
			zones: []Zone{ZoneYellow, ZoneYellow, ZoneYellow, ZoneYellow},
			want:  TrajectorySteady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, current := newTestThreadTracker()
			var thread *Thread
			for i, zone := range tt.zones {
				thread, _ = tracker.Track(&Email{
					ID:         fmt.Sprintf("m%d", i),
					ThreadID:   "t1",
					ReceivedAt: current.Add(time.Duration(i) * time.Minute),
				}, &Classification{Zone: zone})
			}
			assert.Equal(t, tt.want, thread.Trajectory)
		})
	}
}

func TestInsightDedupWindow(t *testing.T) {
	tracker, current := newTestThreadTracker()
	base := *current

	// Six distinct senders in one thread trips the multi-party trigger.
	var total int
	for i := 0; i < 6; i++ {
		_, insights := tracker.Track(&Email{
			ID:          fmt.Sprintf("m%d", i),
			ThreadID:    "t1",
			FromAddress: fmt.Sprintf("p%d@corp.com", i),
			ReceivedAt:  base,
		}, &Classification{Zone: ZoneGreen})
		for _, insight := range insights {
			if insight.Type == InsightMultiParty {
				total++
			}
		}
	}
	assert.Equal(t, 1, total, "repeat triggers inside the window are suppressed")

	// Past the window the same insight may fire again.
	*current = base.Add(25 * time.Hour)
	_, insights := tracker.Track(&Email{
		ID:          "m-late",
		ThreadID:    "t1",
		FromAddress: "p9@corp.com",
		ReceivedAt:  current.Add(-time.Minute),
	}, &Classification{Zone: ZoneGreen})

	var repeated bool
	for _, insight := range insights {
		if insight.Type == InsightMultiParty {
			repeated = true
		}
	}
	assert.True(t, repeated)
}

func TestHighVelocityInsight(t *testing.T) {
	tracker, current := newTestThreadTracker()
	start := current.Add(-24 * time.Hour)

	var all []*Insight
	for i := 0; i < 4; i++ {
		_, insights := tracker.Track(&Email{
			ID:         fmt.Sprintf("m%d", i),
			ThreadID:   "t1",
			ReceivedAt: start.Add(time.Duration(i) * 6 * time.Hour),
		}, &Classification{Zone: ZoneGreen})
		all = append(all, insights...)
	}

	// Four messages in 18 hours exceeds three messages/day.
	require.NotEmpty(t, all)
	var found bool
	for _, insight := range all {
		if insight.Type == InsightHighVelocity {
			found = true
			assert.Equal(t, "t1", insight.ThreadID)
		}
	}
	assert.True(t, found)
}
