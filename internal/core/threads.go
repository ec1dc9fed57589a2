package core

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// insightDedupWindow suppresses repeats of the same (type, thread) insight.
const insightDedupWindow = 24 * time.Hour

// Insight trigger thresholds.
const (
	velocityInsightThreshold    = 3.0
	temperatureInsightThreshold = 80
	multiPartyInsightThreshold  = 5
)

// ThreadTracker aggregates classified messages per conversation and derives
// velocity, temperature and trajectory. The thread map only grows and is
// read-modify-written one call at a time.
type ThreadTracker struct {
	logger *zap.Logger
	now    func() time.Time

	threads     map[string]*Thread
	lastInsight map[string]time.Time
}

// NewThreadTracker creates a thread tracker.
func NewThreadTracker(logger *zap.Logger) *ThreadTracker {
	return &ThreadTracker{
		logger:      logger,
		now:         time.Now,
		threads:     make(map[string]*Thread),
		lastInsight: make(map[string]time.Time),
	}
}

// Track appends the email to its thread, recomputes the derived metrics and
// returns the thread along with any newly triggered insights.
func (t *ThreadTracker) Track(email *Email, cls *Classification) (*Thread, []*Insight) {
	threadID := email.ThreadID
	if threadID == "" {
		threadID = email.ID
	}

	thread, ok := t.threads[threadID]
	if !ok {
		thread = &Thread{
			ID:             threadID,
			Subject:        email.Subject,
			Participants:   make(map[string]bool),
			FirstMessageAt: email.ReceivedAt,
		}
		t.threads[threadID] = thread
	}

	if email.FromAddress != "" {
		thread.Participants[email.FromAddress] = true
	}
	thread.Messages = append(thread.Messages, ThreadMessage{
		ID:         email.ID,
		Sender:     email.FromAddress,
		Zone:       cls.Zone,
		ReceivedAt: email.ReceivedAt,
	})
	if email.ReceivedAt.Before(thread.FirstMessageAt) {
		thread.FirstMessageAt = email.ReceivedAt
	}
	if email.ReceivedAt.After(thread.LastMessageAt) {
		thread.LastMessageAt = email.ReceivedAt
	}

	thread.Velocity = threadVelocity(thread)
	thread.Temperature = t.threadTemperature(thread)
	thread.Trajectory = threadTrajectory(thread)

	insights := t.checkInsightTriggers(thread)
	return thread, insights
}

// Get returns the thread for an id, if tracked.
func (t *ThreadTracker) Get(threadID string) (*Thread, bool) {
	thread, ok := t.threads[threadID]
	return thread, ok
}

// threadVelocity is messages per day across the thread's span. A thread with
// fewer than two messages has no span and velocity 0.
func threadVelocity(thread *Thread) float64 {
	if len(thread.Messages) < 2 {
		return 0
	}
	days := thread.LastMessageAt.Sub(thread.FirstMessageAt).Hours() / 24
	if days <= 0 {
		return float64(len(thread.Messages))
	}
	return float64(len(thread.Messages)) / days
}

// threadTemperature is the 0-100 engagement heat of the thread. Zone heat is
// weighted over the entire message history, not just the most recent
// messages; the recency term already rewards fresh activity, so weighting
// only the tail would count it twice.
func (t *ThreadTracker) threadTemperature(thread *Thread) int {
	temp := 0

	if c := len(thread.Messages) * 5; c < 30 {
		temp += c
	} else {
		temp += 30
	}
	if c := len(thread.Participants) * 5; c < 20 {
		temp += c
	} else {
		temp += 20
	}
	temp += int(thread.Velocity * 5)

	for _, msg := range thread.Messages {
		switch msg.Zone {
		case ZoneRed:
			temp += 15
		case ZoneYellow:
			temp += 5
		}
	}

	hoursSinceLast := t.now().Sub(thread.LastMessageAt).Hours()
	switch {
	case hoursSinceLast <= 6:
		temp += 10
	case hoursSinceLast <= 24:
		temp += 5
	case hoursSinceLast > 168:
		temp -= 20
	}

	if temp < 0 {
		temp = 0
	}
	if temp > 100 {
		temp = 100
	}
	return temp
}

// threadTrajectory compares the weighted heat of the last three messages
// against the full-history average.
func threadTrajectory(thread *Thread) Trajectory {
	if len(thread.Messages) < 3 {
		return TrajectoryNew
	}

	total := 0.0
	for _, msg := range thread.Messages {
		total += zoneHeat(msg.Zone)
	}
	fullAvg := total / float64(len(thread.Messages))

	recent := thread.Messages[len(thread.Messages)-3:]
	recentTotal := 0.0
	for _, msg := range recent {
		recentTotal += zoneHeat(msg.Zone)
	}
	recentAvg := recentTotal / 3

	const margin = 0.5
	switch {
	case recentAvg > fullAvg+margin:
		return TrajectoryHeating
	case recentAvg < fullAvg-margin:
		return TrajectoryCooling
	default:
		return TrajectorySteady
	}
}

func zoneHeat(zone Zone) float64 {
	switch zone {
	case ZoneRed:
		return 3
	case ZoneYellow:
		return 2
	default:
		return 1
	}
}

// checkInsightTriggers runs the threshold checks for a freshly updated
// thread.
func (t *ThreadTracker) checkInsightTriggers(thread *Thread) []*Insight {
	var insights []*Insight

	if thread.Velocity > velocityInsightThreshold {
		if i := t.generateInsight(thread, InsightHighVelocity, "warning",
			fmt.Sprintf("thread is moving at %.1f messages/day", thread.Velocity),
			map[string]any{"velocity": thread.Velocity}); i != nil {
			insights = append(insights, i)
		}
	}
	if thread.Temperature > temperatureInsightThreshold {
		if i := t.generateInsight(thread, InsightHotThread, "critical",
			fmt.Sprintf("thread temperature is %d", thread.Temperature),
			map[string]any{"temperature": thread.Temperature}); i != nil {
			insights = append(insights, i)
		}
	}
	if len(thread.Participants) >= multiPartyInsightThreshold {
		if i := t.generateInsight(thread, InsightMultiParty, "info",
			fmt.Sprintf("%d participants converging on one thread", len(thread.Participants)),
			map[string]any{"participants": len(thread.Participants)}); i != nil {
			insights = append(insights, i)
		}
	}
	return insights
}

// generateInsight emits an insight unless the same (type, thread) pair fired
// within the dedup window. Hot threads would otherwise produce one insight
// per incoming message.
func (t *ThreadTracker) generateInsight(thread *Thread, insightType InsightType, severity, message string, data map[string]any) *Insight {
	key := string(insightType) + "|" + thread.ID
	now := t.now()
	if last, ok := t.lastInsight[key]; ok && now.Sub(last) < insightDedupWindow {
		return nil
	}
	t.lastInsight[key] = now

	t.logger.Info("Thread insight",
		zap.String("thread_id", thread.ID),
		zap.String("type", string(insightType)),
		zap.String("severity", severity))

	return &Insight{
		ThreadID:  thread.ID,
		Type:      insightType,
		Message:   message,
		Severity:  severity,
		Data:      data,
		CreatedAt: now,
	}
}
