package core

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Mirror thresholds.
const (
	lowConfidenceCutoff     = 0.5
	lowConfidenceRateLimit  = 0.3
	redShareLimit           = 0.5
	greenShareLimit         = 0.7
	activeSeedLimit         = 20
	escalationRateLimit     = 0.4
	confidenceTrendMargin   = 0.05
)

// Mirror is the self-review loop. Once per cycle it audits the recent
// classification window and the seed population, raising feedback when the
// output distribution drifts out of shape; every Nth cycle it evolves the
// accumulated feedback into structural recommendations.
type Mirror struct {
	reviewCycle int
	windowSize  int
	logger      *zap.Logger
	now         func() time.Time

	cycle           int
	feedbackHistory [][]Feedback
	confidenceHist  []float64
}

// NewMirror creates a mirror. reviewCycle is how many reviews pass between
// evolutions; windowSize bounds the retained history.
func NewMirror(reviewCycle, windowSize int, logger *zap.Logger) *Mirror {
	if reviewCycle <= 0 {
		reviewCycle = 10
	}
	if windowSize <= 0 {
		windowSize = 50
	}
	return &Mirror{
		reviewCycle: reviewCycle,
		windowSize:  windowSize,
		logger:      logger,
		now:         time.Now,
	}
}

// Review audits one cycle's classifications and seed stats. The returned
// Evolution is nil except on every Nth cycle.
func (m *Mirror) Review(classifications []*Classification, seeds SeedStats) (*Review, *Evolution) {
	m.cycle++

	review := &Review{
		Cycle:            m.cycle,
		WindowSize:       len(classifications),
		ZoneDistribution: make(map[Zone]int),
		ActiveSeeds:      seeds.Active,
		CreatedAt:        m.now(),
	}

	lowConfidence := 0
	confidenceSum := 0.0
	for _, cls := range classifications {
		confidenceSum += cls.Confidence
		if cls.Confidence < lowConfidenceCutoff {
			lowConfidence++
		}
		review.ZoneDistribution[cls.Zone]++
	}
	if n := len(classifications); n > 0 {
		review.AvgConfidence = confidenceSum / float64(n)
		review.LowConfidenceRate = float64(lowConfidence) / float64(n)
	}
	if seeds.Planted > 0 {
		review.EscalationRate = float64(seeds.Escalated) / float64(seeds.Planted)
	}

	review.Feedback = m.collectFeedback(review, len(classifications))

	m.feedbackHistory = append(m.feedbackHistory, review.Feedback)
	if len(m.feedbackHistory) > m.windowSize {
		m.feedbackHistory = m.feedbackHistory[1:]
	}
	m.confidenceHist = append(m.confidenceHist, review.AvgConfidence)
	if len(m.confidenceHist) > m.windowSize {
		m.confidenceHist = m.confidenceHist[1:]
	}

	m.logger.Debug("Mirror review complete",
		zap.Int("cycle", m.cycle),
		zap.Float64("avg_confidence", review.AvgConfidence),
		zap.Int("feedback_count", len(review.Feedback)))

	var evolution *Evolution
	if m.cycle%m.reviewCycle == 0 {
		evolution = m.evolve()
	}
	return review, evolution
}

// collectFeedback raises one feedback entry per crossed threshold.
func (m *Mirror) collectFeedback(review *Review, classified int) []Feedback {
	var feedback []Feedback

	if classified > 0 {
		if review.LowConfidenceRate > lowConfidenceRateLimit {
			feedback = append(feedback, Feedback{
				Type:     FeedbackLowConfidence,
				Severity: "warning",
				Message:  fmt.Sprintf("%.0f%% of classifications are low-confidence", review.LowConfidenceRate*100),
			})
		}
		total := float64(classified)
		if float64(review.ZoneDistribution[ZoneRed])/total > redShareLimit {
			feedback = append(feedback, Feedback{
				Type:     FeedbackRedHeavy,
				Severity: "warning",
				Message:  "more than half of classified mail landed in the red zone",
			})
		}
		if float64(review.ZoneDistribution[ZoneGreen])/total > greenShareLimit {
			feedback = append(feedback, Feedback{
				Type:     FeedbackGreenHeavy,
				Severity: "info",
				Message:  "green zone dominates; urgency detection may be under-triggering",
			})
		}
	}
	if review.ActiveSeeds > activeSeedLimit {
		feedback = append(feedback, Feedback{
			Type:     FeedbackSeedOverload,
			Severity: "warning",
			Message:  fmt.Sprintf("%d active seeds outstanding", review.ActiveSeeds),
		})
	}
	if review.EscalationRate > escalationRateLimit {
		feedback = append(feedback, Feedback{
			Type:     FeedbackHighEscalation,
			Severity: "warning",
			Message:  fmt.Sprintf("%.0f%% of seeds escalated before harvest", review.EscalationRate*100),
		})
	}
	return feedback
}

// evolve tallies feedback-type frequency across the last review window and
// promotes any type recurring in at least half the cycles to a structural
// recommendation, alongside the confidence drift direction.
func (m *Mirror) evolve() *Evolution {
	window := m.feedbackHistory
	if len(window) > m.reviewCycle {
		window = window[len(window)-m.reviewCycle:]
	}

	occurrences := make(map[FeedbackType]int)
	for _, cycleFeedback := range window {
		seen := make(map[FeedbackType]bool)
		for _, fb := range cycleFeedback {
			if !seen[fb.Type] {
				occurrences[fb.Type]++
				seen[fb.Type] = true
			}
		}
	}

	evolution := &Evolution{
		Cycle:           m.cycle,
		ConfidenceTrend: m.confidenceTrend(),
		CreatedAt:       m.now(),
	}
	threshold := (len(window) + 1) / 2
	for fbType, count := range occurrences {
		if count >= threshold && threshold > 0 {
			evolution.Recommendations = append(evolution.Recommendations, Recommendation{
				FeedbackType: fbType,
				Occurrences:  count,
				Priority:     "high",
				Message:      fmt.Sprintf("%s recurred in %d of the last %d cycles; adjust thresholds", fbType, count, len(window)),
			})
		}
	}

	m.logger.Info("Mirror evolution",
		zap.Int("cycle", m.cycle),
		zap.Int("recommendations", len(evolution.Recommendations)),
		zap.String("confidence_trend", string(evolution.ConfidenceTrend)))
	return evolution
}

// confidenceTrend compares the recent half of the confidence history against
// the earlier half.
func (m *Mirror) confidenceTrend() Trend {
	if len(m.confidenceHist) < 2 {
		return TrendStable
	}
	mid := len(m.confidenceHist) / 2
	earlier := mean(m.confidenceHist[:mid])
	recent := mean(m.confidenceHist[mid:])
	switch {
	case recent > earlier+confidenceTrendMargin:
		return TrendRising
	case recent < earlier-confidenceTrendMargin:
		return TrendFalling
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
