package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gardenos/mailgarden/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	baselineScore           = 50
	redThreshold            = 75
	yellowThreshold         = 45
	keywordConfidenceCutoff = 0.8
)

// canonicalScores are the representative scores used when a zone is decided
// without keyword scoring (forced rules and LLM verdicts).
var canonicalScores = map[Zone]int{
	ZoneRed:    85,
	ZoneYellow: 60,
	ZoneGreen:  30,
}

// ClassifierStats counts which method produced each classification.
type ClassifierStats struct {
	Keyword  int
	LLM      int
	Fallback int
}

// ZoneClassifier converts detected signals into a scored zone verdict,
// consulting the LLM provider for low-confidence cases.
type ZoneClassifier struct {
	detector *SignalDetector
	llm      LLMClient
	throttle *ratelimit.Throttle
	logger   *zap.Logger
	now      func() time.Time
	stats    ClassifierStats
}

// NewZoneClassifier creates a classifier. llm may be nil, in which case the
// keyword result always stands.
func NewZoneClassifier(detector *SignalDetector, llm LLMClient, throttle *ratelimit.Throttle, logger *zap.Logger) *ZoneClassifier {
	return &ZoneClassifier{
		detector: detector,
		llm:      llm,
		throttle: throttle,
		logger:   logger,
		now:      time.Now,
	}
}

// Stats returns a snapshot of per-method classification counts.
func (c *ZoneClassifier) Stats() ClassifierStats {
	return c.stats
}

// Classify produces the classification for one email. LLM failures are
// absorbed into a fallback to the keyword result; this method does not fail.
func (c *ZoneClassifier) Classify(ctx context.Context, email *Email) *Classification {
	det := c.detector.Detect(email)

	cls := &Classification{
		EmailID:      email.ID,
		ThreadID:     email.ThreadID,
		Signals:      det.Signals,
		ClassifiedAt: c.now(),
	}

	if det.ForcedZone != nil {
		cls.Zone = *det.ForcedZone
		cls.Score = canonicalScores[*det.ForcedZone]
		cls.Confidence = 1.0
		cls.Method = MethodKeyword
		cls.Reasoning = fmt.Sprintf("precision rule forced zone %s", *det.ForcedZone)
		c.stats.Keyword++
		return cls
	}

	cls.Score = calculateScore(det.Signals)
	cls.Zone = zoneForScore(cls.Score)
	cls.Confidence = calculateConfidence(len(det.Signals))
	cls.Reasoning = summarizeSignals(det.Signals, cls.Score, cls.Zone)

	if cls.Confidence >= keywordConfidenceCutoff || c.llm == nil {
		cls.Method = MethodKeyword
		c.stats.Keyword++
		return cls
	}

	if err := c.classifyWithLLM(ctx, email, cls); err != nil {
		c.logger.Warn("LLM classification failed, falling back to keyword result",
			zap.String("email_id", email.ID),
			zap.Error(err))
		cls.Method = MethodFallback
		c.stats.Fallback++
		return cls
	}
	c.stats.LLM++
	return cls
}

// classifyWithLLM overwrites the keyword verdict in cls with the provider's
// verdict, merging the provider's signal labels into the signal list. Any
// provider error or out-of-enum zone leaves cls untouched and returns the
// error.
func (c *ZoneClassifier) classifyWithLLM(ctx context.Context, email *Email, cls *Classification) error {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter interrupted: %w", err)
		}
	}

	analysis, err := c.llm.ClassifyZone(ctx, email)
	if err != nil {
		return fmt.Errorf("provider call failed: %w", err)
	}
	switch analysis.Zone {
	case ZoneRed, ZoneYellow, ZoneGreen:
	default:
		return fmt.Errorf("provider returned invalid zone %q", analysis.Zone)
	}

	merged := cls.Signals
	for _, label := range analysis.Signals {
		merged = append(merged, Signal{Type: SignalLLM, Keyword: label})
	}

	cls.Zone = analysis.Zone
	cls.Score = canonicalScores[analysis.Zone]
	cls.Confidence = analysis.Confidence
	cls.Signals = merged
	cls.Reasoning = analysis.Reasoning
	cls.Method = MethodLLM
	return nil
}

// ClassifyBatch classifies emails strictly sequentially. A hard per-email
// failure degrades that email to a yellow fallback verdict instead of
// aborting the batch.
func (c *ZoneClassifier) ClassifyBatch(ctx context.Context, emails []*Email) []*Classification {
	results := make([]*Classification, 0, len(emails))
	for _, email := range emails {
		results = append(results, c.classifySafely(ctx, email))
	}
	return results
}

func (c *ZoneClassifier) classifySafely(ctx context.Context, email *Email) (cls *Classification) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Classification panicked, degrading to fallback",
				zap.String("email_id", email.ID),
				zap.Any("panic", r))
			c.stats.Fallback++
			cls = &Classification{
				EmailID:      email.ID,
				ThreadID:     email.ThreadID,
				Zone:         ZoneYellow,
				Score:        canonicalScores[ZoneYellow],
				Confidence:   0.3,
				Reasoning:    "classification failed, degraded to default",
				Method:       MethodFallback,
				ClassifiedAt: c.now(),
			}
		}
	}()
	return c.Classify(ctx, email)
}

// calculateScore applies fixed per-signal weights to the baseline and clamps
// to [0,100]. When noise signals and an action-required signal co-occur, the
// final score is floored at the red threshold so true action items are never
// suppressed by noise heuristics.
func calculateScore(signals []Signal) int {
	score := baselineScore
	hasNegative := false
	hasAction := false

	for _, s := range signals {
		score += signalWeight(s)
		if s.IsNegative() {
			hasNegative = true
		}
		if s.Type == SignalActionRequired {
			hasAction = true
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	if hasNegative && hasAction && score < redThreshold {
		score = redThreshold
	}
	return score
}

func signalWeight(s Signal) int {
	switch s.Type {
	case SignalActionRequired:
		return 40
	case SignalUrgency:
		switch s.Level {
		case UrgencyHigh:
			return 25
		case UrgencyMedium:
			return 10
		default:
			return -5
		}
	case SignalVIPSender:
		return 15
	case SignalGmailImportant:
		return 5
	case SignalGmailStarred:
		return 15
	case SignalThreadReply:
		return 10
	case SignalFrequentSender:
		if s.Count > 5 {
			return 5
		}
		return s.Count
	case SignalNewsletter:
		return -30
	case SignalSeasonalGreeting:
		return -40
	case SignalAutoNotification:
		return -25
	case SignalMarketing:
		return -20
	case SignalDuplicate:
		if s.Count >= 3 {
			return -35
		}
		return -20
	}
	return 0
}

func zoneForScore(score int) Zone {
	switch {
	case score >= redThreshold:
		return ZoneRed
	case score >= yellowThreshold:
		return ZoneYellow
	default:
		return ZoneGreen
	}
}

func calculateConfidence(signalCount int) float64 {
	switch {
	case signalCount == 0:
		return 0.3
	case signalCount >= 3:
		return 0.9
	default:
		return 0.5 + 0.15*float64(signalCount)
	}
}

// summarizeSignals builds the human-readable reasoning string for a keyword
// classification.
func summarizeSignals(signals []Signal, score int, zone Zone) string {
	if len(signals) == 0 {
		return fmt.Sprintf("no signals detected; baseline score %d → %s", score, zone)
	}

	counts := make(map[string]int)
	for _, s := range signals {
		name := string(s.Type)
		if s.Type == SignalUrgency {
			name = fmt.Sprintf("%s-urgency", s.Level)
		}
		counts[name]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if counts[name] > 1 {
			parts = append(parts, fmt.Sprintf("%s ×%d", name, counts[name]))
		} else {
			parts = append(parts, name)
		}
	}
	return fmt.Sprintf("signals: %s; score %d → %s", strings.Join(parts, ", "), score, zone)
}
