package core

import (
	"time"
)

// Zone is the urgency tier assigned to an email
type Zone string

const (
	ZoneRed    Zone = "red"
	ZoneYellow Zone = "yellow"
	ZoneGreen  Zone = "green"
)

// ParseZone converts a configuration or model response string into a Zone.
func ParseZone(s string) (Zone, bool) {
	switch Zone(s) {
	case ZoneRed, ZoneYellow, ZoneGreen:
		return Zone(s), true
	}
	return "", false
}

// Email represents a normalized mailbox message. It is read-only to the
// pipeline; missing fields default to their zero values.
type Email struct {
	ID          string
	ThreadID    string
	FromName    string
	FromAddress string
	To          []string
	Subject     string
	Snippet     string
	Body        string
	Labels      []string
	Important   bool
	Starred     bool
	InReplyTo   string
	ReceivedAt  time.Time
}

// SenderDomain returns the domain part of the sender address, or "" if the
// address is malformed.
func (e *Email) SenderDomain() string {
	for i := len(e.FromAddress) - 1; i >= 0; i-- {
		if e.FromAddress[i] == '@' {
			return e.FromAddress[i+1:]
		}
	}
	return ""
}

// IsReply reports whether the message is a reply within an existing thread.
func (e *Email) IsReply() bool {
	return e.InReplyTo != ""
}

// SignalType identifies the category of an observation made about one email
type SignalType string

const (
	SignalActionRequired   SignalType = "action-required"
	SignalUrgency          SignalType = "urgency"
	SignalVIPSender        SignalType = "vip-sender"
	SignalGmailImportant   SignalType = "gmail-important"
	SignalGmailStarred     SignalType = "gmail-starred"
	SignalThreadReply      SignalType = "thread-reply"
	SignalFrequentSender   SignalType = "frequent-sender"
	SignalNewsletter       SignalType = "newsletter"
	SignalSeasonalGreeting SignalType = "seasonal-greeting"
	SignalAutoNotification SignalType = "auto-notification"
	SignalMarketing        SignalType = "marketing"
	SignalDuplicate        SignalType = "duplicate"
	SignalLLM              SignalType = "llm"
)

// UrgencyLevel grades urgency signals
type UrgencyLevel string

const (
	UrgencyHigh   UrgencyLevel = "high"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyLow    UrgencyLevel = "low"
)

// Signal is one tagged observation derived from an email. Only the fields
// relevant to the type are populated: Level for urgency signals, Keyword for
// keyword matches and LLM-supplied labels, Count for duplicate and
// frequent-sender signals.
type Signal struct {
	Type    SignalType   `json:"type"`
	Level   UrgencyLevel `json:"level,omitempty"`
	Keyword string       `json:"keyword,omitempty"`
	Count   int          `json:"count,omitempty"`
}

// IsNegative reports whether the signal is a noise heuristic that lowers
// the score.
func (s Signal) IsNegative() bool {
	switch s.Type {
	case SignalNewsletter, SignalSeasonalGreeting, SignalAutoNotification, SignalMarketing, SignalDuplicate:
		return true
	}
	return false
}

// Detection is the full output of the signal detector for one email. A
// non-nil ForcedZone means a precision rule matched on both domain and
// subject and all other scoring must be skipped.
type Detection struct {
	ForcedZone *Zone
	Signals    []Signal
}

// Method records which path produced a classification
type Method string

const (
	MethodKeyword  Method = "keyword"
	MethodLLM      Method = "llm"
	MethodFallback Method = "fallback"
)

// Classification is the immutable result of classifying one email.
// Score and Zone always agree under the score-to-zone mapping unless a
// forced-zone rule was applied.
type Classification struct {
	EmailID      string    `json:"email_id"`
	ThreadID     string    `json:"thread_id"`
	Zone         Zone      `json:"zone"`
	Score        int       `json:"score"`
	Confidence   float64   `json:"confidence"`
	Signals      []Signal  `json:"signals"`
	Reasoning    string    `json:"reasoning"`
	Method       Method    `json:"method"`
	ClassifiedAt time.Time `json:"classified_at"`
}

// HasSignal reports whether any signal of the given type is present.
func (c *Classification) HasSignal(t SignalType) bool {
	for _, s := range c.Signals {
		if s.Type == t {
			return true
		}
	}
	return false
}

// HasUrgency reports whether an urgency signal at the given level is present.
func (c *Classification) HasUrgency(level UrgencyLevel) bool {
	for _, s := range c.Signals {
		if s.Type == SignalUrgency && s.Level == level {
			return true
		}
	}
	return false
}

// SeedType classifies the follow-up obligation a seed represents
type SeedType string

const (
	SeedDecisionNeeded    SeedType = "decision-needed"
	SeedOpportunity       SeedType = "opportunity"
	SeedFollowUp          SeedType = "follow-up"
	SeedRelationshipBuild SeedType = "relationship-build"
)

// SeedStatus is the lifecycle state of a seed
type SeedStatus string

const (
	SeedPlanted   SeedStatus = "planted"
	SeedHarvested SeedStatus = "harvested"
	SeedExpired   SeedStatus = "expired"
)

// Seed is a typed, time-boxed follow-up obligation spawned from a
// classification. Once harvested it is terminal and never mutated again.
type Seed struct {
	ID          string        `json:"id"`
	Type        SeedType      `json:"type"`
	Status      SeedStatus    `json:"status"`
	EmailID     string        `json:"email_id"`
	ThreadID    string        `json:"thread_id"`
	Zone        Zone          `json:"zone"`
	Score       int           `json:"score"`
	ShelfLife   time.Duration `json:"shelf_life"`
	PlantedAt   time.Time     `json:"planted_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Escalated   bool          `json:"escalated"`
	HarvestedAt *time.Time    `json:"harvested_at,omitempty"`
	Outcome     string        `json:"outcome,omitempty"`
}

// Trajectory is the directional trend of a thread's urgency
type Trajectory string

const (
	TrajectoryNew     Trajectory = "new"
	TrajectoryHeating Trajectory = "heating"
	TrajectoryCooling Trajectory = "cooling"
	TrajectorySteady  Trajectory = "steady"
)

// ThreadMessage is one entry in a thread's message history
type ThreadMessage struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Zone       Zone      `json:"zone"`
	ReceivedAt time.Time `json:"received_at"`
}

// Thread aggregates the messages of one conversation along with its derived
// heat metrics. Threads only grow; they are never deleted.
type Thread struct {
	ID             string          `json:"id"`
	Subject        string          `json:"subject"`
	Participants   map[string]bool `json:"participants"`
	Messages       []ThreadMessage `json:"messages"`
	Velocity       float64         `json:"velocity"`
	Temperature    int             `json:"temperature"`
	Trajectory     Trajectory      `json:"trajectory"`
	FirstMessageAt time.Time       `json:"first_message_at"`
	LastMessageAt  time.Time       `json:"last_message_at"`
}

// InsightType identifies a derived thread observation
type InsightType string

const (
	InsightHotThread     InsightType = "hot-thread"
	InsightHighVelocity  InsightType = "high-velocity"
	InsightMultiParty    InsightType = "multi-party-convergence"
)

// Insight is a deduplicated observation about a thread
type Insight struct {
	ThreadID  string         `json:"thread_id"`
	Type      InsightType    `json:"type"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// FeedbackType identifies a mirror finding
type FeedbackType string

const (
	FeedbackLowConfidence  FeedbackType = "low-confidence"
	FeedbackRedHeavy       FeedbackType = "red-heavy"
	FeedbackGreenHeavy     FeedbackType = "green-heavy"
	FeedbackSeedOverload   FeedbackType = "seed-overload"
	FeedbackHighEscalation FeedbackType = "high-escalation"
)

// Feedback is one threshold crossing raised by a review
type Feedback struct {
	Type     FeedbackType `json:"type"`
	Message  string       `json:"message"`
	Severity string       `json:"severity"`
}

// Review is a periodic audit of recent classifier and seed output
type Review struct {
	Cycle             int          `json:"cycle"`
	WindowSize        int          `json:"window_size"`
	AvgConfidence     float64      `json:"avg_confidence"`
	LowConfidenceRate float64      `json:"low_confidence_rate"`
	ZoneDistribution  map[Zone]int `json:"zone_distribution"`
	ActiveSeeds       int          `json:"active_seeds"`
	EscalationRate    float64      `json:"escalation_rate"`
	Feedback          []Feedback   `json:"feedback"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Trend is the direction of average classifier confidence across cycles
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// Recommendation is a structural adjustment proposed by evolution
type Recommendation struct {
	FeedbackType FeedbackType `json:"feedback_type"`
	Occurrences  int          `json:"occurrences"`
	Priority     string       `json:"priority"`
	Message      string       `json:"message"`
}

// Evolution aggregates recurring feedback into recommendations every Nth
// review cycle
type Evolution struct {
	Cycle           int              `json:"cycle"`
	Recommendations []Recommendation `json:"recommendations"`
	ConfidenceTrend Trend            `json:"confidence_trend"`
	CreatedAt       time.Time        `json:"created_at"`
}
