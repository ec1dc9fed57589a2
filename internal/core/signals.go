package core

import (
	"strings"

	"go.uber.org/zap"
)

// PrecisionRule routes mail from a sender domain, optionally narrowed by a
// subject substring, optionally forcing a zone. Rules are evaluated in order
// and the first match wins.
type PrecisionRule struct {
	Domain  string
	Subject string
	Zone    *Zone
}

// DetectorConfig carries the rule and membership lists the signal detector
// works from.
type DetectorConfig struct {
	PrecisionRules    []PrecisionRule
	VIPAddresses      []string
	VIPDomains        []string
	NewsletterDomains []string
}

// frequentSenderThreshold is how many prior messages from one address it
// takes before the frequent-sender signal fires.
const frequentSenderThreshold = 5

// duplicateSubjectPrefixLen bounds the subject prefix used as the duplicate
// detection key.
const duplicateSubjectPrefixLen = 50

// SignalDetector extracts weighted signals from normalized emails. The
// sender and subject frequency counters are the only state it keeps; they
// are owned per instance so pipelines for different tenants never share
// history.
type SignalDetector struct {
	cfg    DetectorConfig
	logger *zap.Logger

	senderHistory  map[string]int
	subjectHistory map[string]int
}

// NewSignalDetector creates a signal detector with empty frequency history.
func NewSignalDetector(cfg DetectorConfig, logger *zap.Logger) *SignalDetector {
	return &SignalDetector{
		cfg:            cfg,
		logger:         logger,
		senderHistory:  make(map[string]int),
		subjectHistory: make(map[string]int),
	}
}

// Detect derives the ordered signal list for one email, updating the
// frequency counters as a side effect. A precision rule matching on both
// domain and subject short-circuits every other category.
func (d *SignalDetector) Detect(email *Email) Detection {
	sender := strings.ToLower(email.FromAddress)
	domain := strings.ToLower(email.SenderDomain())
	subject := strings.ToLower(email.Subject)
	text := subject + " " + strings.ToLower(email.Snippet) + " " + strings.ToLower(email.Body)

	d.senderHistory[sender]++
	senderCount := d.senderHistory[sender]

	var signals []Signal

	// VIP precision rules, first match wins.
	vipMatched := false
	for _, rule := range d.cfg.PrecisionRules {
		if rule.Domain == "" || !strings.Contains(domain, strings.ToLower(rule.Domain)) {
			continue
		}
		if rule.Subject != "" {
			if !strings.Contains(subject, strings.ToLower(rule.Subject)) {
				continue
			}
			// Domain and subject both matched: forced routing, nothing
			// else is evaluated.
			d.logger.Debug("Precision rule short-circuit",
				zap.String("email_id", email.ID),
				zap.String("rule_domain", rule.Domain),
				zap.String("rule_subject", rule.Subject))
			return Detection{
				ForcedZone: rule.Zone,
				Signals:    []Signal{{Type: SignalVIPSender, Keyword: rule.Domain}},
			}
		}
		signals = append(signals, Signal{Type: SignalVIPSender, Keyword: rule.Domain})
		vipMatched = true
		break
	}

	// Negative categories, at most one signal each.
	if d.isNewsletter(sender, domain, text) {
		signals = append(signals, Signal{Type: SignalNewsletter})
	}
	if kw, ok := firstMatch(text, seasonalKeywords); ok {
		signals = append(signals, Signal{Type: SignalSeasonalGreeting, Keyword: kw})
	}
	if d.isAutoNotification(sender, text) {
		signals = append(signals, Signal{Type: SignalAutoNotification})
	}
	if kw, ok := firstMatch(text, marketingKeywords); ok {
		signals = append(signals, Signal{Type: SignalMarketing, Keyword: kw})
	}

	// Duplicate detection on (sender domain, subject prefix).
	dupKey := domain + "|" + subjectPrefix(subject)
	d.subjectHistory[dupKey]++
	if count := d.subjectHistory[dupKey]; count > 1 {
		signals = append(signals, Signal{Type: SignalDuplicate, Count: count})
	}

	// Positive signals.
	if kw, ok := firstMatch(text, actionKeywords); ok {
		signals = append(signals, Signal{Type: SignalActionRequired, Keyword: kw})
	}
	for _, level := range []UrgencyLevel{UrgencyHigh, UrgencyMedium, UrgencyLow} {
		for _, kw := range urgencyKeywords[level] {
			if strings.Contains(text, kw) {
				signals = append(signals, Signal{Type: SignalUrgency, Level: level, Keyword: kw})
			}
		}
	}
	if !vipMatched && d.isVIP(sender, domain) {
		signals = append(signals, Signal{Type: SignalVIPSender})
	}
	if email.Important {
		signals = append(signals, Signal{Type: SignalGmailImportant})
	}
	if email.Starred {
		signals = append(signals, Signal{Type: SignalGmailStarred})
	}
	if email.IsReply() {
		signals = append(signals, Signal{Type: SignalThreadReply})
	}
	if senderCount > frequentSenderThreshold {
		signals = append(signals, Signal{Type: SignalFrequentSender, Count: senderCount})
	}

	return Detection{Signals: signals}
}

// HasOpportunityKeywords reports whether the email text contains an
// RFQ-adjacent keyword. Used by seed typing, not scoring.
func (d *SignalDetector) HasOpportunityKeywords(email *Email) bool {
	text := strings.ToLower(email.Subject + " " + email.Snippet + " " + email.Body)
	_, ok := firstMatch(text, opportunityKeywords)
	return ok
}

func (d *SignalDetector) isNewsletter(sender, domain, text string) bool {
	for _, nd := range d.cfg.NewsletterDomains {
		if strings.EqualFold(nd, domain) {
			return true
		}
	}
	_, ok := firstMatch(text, newsletterKeywords)
	return ok
}

func (d *SignalDetector) isAutoNotification(sender, text string) bool {
	if strings.HasPrefix(sender, "no-reply@") || strings.HasPrefix(sender, "noreply@") {
		return true
	}
	_, ok := firstMatch(text, autoNotificationKeywords)
	return ok
}

func (d *SignalDetector) isVIP(sender, domain string) bool {
	for _, addr := range d.cfg.VIPAddresses {
		if strings.EqualFold(addr, sender) {
			return true
		}
	}
	for _, vd := range d.cfg.VIPDomains {
		if strings.EqualFold(vd, domain) {
			return true
		}
	}
	return false
}

// firstMatch returns the first keyword from the list contained in text.
func firstMatch(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// subjectPrefix lowercases and truncates a subject to the duplicate key
// length, respecting rune boundaries.
func subjectPrefix(subject string) string {
	runes := []rune(subject)
	if len(runes) > duplicateSubjectPrefixLen {
		runes = runes[:duplicateSubjectPrefixLen]
	}
	return string(runes)
}
