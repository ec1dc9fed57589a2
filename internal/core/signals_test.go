package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDetector(cfg DetectorConfig) *SignalDetector {
	return NewSignalDetector(cfg, zap.NewNop())
}

func signalTypes(signals []Signal) []SignalType {
	types := make([]SignalType, 0, len(signals))
	for _, s := range signals {
		types = append(types, s.Type)
	}
	return types
}

func TestDetectPrecisionRuleShortCircuit(t *testing.T) {
	red := ZoneRed
	detector := newTestDetector(DetectorConfig{
		PrecisionRules: []PrecisionRule{
			{Domain: "bigcorp.com", Subject: "contract", Zone: &red},
		},
	})

	det := detector.Detect(&Email{
		ID:          "m1",
		FromAddress: "ceo@bigcorp.com",
		Subject:     "Contract renewal - please unsubscribe note below",
		Body:        "urgent asap happy new year special offer",
	})

	require.NotNil(t, det.ForcedZone)
	assert.Equal(t, ZoneRed, *det.ForcedZone)
	// Nothing else is evaluated, even with noise and urgency keywords
	// everywhere in the body.
	require.Len(t, det.Signals, 1)
	assert.Equal(t, SignalVIPSender, det.Signals[0].Type)
	assert.Equal(t, "bigcorp.com", det.Signals[0].Keyword)
}

func TestDetectPrecisionRuleDomainOnly(t *testing.T) {
	detector := newTestDetector(DetectorConfig{
		PrecisionRules: []PrecisionRule{
			{Domain: "bigcorp.com"},
		},
	})

	det := detector.Detect(&Email{
		ID:          "m1",
		FromAddress: "ceo@bigcorp.com",
		Subject:     "Weekly update",
		Body:        "please review the attached numbers",
	})

	assert.Nil(t, det.ForcedZone)
	types := signalTypes(det.Signals)
	assert.Contains(t, types, SignalVIPSender)
	// Detection continues past a domain-only match.
	assert.Contains(t, types, SignalActionRequired)
}

func TestDetectPrecisionRuleFirstMatchWins(t *testing.T) {
	red := ZoneRed
	green := ZoneGreen
	detector := newTestDetector(DetectorConfig{
		PrecisionRules: []PrecisionRule{
			{Domain: "bigcorp.com", Subject: "invoice", Zone: &green},
			{Domain: "bigcorp.com", Subject: "invoice", Zone: &red},
		},
	})

	det := detector.Detect(&Email{
		FromAddress: "ap@bigcorp.com",
		Subject:     "Invoice 443",
	})

	require.NotNil(t, det.ForcedZone)
	assert.Equal(t, ZoneGreen, *det.ForcedZone)
}

func TestDetectNoiseSignals(t *testing.T) {
	tests := []struct {
		name  string
		email *Email
		want  SignalType
	}{
		{
			name:  "newsletter keyword",
			email: &Email{FromAddress: "news@media.io", Body: "Click unsubscribe to stop receiving this"},
			want:  SignalNewsletter,
		},
		{
			name:  "newsletter domain list",
			email: &Email{FromAddress: "hello@substack.com", Body: "plain body"},
			want:  SignalNewsletter,
		},
		{
			name:  "seasonal greeting english",
			email: &Email{FromAddress: "partner@acme.com", Subject: "Happy New Year to you and your team"},
			want:  SignalSeasonalGreeting,
		},
		{
			name:  "seasonal greeting chinese",
			email: &Email{FromAddress: "partner@acme.com", Subject: "新年快樂"},
			want:  SignalSeasonalGreeting,
		},
		{
			name:  "auto notification sender prefix",
			email: &Email{FromAddress: "no-reply@github.com", Subject: "Build finished"},
			want:  SignalAutoNotification,
		},
		{
			name:  "auto notification keyword",
			email: &Email{FromAddress: "ci@corp.com", Body: "This is an automated message, do not reply"},
			want:  SignalAutoNotification,
		},
		{
			name:  "marketing",
			email: &Email{FromAddress: "sales@shop.com", Subject: "Special offer inside"},
			want:  SignalMarketing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := newTestDetector(DetectorConfig{
				NewsletterDomains: []string{"substack.com"},
			})
			det := detector.Detect(tt.email)
			assert.Contains(t, signalTypes(det.Signals), tt.want)
			assert.Nil(t, det.ForcedZone)
		})
	}
}

func TestDetectDuplicateCounts(t *testing.T) {
	detector := newTestDetector(DetectorConfig{})
	email := &Email{
		FromAddress: "alerts@vendor.com",
		Subject:     "Scheduled maintenance window",
	}

	first := detector.Detect(email)
	assert.NotContains(t, signalTypes(first.Signals), SignalDuplicate)

	second := detector.Detect(email)
	var dup Signal
	for _, s := range second.Signals {
		if s.Type == SignalDuplicate {
			dup = s
		}
	}
	require.Equal(t, SignalDuplicate, dup.Type)
	assert.Equal(t, 2, dup.Count)

	third := detector.Detect(email)
	for _, s := range third.Signals {
		if s.Type == SignalDuplicate {
			assert.Equal(t, 3, s.Count)
		}
	}
}

func TestDetectFrequentSender(t *testing.T) {
	detector := newTestDetector(DetectorConfig{})

	var det Detection
	for i := 0; i < 6; i++ {
		det = detector.Detect(&Email{
			FromAddress: "colleague@corp.com",
			Subject:     fmt.Sprintf("topic %d", i),
		})
	}

	var frequent Signal
	for _, s := range det.Signals {
		if s.Type == SignalFrequentSender {
			frequent = s
		}
	}
	require.Equal(t, SignalFrequentSender, frequent.Type)
	assert.Equal(t, 6, frequent.Count)
}

func TestDetectPositiveSignals(t *testing.T) {
	detector := newTestDetector(DetectorConfig{
		VIPDomains: []string{"keyaccount.com"},
	})

	det := detector.Detect(&Email{
		ID:          "m9",
		FromAddress: "buyer@keyaccount.com",
		Subject:     "Approval needed: PO draft, urgent",
		Body:        "need this asap, deadline is friday",
		Important:   true,
		Starred:     true,
		InReplyTo:   "<prev@keyaccount.com>",
	})

	types := signalTypes(det.Signals)
	assert.Contains(t, types, SignalActionRequired)
	assert.Contains(t, types, SignalVIPSender)
	assert.Contains(t, types, SignalGmailImportant)
	assert.Contains(t, types, SignalGmailStarred)
	assert.Contains(t, types, SignalThreadReply)

	// Urgency emits one signal per matching keyword: urgent, asap, deadline.
	high, medium := 0, 0
	for _, s := range det.Signals {
		if s.Type == SignalUrgency {
			switch s.Level {
			case UrgencyHigh:
				high++
			case UrgencyMedium:
				medium++
			}
		}
	}
	assert.Equal(t, 2, high)
	assert.Equal(t, 1, medium)
}

func TestDetectBilingualKeywords(t *testing.T) {
	detector := newTestDetector(DetectorConfig{})

	det := detector.Detect(&Email{
		FromAddress: "manager@corp.com.tw",
		Subject:     "簽核: 採購單",
		Body:        "緊急,請於今日完成",
	})

	types := signalTypes(det.Signals)
	assert.Contains(t, types, SignalActionRequired)
	assert.Contains(t, types, SignalUrgency)
}

func TestHasOpportunityKeywords(t *testing.T) {
	detector := newTestDetector(DetectorConfig{})

	assert.True(t, detector.HasOpportunityKeywords(&Email{Subject: "Request for quotation"}))
	assert.True(t, detector.HasOpportunityKeywords(&Email{Body: "我們想詢價"}))
	assert.False(t, detector.HasOpportunityKeywords(&Email{Subject: "Lunch on friday?"}))
}

func TestSubjectPrefixRuneSafe(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "報"
	}
	prefix := subjectPrefix(long)
	assert.Equal(t, duplicateSubjectPrefixLen, len([]rune(prefix)))
}
