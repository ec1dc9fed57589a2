package smtpsource

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleMessage = "Message-Id: <abc123@corp.com>\r\n" +
	"From: Jordan Lee <jordan@corp.com>\r\n" +
	"Subject: Approval needed: budget\r\n" +
	"In-Reply-To: <parent@corp.com>\r\n" +
	"Date: Mon, 10 Mar 2025 09:00:00 +0000\r\n" +
	"\r\n" +
	"Please approve before the meeting.\r\n"

func TestDataQueuesNormalizedEmail(t *testing.T) {
	source := NewSource("127.0.0.1:0", zap.NewNop())
	sess := &session{source: source}
	require.NoError(t, sess.Mail("jordan@corp.com", nil))
	require.NoError(t, sess.Rcpt("triage@corp.com", nil))

	require.NoError(t, sess.Data(strings.NewReader(sampleMessage)))

	emails, err := source.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, emails, 1)

	email := emails[0]
	assert.Equal(t, "<abc123@corp.com>", email.ID)
	assert.Equal(t, "jordan@corp.com", email.FromAddress)
	assert.Equal(t, "Jordan Lee", email.FromName)
	assert.Equal(t, "Approval needed: budget", email.Subject)
	assert.Equal(t, "<parent@corp.com>", email.InReplyTo)
	assert.Equal(t, "<parent@corp.com>", email.ThreadID, "reply threads onto its parent")
	assert.Equal(t, []string{"triage@corp.com"}, email.To)
	assert.Contains(t, email.Body, "Please approve")
	assert.Equal(t, 2025, email.ReceivedAt.Year())
}

func TestNormalizeDerivesIDWithoutMessageID(t *testing.T) {
	source := NewSource("127.0.0.1:0", zap.NewNop())
	sess := &session{source: source}

	raw := "From: a@b.com\r\nSubject: hi\r\n\r\nbody\r\n"
	require.NoError(t, sess.Data(strings.NewReader(raw)))

	emails, err := source.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.NotEmpty(t, emails[0].ID)
	assert.Equal(t, emails[0].ID, emails[0].ThreadID, "fresh messages start their own thread")
}

func TestNormalizePrefersReferencesForThreading(t *testing.T) {
	source := NewSource("127.0.0.1:0", zap.NewNop())
	sess := &session{source: source}

	raw := "From: a@b.com\r\n" +
		"References: <root@b.com> <mid@b.com>\r\n" +
		"In-Reply-To: <mid@b.com>\r\n" +
		"\r\nbody\r\n"
	require.NoError(t, sess.Data(strings.NewReader(raw)))

	emails, err := source.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "<root@b.com>", emails[0].ThreadID)
}

func TestFetchHonorsBatchLimit(t *testing.T) {
	source := NewSource("127.0.0.1:0", zap.NewNop())
	sess := &session{source: source}

	for i := 0; i < 5; i++ {
		require.NoError(t, sess.Data(strings.NewReader(sampleMessage)))
	}

	first, err := source.Fetch(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	rest, err := source.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestFetchEmptyQueueReturnsNothing(t *testing.T) {
	source := NewSource("127.0.0.1:0", zap.NewNop())

	emails, err := source.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, emails)
}
