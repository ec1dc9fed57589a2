// Package smtpsource implements the MailSource port as an SMTP ingest
// server. Mail relayed to the listener is parsed, normalized and queued for
// the next sync cycle; nothing is rewritten or forwarded.
package smtpsource

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/gardenos/mailgarden/internal/core"
	"go.uber.org/zap"
)

// queueCapacity bounds how many parsed messages wait for the next cycle.
// When the queue is full the sender gets a temporary failure and retries.
const queueCapacity = 1024

// Source is an SMTP server that feeds the pipeline.
type Source struct {
	listenAddr string
	logger     *zap.Logger
	server     *smtp.Server
	queue      chan *core.Email
}

// NewSource creates an SMTP ingest source listening on listenAddr.
func NewSource(listenAddr string, logger *zap.Logger) *Source {
	return &Source{
		listenAddr: listenAddr,
		logger:     logger,
		queue:      make(chan *core.Email, queueCapacity),
	}
}

// Start begins accepting SMTP connections.
func (s *Source) Start() error {
	s.server = smtp.NewServer(&backend{source: s})
	s.server.Addr = s.listenAddr
	s.server.Domain = "localhost"
	s.server.ReadTimeout = 30 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.MaxMessageBytes = 30 * 1024 * 1024
	s.server.MaxRecipients = 50
	s.server.AllowInsecureAuth = true

	s.logger.Info("SMTP ingest source starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				s.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Stop shuts the SMTP server down.
func (s *Source) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// Fetch drains up to max queued messages without blocking.
func (s *Source) Fetch(ctx context.Context, max int) ([]*core.Email, error) {
	var emails []*core.Email
	for len(emails) < max {
		select {
		case email := <-s.queue:
			emails = append(emails, email)
		case <-ctx.Done():
			return emails, ctx.Err()
		default:
			return emails, nil
		}
	}
	return emails, nil
}

// enqueue hands a parsed message to the next cycle.
func (s *Source) enqueue(email *core.Email) error {
	select {
	case s.queue <- email:
		return nil
	default:
		return fmt.Errorf("ingest queue full")
	}
}

// backend implements the go-smtp Backend interface
type backend struct {
	source *Source
}

// NewSession creates a new SMTP session
func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{
		source:     b.source,
		recipients: make([]string, 0),
	}, nil
}

// session implements the go-smtp Session interface
type session struct {
	source     *Source
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *session) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Logout is called when the session ends; nothing to release.
func (s *session) Logout() error {
	return nil
}

// AuthPlain handles PLAIN authentication (not needed for ingest)
func (s *session) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data parses the message and queues it for the next sync cycle.
func (s *session) Data(r io.Reader) error {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		s.source.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		s.source.logger.Error("Failed to read message body", zap.Error(err))
		return err
	}

	email := s.normalize(msg, string(bodyBytes))
	if err := s.source.enqueue(email); err != nil {
		s.source.logger.Warn("Dropping message, ingest queue full",
			zap.String("from", email.FromAddress))
		return &smtp.SMTPError{Code: 451, Message: "try again later"}
	}

	s.source.logger.Debug("Queued inbound message",
		zap.String("message_id", email.ID),
		zap.String("from", email.FromAddress))
	return nil
}

// normalize maps an RFC 822 message onto the pipeline's Email shape. SMTP
// carries no mailbox ids, so message ids are derived from the Message-ID
// header or hashed from the envelope.
func (s *session) normalize(msg *mail.Message, body string) *core.Email {
	email := &core.Email{
		To:         s.recipients,
		Body:       body,
		ReceivedAt: time.Now(),
	}

	from := msg.Header.Get("From")
	if from == "" {
		from = s.sender
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		email.FromName = addr.Name
		email.FromAddress = strings.ToLower(addr.Address)
	} else {
		email.FromAddress = strings.ToLower(from)
	}

	email.Subject = msg.Header.Get("Subject")
	email.InReplyTo = msg.Header.Get("In-Reply-To")

	if mid := msg.Header.Get("Message-Id"); mid != "" {
		email.ID = mid
	} else {
		sum := sha1.Sum([]byte(email.FromAddress + email.Subject + body))
		email.ID = fmt.Sprintf("%x", sum[:8])
	}
	if refs := msg.Header.Get("References"); refs != "" {
		email.ThreadID = strings.Fields(refs)[0]
	} else if email.InReplyTo != "" {
		email.ThreadID = email.InReplyTo
	} else {
		email.ThreadID = email.ID
	}

	if date, err := msg.Header.Date(); err == nil {
		email.ReceivedAt = date
	}
	return email
}
