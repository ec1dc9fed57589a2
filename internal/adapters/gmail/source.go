// Package gmail implements the MailSource port against the Gmail API. The
// adapter expects an already-authorized credentials file or HTTP client;
// acquiring OAuth tokens is the caller's concern.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gardenos/mailgarden/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Source fetches and normalizes messages from one Gmail mailbox.
type Source struct {
	svc    *gmail.Service
	userID string
	query  string
	logger *zap.Logger

	seen map[string]bool
}

// NewSource creates a Gmail-backed mail source. userID is usually "me";
// query is a Gmail search expression selecting which mail to sync.
func NewSource(ctx context.Context, credentialsFile, userID, query string, logger *zap.Logger) (*Source, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Source{
		svc:    svc,
		userID: userID,
		query:  query,
		logger: logger,
		seen:   make(map[string]bool),
	}, nil
}

// Fetch lists messages matching the configured query and returns the ones
// not yet seen this process lifetime, normalized.
func (s *Source) Fetch(ctx context.Context, max int) ([]*core.Email, error) {
	listResp, err := s.svc.Users.Messages.List(s.userID).
		Q(s.query).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	emails := make([]*core.Email, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if s.seen[ref.Id] {
			continue
		}
		email, err := s.getMessage(ctx, ref.Id)
		if err != nil {
			s.logger.Warn("Failed to fetch message, skipping",
				zap.String("message_id", ref.Id),
				zap.Error(err))
			continue
		}
		s.seen[ref.Id] = true
		emails = append(emails, email)
	}

	s.logger.Debug("Fetched email batch",
		zap.Int("listed", len(listResp.Messages)),
		zap.Int("new", len(emails)))
	return emails, nil
}

// getMessage retrieves one message in full format and normalizes it.
func (s *Source) getMessage(ctx context.Context, id string) (*core.Email, error) {
	msg, err := s.svc.Users.Messages.Get(s.userID, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return s.normalize(msg), nil
}

// GetMessageMetadata retrieves one message with headers only.
func (s *Source) GetMessageMetadata(ctx context.Context, id string) (*core.Email, error) {
	msg, err := s.svc.Users.Messages.Get(s.userID, id).
		Format("metadata").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return s.normalize(msg), nil
}

// GetThread retrieves every message of a conversation, normalized in order.
func (s *Source) GetThread(ctx context.Context, threadID string) ([]*core.Email, error) {
	thread, err := s.svc.Users.Threads.Get(s.userID, threadID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}
	emails := make([]*core.Email, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		emails = append(emails, s.normalize(msg))
	}
	return emails, nil
}

// normalize converts a Gmail message into the pipeline's Email shape.
// Missing parts map to zero values; nothing here is fatal.
func (s *Source) normalize(msg *gmail.Message) *core.Email {
	email := &core.Email{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		Snippet:    msg.Snippet,
		Labels:     msg.LabelIds,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}
	for _, label := range msg.LabelIds {
		switch label {
		case "IMPORTANT":
			email.Important = true
		case "STARRED":
			email.Starred = true
		}
	}

	if msg.Payload == nil {
		return email
	}
	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "from":
			if addr, err := mail.ParseAddress(header.Value); err == nil {
				email.FromName = addr.Name
				email.FromAddress = strings.ToLower(addr.Address)
			} else {
				email.FromAddress = strings.ToLower(header.Value)
			}
		case "to":
			for _, part := range strings.Split(header.Value, ",") {
				if addr, err := mail.ParseAddress(strings.TrimSpace(part)); err == nil {
					email.To = append(email.To, strings.ToLower(addr.Address))
				}
			}
		case "subject":
			email.Subject = header.Value
		case "in-reply-to":
			email.InReplyTo = header.Value
		}
	}
	email.Body = extractBody(msg.Payload)
	return email
}

// extractBody walks the payload tree for the first text/plain part.
func extractBody(payload *gmail.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" && strings.HasPrefix(payload.MimeType, "text/") {
		if decoded, ok := decodeBody(payload.Body.Data); ok {
			return decoded
		}
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if decoded, ok := decodeBody(part.Body.Data); ok {
				return decoded
			}
		}
	}
	for _, part := range payload.Parts {
		if body := extractBody(part); body != "" {
			return body
		}
	}
	return ""
}

// decodeBody decodes base64url part data, with or without padding.
func decodeBody(data string) (string, bool) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	return "", false
}
