// Package conversation manages the message thread attached to each request.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/enjaz/request-service/internal/logging"
	"github.com/enjaz/request-service/internal/metrics"
	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
	"github.com/google/uuid"
)

// Service posts and lists thread messages.
type Service struct {
	messages store.MessageStore
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// New creates a conversation service. m may be nil.
func New(messages store.MessageStore, m *metrics.Metrics) *Service {
	return &Service{
		messages: messages,
		metrics:  m,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithClock replaces time.Now. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PostMessage appends content to the request's thread. isAdmin marks staff
// authorship and only affects presentation.
func (s *Service) PostMessage(ctx context.Context, requestID, senderID, senderName, content string, isAdmin bool) (*models.Message, error) {
	if err := store.ValidateMessageContent(content); err != nil {
		return nil, err
	}
	if strings.TrimSpace(senderID) == "" {
		return nil, fmt.Errorf("%w: sender id is required", store.ErrInvalidArgument)
	}
	msg := models.Message{
		ID:         s.newID(),
		RequestID:  requestID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		IsAdmin:    isAdmin,
		CreatedAt:  s.now().UTC().Truncate(time.Microsecond),
	}
	saved, err := s.messages.InsertMessage(ctx, msg)
	if err != nil {
		s.metrics.StoreError("post_message", store.ErrorKind(err))
		return nil, err
	}
	s.metrics.MessagePosted(isAdmin)
	logging.Info("message posted", map[string]interface{}{
		"request_id": requestID,
		"message_id": saved.ID,
		"sender_id":  senderID,
		"is_admin":   isAdmin,
	})
	return saved, nil
}

// ListMessages returns the thread oldest first.
func (s *Service) ListMessages(ctx context.Context, requestID string) ([]models.Message, error) {
	msgs, err := s.messages.ListMessages(ctx, requestID)
	if err != nil {
		s.metrics.StoreError("list_messages", store.ErrorKind(err))
		return nil, err
	}
	return msgs, nil
}
