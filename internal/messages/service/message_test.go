package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"freezefit/internal/access/accesstest"
	messageerrors "freezefit/internal/messages/errors"
	"freezefit/internal/messages/repository"
	"freezefit/internal/messages/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/events"
	"freezefit/pkg/logger"
	"freezefit/pkg/model"
	"freezefit/pkg/validation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryMessageRepository struct {
	mu        sync.Mutex
	messages  []*model.Message
	customers map[string]string
	clock     time.Time
}

func (m *memoryMessageRepository) Create(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Minute)
	msg.ID = uuid.NewString()
	msg.CreatedAt = m.clock
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memoryMessageRepository) thread(instituteID, customerID string) []*model.Message {
	out := []*model.Message{}
	for _, msg := range m.messages {
		if msg.InstituteID == instituteID && msg.CustomerID == customerID {
			out = append(out, msg)
		}
	}
	return out
}

func (m *memoryMessageRepository) FindConversation(_ context.Context, instituteID string, customerID string, limit int, offset int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	thread := m.thread(instituteID, customerID)
	if offset >= len(thread) {
		return []*model.Message{}, nil
	}
	return thread[offset:min(offset+limit, len(thread))], nil
}

func (m *memoryMessageRepository) CountConversation(_ context.Context, instituteID string, customerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.thread(instituteID, customerID))), nil
}

func (m *memoryMessageRepository) ListConversations(_ context.Context, userID string) ([]*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byThread := map[string]*model.Conversation{}
	out := []*model.Conversation{}
	for _, msg := range m.messages {
		if msg.CustomerID != userID && userID != owner.UserID {
			continue
		}
		key := msg.InstituteID + msg.CustomerID
		c, ok := byThread[key]
		if !ok {
			c = &model.Conversation{InstituteID: msg.InstituteID, CustomerID: msg.CustomerID}
			byThread[key] = c
			out = append(out, c)
		}
		c.LastMessage, c.LastSenderID, c.LastMessageAt = msg.Body, msg.SenderID, msg.CreatedAt
		if msg.SenderID != userID && msg.ReadAt == nil {
			c.UnreadCount++
		}
	}
	return out, nil
}

func (m *memoryMessageRepository) MarkRead(_ context.Context, instituteID string, customerID string, readerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := m.clock
	for _, msg := range m.thread(instituteID, customerID) {
		if msg.SenderID != readerID && msg.ReadAt == nil {
			msg.ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memoryMessageRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	conversations, _ := m.ListConversations(ctx, userID)
	n := 0
	for _, c := range conversations {
		n += c.UnreadCount
	}
	return n, nil
}

func (m *memoryMessageRepository) FindParties(_ context.Context, instituteID string, customerID string) (*repository.Parties, error) {
	name, ok := m.customers[customerID]
	if !ok {
		return nil, messageerrors.ErrCustomerNotFound
	}
	return &repository.Parties{
		InstituteName: "Eiszeit",
		OwnerID:       owner.UserID,
		OwnerEmail:    "studio@example.com",
		OwnerName:     "Studio",
		CustomerEmail: "kunde@example.com",
		CustomerName:  name,
	}, nil
}

var (
	instituteID = uuid.NewString()
	owner       = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleProvider}
	customer    = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleCustomer}
	stranger    = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleCustomer}
	otherOwner  = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleProvider}
	admin       = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleAdmin}
)

func newService() (MessageService, *memoryMessageRepository, *events.Recorder) {
	log := logger.Discard()
	repo := &memoryMessageRepository{
		customers: map[string]string{customer.UserID: "Mia Kühn", stranger.UserID: "Ben"},
		clock:     time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC),
	}
	publisher := &events.Recorder{}
	svc := NewMessageService(repo, validator.NewMessageValidator(validation.New(log)),
		accesstest.New().Set(instituteID, owner.UserID), publisher, &config.Config{Log: log})
	return svc, repo, publisher
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.StatusCode()
}

func TestSendToInstitute(t *testing.T) {
	svc, _, publisher := newService()

	msg, err := svc.SendToInstitute(context.Background(), customer, instituteID, &model.MessageRequest{Body: "  Habt ihr <b>Samstag</b> offen? "})
	require.NoError(t, err)

	assert.Equal(t, "Habt ihr Samstag offen?", msg.Body)
	assert.Equal(t, auth.RoleCustomer, msg.SenderRole)
	assert.Equal(t, customer.UserID, msg.CustomerID)

	require.Equal(t, []string{events.TypeMessageSent}, publisher.Types())
	payload := publisher.Events()[0].Payload.(events.MessageSent)
	assert.Equal(t, owner.UserID, payload.Recipient.UserID)
	assert.Equal(t, "Mia Kühn", payload.SenderName)
}

func TestSend_ProviderReply(t *testing.T) {
	svc, _, publisher := newService()

	msg, err := svc.Send(context.Background(), owner, instituteID, customer.UserID, &model.MessageRequest{Body: strings.Repeat("a", 300)})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleProvider, msg.SenderRole)

	payload := publisher.Events()[0].Payload.(events.MessageSent)
	assert.Equal(t, customer.UserID, payload.Recipient.UserID)
	assert.Equal(t, "Eiszeit", payload.SenderName)
	assert.Equal(t, strings.Repeat("a", 140)+"…", payload.Preview)

	msg, err = svc.Send(context.Background(), admin, instituteID, customer.UserID, &model.MessageRequest{Body: "Support hier"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, msg.SenderRole)
}

func TestSend_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		p          *auth.Principal
		customerID string
		body       string
		status     int
	}{
		{"anonymous", nil, customer.UserID, "hi", http.StatusUnauthorized},
		{"stranger writes into a thread", stranger, customer.UserID, "hi", http.StatusForbidden},
		{"other provider", otherOwner, customer.UserID, "hi", http.StatusForbidden},
		{"empty body", customer, customer.UserID, "   ", http.StatusUnprocessableEntity},
		{"body too long", customer, customer.UserID, strings.Repeat("x", 4001), http.StatusUnprocessableEntity},
		{"unknown customer", owner, uuid.NewString(), "hi", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, publisher := newService()
			_, err := svc.Send(context.Background(), tt.p, instituteID, tt.customerID, &model.MessageRequest{Body: tt.body})
			assert.Equal(t, tt.status, statusOf(t, err))
			assert.Empty(t, repo.messages)
			assert.Empty(t, publisher.Types())
		})
	}
}

func TestConversation_AndRead(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	_, err := svc.SendToInstitute(ctx, customer, instituteID, &model.MessageRequest{Body: "Erste Frage"})
	require.NoError(t, err)
	_, err = svc.SendToInstitute(ctx, customer, instituteID, &model.MessageRequest{Body: "Zweite Frage"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, owner, instituteID, customer.UserID, &model.MessageRequest{Body: "Antwort"})
	require.NoError(t, err)

	messages, total, err := svc.Conversation(ctx, owner, instituteID, customer.UserID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "Erste Frage", messages[0].Body)
	assert.Equal(t, "Antwort", messages[2].Body)

	unread, err := svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, unread.Unread)

	marked, err := svc.MarkRead(ctx, owner, instituteID, customer.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	unread, err = svc.UnreadCount(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 1, unread.Unread)

	conversations, err := svc.Conversations(ctx, customer)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Antwort", conversations[0].LastMessage)
	assert.Equal(t, 1, conversations[0].UnreadCount)

	_, _, err = svc.Conversation(ctx, stranger, instituteID, customer.UserID, 10, 0)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}
