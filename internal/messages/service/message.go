package service

import (
	"context"
	"errors"
	"sync"

	"freezefit/internal/access"
	messageerrors "freezefit/internal/messages/errors"
	"freezefit/internal/messages/repository"
	"freezefit/internal/messages/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/events"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"
)

const previewLength = 140

type MessageService interface {
	SendToInstitute(ctx context.Context, p *auth.Principal, instituteID string, req *model.MessageRequest) (*model.Message, error)
	Send(ctx context.Context, p *auth.Principal, instituteID string, customerID string, req *model.MessageRequest) (*model.Message, error)
	Conversation(ctx context.Context, p *auth.Principal, instituteID string, customerID string, limit int, offset int) ([]*model.Message, int64, error)
	Conversations(ctx context.Context, p *auth.Principal) ([]*model.Conversation, error)
	MarkRead(ctx context.Context, p *auth.Principal, instituteID string, customerID string) (int64, error)
	UnreadCount(ctx context.Context, p *auth.Principal) (*model.UnreadCount, error)
}

type messageService struct {
	repo      repository.MessageRepository
	validator *validator.MessageValidator
	access    access.Checker
	publisher events.Publisher
	cfg       *config.Config
}

func NewMessageService(
	repo repository.MessageRepository,
	validator *validator.MessageValidator,
	access access.Checker,
	publisher events.Publisher,
	cfg *config.Config,
) MessageService {
	return &messageService{
		repo:      repo,
		validator: validator,
		access:    access,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *messageService) SendToInstitute(ctx context.Context, p *auth.Principal, instituteID string, req *model.MessageRequest) (*model.Message, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	return s.Send(ctx, p, instituteID, p.UserID, req)
}

func (s *messageService) Send(ctx context.Context, p *auth.Principal, instituteID string, customerID string, req *model.MessageRequest) (*model.Message, error) {
	role, err := s.participant(ctx, p, instituteID, customerID)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		InstituteID: instituteID,
		CustomerID:  customerID,
		SenderID:    p.UserID,
		SenderRole:  role,
		Body:        sanitizer.SanitizeText(req.Body),
	}
	if err := s.validator.ValidateMessage(msg); err != nil {
		s.cfg.Log.Warn("Message validation failed", "institute_id", instituteID, "customer_id", customerID, "error", err)
		return nil, validation.ToAppError("Message", err)
	}

	parties, err := s.repo.FindParties(ctx, instituteID, customerID)
	if err != nil {
		return nil, s.mapError(err, instituteID, customerID)
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, s.mapError(err, instituteID, customerID)
	}

	s.cfg.Log.Info("Message sent",
		"id", msg.ID,
		"institute_id", instituteID,
		"customer_id", customerID,
		"sender_role", role,
	)

	recipient := events.Recipient{UserID: parties.OwnerID, Email: parties.OwnerEmail, Name: parties.OwnerName}
	senderName := parties.CustomerName
	if role != auth.RoleCustomer {
		recipient = events.Recipient{UserID: customerID, Email: parties.CustomerEmail, Name: parties.CustomerName}
		senderName = parties.InstituteName
	}
	s.publisher.Publish(ctx, events.TypeMessageSent, msg.ID, events.MessageSent{
		MessageID:     msg.ID,
		InstituteID:   instituteID,
		InstituteName: parties.InstituteName,
		CustomerID:    customerID,
		SenderName:    senderName,
		Recipient:     recipient,
		Preview:       sanitizer.Truncate(msg.Body, previewLength),
	})
	return msg, nil
}

func (s *messageService) Conversation(ctx context.Context, p *auth.Principal, instituteID string, customerID string, limit int, offset int) ([]*model.Message, int64, error) {
	if _, err := s.participant(ctx, p, instituteID, customerID); err != nil {
		return nil, 0, err
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var messages []*model.Message
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountConversation(ctx, instituteID, customerID)
	}()
	go func() {
		defer wg.Done()
		messages, errFind = s.repo.FindConversation(ctx, instituteID, customerID, limit, offset)
	}()
	wg.Wait()

	for _, err := range []error{errCount, errFind} {
		if err != nil {
			s.cfg.Log.Error("Failed to load conversation", "institute_id", instituteID, "customer_id", customerID, "error", err)
			return nil, 0, apperrors.Internal("Failed to retrieve messages", err)
		}
	}
	return messages, count, nil
}

func (s *messageService) Conversations(ctx context.Context, p *auth.Principal) ([]*model.Conversation, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	conversations, err := s.repo.ListConversations(ctx, p.UserID)
	if err != nil {
		s.cfg.Log.Error("Failed to list conversations", "user_id", p.UserID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve conversations", err)
	}
	return conversations, nil
}

func (s *messageService) MarkRead(ctx context.Context, p *auth.Principal, instituteID string, customerID string) (int64, error) {
	if _, err := s.participant(ctx, p, instituteID, customerID); err != nil {
		return 0, err
	}

	n, err := s.repo.MarkRead(ctx, instituteID, customerID, p.UserID)
	if err != nil {
		s.cfg.Log.Error("Failed to mark conversation read", "institute_id", instituteID, "customer_id", customerID, "error", err)
		return 0, apperrors.Internal("Failed to mark messages read", err)
	}
	return n, nil
}

func (s *messageService) UnreadCount(ctx context.Context, p *auth.Principal) (*model.UnreadCount, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	n, err := s.repo.CountUnread(ctx, p.UserID)
	if err != nil {
		s.cfg.Log.Error("Failed to count unread messages", "user_id", p.UserID, "error", err)
		return nil, apperrors.Internal("Failed to count unread messages", err)
	}
	return &model.UnreadCount{Unread: n}, nil
}

// participant resolves the side p speaks for in the conversation. The
// customer speaks for themselves; the owner and admins speak for the
// institute.
func (s *messageService) participant(ctx context.Context, p *auth.Principal, instituteID string, customerID string) (string, error) {
	if p == nil {
		return "", apperrors.Unauthorized("Authentication required")
	}
	if p.UserID == customerID {
		return auth.RoleCustomer, nil
	}
	if err := s.access.RequireInstituteOwner(ctx, p, instituteID); err != nil {
		return "", err
	}
	if p.IsAdmin() {
		return auth.RoleAdmin, nil
	}
	return auth.RoleProvider, nil
}

func (s *messageService) mapError(err error, instituteID, customerID string) error {
	switch {
	case errors.Is(err, messageerrors.ErrInstituteNotFound):
		return apperrors.NotFoundWithID("Institute", instituteID)
	case errors.Is(err, messageerrors.ErrCustomerNotFound):
		return apperrors.NotFoundWithID("Customer", customerID)
	}
	s.cfg.Log.Error("Failed to send message", "institute_id", instituteID, "customer_id", customerID, "error", err)
	return apperrors.Internal("Failed to send message", err)
}
