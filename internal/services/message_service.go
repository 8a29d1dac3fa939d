package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"message-functions/internal/models"
	"message-functions/internal/repositories"
	"message-functions/internal/triggers"
)

// ResultFormat is the response text returned by AddMessage
const ResultFormat = "Message with ID: %s added."

// messageService implements the MessageService interface
type messageService struct {
	repo      repositories.MessageRepository
	validator *validator.Validate
	logger    *logrus.Logger
}

// NewMessageService creates a new message service instance
func NewMessageService(repo repositories.MessageRepository, logger *logrus.Logger) MessageService {
	if logger == nil {
		logger = logrus.New()
	}
	return &messageService{
		repo:      repo,
		validator: validator.New(),
		logger:    logger,
	}
}

// AddMessage creates a message whose original is the request text
func (s *messageService) AddMessage(ctx context.Context, req *AddMessageRequest) (*AddMessageResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: add message request cannot be nil", repositories.ErrValidation)
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: text is required: %w", repositories.ErrValidation, err)
	}

	id, err := s.repo.Add(ctx, models.NewMessage(*req.Text))
	if err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	return &AddMessageResult{
		ID:     id,
		Result: fmt.Sprintf(ResultFormat, id),
	}, nil
}

// MakeUppercase writes uppercase = upper(original) into the created message.
// Only the uppercase field is written, so redelivery is harmless.
func (s *messageService) MakeUppercase(ctx context.Context, event triggers.DocumentCreated) error {
	msg, err := models.MessageFromDocument(event.DocumentID, event.Data)
	if err != nil {
		return repositories.ValidationError(event.Collection, event.DocumentID, err)
	}

	original := msg.OriginalText()
	s.logger.WithFields(logrus.Fields{
		"document_id": event.DocumentID,
		"original":    original,
	}).Info("Uppercasing")

	uppercase := models.ToUpper(original)
	if err := s.repo.Merge(ctx, event.DocumentID, models.MessageFields{Uppercase: &uppercase}); err != nil {
		return fmt.Errorf("failed to write uppercase for %s: %w", event.Path(), err)
	}

	return nil
}

// GetMessage retrieves a message by ID
func (s *messageService) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: message ID cannot be empty", repositories.ErrInvalidID)
	}

	msg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}
