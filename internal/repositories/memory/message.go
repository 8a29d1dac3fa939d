// Package memory provides an in-memory message store for tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"message-functions/internal/models"
	"message-functions/internal/repositories"
)

const entityMessage = "message"

// MessageRepository is an in-memory implementation of repositories.MessageRepository
type MessageRepository struct {
	mu         sync.RWMutex
	collection string
	messages   map[string]*models.Message
	hook       repositories.CreatedHook
	logger     *logrus.Logger
}

// NewMessageRepository creates an empty in-memory store for the given collection
func NewMessageRepository(collection string, logger *logrus.Logger) *MessageRepository {
	if logger == nil {
		logger = logrus.New()
	}
	if collection == "" {
		collection = models.DefaultCollection
	}
	return &MessageRepository{
		collection: collection,
		messages:   make(map[string]*models.Message),
		logger:     logger,
	}
}

// SetCreatedHook registers the function called after each Add
func (r *MessageRepository) SetCreatedHook(hook repositories.CreatedHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
}

// Add stores a copy of the message under a new ID
func (r *MessageRepository) Add(ctx context.Context, msg *models.Message) (string, error) {
	if msg == nil {
		return "", repositories.ValidationError(entityMessage, "", models.ErrOriginalMissing)
	}
	if err := msg.Validate(); err != nil {
		return "", repositories.ValidationError(entityMessage, "", err)
	}
	if err := ctx.Err(); err != nil {
		return "", repositories.NewRepositoryError("add", entityMessage, "", err)
	}

	stored := copyMessage(msg)
	stored.ID = uuid.New().String()
	stored.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	r.messages[stored.ID] = stored
	hook := r.hook
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"collection": r.collection,
		"id":         stored.ID,
	}).Debug("Message added")

	if hook != nil {
		hook(ctx, repositories.CreatedEvent{
			Collection: r.collection,
			DocumentID: stored.ID,
			Data:       stored.ToMap(),
		})
	}

	return stored.ID, nil
}

// Merge sets the supplied fields on the message
func (r *MessageRepository) Merge(ctx context.Context, id string, fields models.MessageFields) error {
	if id == "" {
		return repositories.NewRepositoryError("merge", entityMessage, id, repositories.ErrInvalidID)
	}
	if err := ctx.Err(); err != nil {
		return repositories.NewRepositoryError("merge", entityMessage, id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, exists := r.messages[id]
	if !exists {
		msg = &models.Message{ID: id, CreatedAt: time.Now().UTC()}
		r.messages[id] = msg
	}
	if fields.Uppercase != nil {
		upper := *fields.Uppercase
		msg.Uppercase = &upper
	}

	return nil
}

// GetByID returns a copy of the stored message
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	if id == "" {
		return nil, repositories.NewRepositoryError("get", entityMessage, id, repositories.ErrInvalidID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, exists := r.messages[id]
	if !exists {
		return nil, repositories.NotFoundError(entityMessage, id)
	}
	return copyMessage(msg), nil
}

// Count returns the number of stored messages
func (r *MessageRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// Close implements repositories.MessageRepository
func (r *MessageRepository) Close() error {
	return nil
}

func copyMessage(msg *models.Message) *models.Message {
	c := *msg
	if msg.Original != nil {
		original := *msg.Original
		c.Original = &original
	}
	if msg.Uppercase != nil {
		upper := *msg.Uppercase
		c.Uppercase = &upper
	}
	return &c
}
