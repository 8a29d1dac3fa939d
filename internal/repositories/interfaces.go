package repositories

import (
	"context"

	"message-functions/internal/models"
)

// MessageRepository defines the operations the functions need from the document store
type MessageRepository interface {
	// Add creates a new message and returns the identifier assigned by the store
	Add(ctx context.Context, msg *models.Message) (string, error)

	// Merge writes only the supplied fields into the message, leaving every other
	// field untouched. A missing message is created with just those fields.
	Merge(ctx context.Context, id string, fields models.MessageFields) error

	// GetByID retrieves a message by its ID
	GetByID(ctx context.Context, id string) (*models.Message, error)

	// Close releases any resources held by the store
	Close() error
}

// CreatedEvent describes a document that was just created in a collection
type CreatedEvent struct {
	Collection string
	DocumentID string
	Data       map[string]any
}

// CreatedHook is called by a store after a document has been created
type CreatedHook func(ctx context.Context, event CreatedEvent)

// HookSetter is implemented by stores that can notify about created documents
type HookSetter interface {
	SetCreatedHook(hook CreatedHook)
}
