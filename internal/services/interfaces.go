package services

import (
	"context"

	"message-functions/internal/models"
	"message-functions/internal/triggers"
)

// MessageService defines the business logic behind both functions
type MessageService interface {
	// AddMessage stores the request text as a new message (addmessage)
	AddMessage(ctx context.Context, req *AddMessageRequest) (*AddMessageResult, error)

	// MakeUppercase derives the uppercase field for a created message (makeuppercase)
	MakeUppercase(ctx context.Context, event triggers.DocumentCreated) error

	// GetMessage retrieves a stored message
	GetMessage(ctx context.Context, id string) (*models.Message, error)
}

// AddMessageRequest represents the ingress request. Text is a pointer so an
// empty string is accepted while a missing value is not.
type AddMessageRequest struct {
	Text *string `json:"text" form:"text" validate:"required"`
}

// AddMessageResult is returned to the ingress caller
type AddMessageResult struct {
	ID     string `json:"-"`
	Result string `json:"result"`
}
