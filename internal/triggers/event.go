// Package triggers delivers document-created events to the transform function.
package triggers

import (
	"context"
	"fmt"

	"message-functions/internal/repositories"
)

// DocumentCreated is the payload of a document-created trigger
type DocumentCreated struct {
	Collection string         `json:"collection"`
	DocumentID string         `json:"document_id"`
	Data       map[string]any `json:"data"`
}

// Path returns the document path the trigger fired for, e.g. /messages/abc
func (e DocumentCreated) Path() string {
	return fmt.Sprintf("/%s/%s", e.Collection, e.DocumentID)
}

// FromCreatedEvent converts a store notification into a trigger payload
func FromCreatedEvent(event repositories.CreatedEvent) DocumentCreated {
	data := make(map[string]any, len(event.Data))
	for k, v := range event.Data {
		data[k] = v
	}
	return DocumentCreated{
		Collection: event.Collection,
		DocumentID: event.DocumentID,
		Data:       data,
	}
}

// Handler processes one document-created event
type Handler func(ctx context.Context, event DocumentCreated) error
