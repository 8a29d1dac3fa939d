package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field names used in stored documents
const (
	FieldOriginal  = "original"
	FieldUppercase = "uppercase"
	FieldCreatedAt = "created_at"
)

// DefaultCollection is the collection messages are written to
const DefaultCollection = "messages"

// ErrOriginalMissing is returned when a record has no original text
var ErrOriginalMissing = errors.New("original is missing")

// ErrOriginalNotText is returned when the original field holds a non-string value
var ErrOriginalNotText = errors.New("original is not text")

var validate = validator.New()

// Message represents a single record in the messages collection
type Message struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Original  *string   `json:"original" dynamodbav:"original" validate:"required"`
	Uppercase *string   `json:"uppercase,omitempty" dynamodbav:"uppercase,omitempty"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

// MessageFields is the set of fields written by a merge. Nil fields are left untouched.
type MessageFields struct {
	Uppercase *string `json:"uppercase,omitempty" dynamodbav:"uppercase,omitempty"`
}

// NewMessage creates a message holding the caller supplied text.
// The ID is assigned by the store.
func NewMessage(original string) *Message {
	return &Message{
		Original: &original,
	}
}

// Validate checks the message against its schema
func (m *Message) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("message validation failed: %w", err)
	}
	return nil
}

// OriginalText returns the original text or an empty string when it is unset
func (m *Message) OriginalText() string {
	if m.Original == nil {
		return ""
	}
	return *m.Original
}

// IsUppercased reports whether the derived field has been written
func (m *Message) IsUppercased() bool {
	return m.Uppercase != nil
}

// ToMap returns the document representation used by schemaless stores
func (m *Message) ToMap() map[string]any {
	doc := map[string]any{}
	if m.Original != nil {
		doc[FieldOriginal] = *m.Original
	}
	if m.Uppercase != nil {
		doc[FieldUppercase] = *m.Uppercase
	}
	return doc
}

// ToMap returns only the fields that are set
func (f MessageFields) ToMap() map[string]any {
	doc := map[string]any{}
	if f.Uppercase != nil {
		doc[FieldUppercase] = *f.Uppercase
	}
	return doc
}

// IsEmpty reports whether the merge would write nothing
func (f MessageFields) IsEmpty() bool {
	return f.Uppercase == nil
}

// MessageFromDocument decodes untyped document data into a Message.
// The original field must be present and hold a string.
func MessageFromDocument(id string, data map[string]any) (*Message, error) {
	msg := &Message{ID: id}

	raw, ok := data[FieldOriginal]
	if !ok || raw == nil {
		return nil, ErrOriginalMissing
	}
	original, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrOriginalNotText, raw)
	}
	msg.Original = &original

	if raw, ok := data[FieldUppercase]; ok && raw != nil {
		if upper, ok := raw.(string); ok {
			msg.Uppercase = &upper
		}
	}

	return msg, nil
}

// ToUpper applies full Unicode upper-case mapping, so "ß" becomes "SS"
func ToUpper(s string) string {
	return cases.Upper(language.Und).String(s)
}
