package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"message-functions/internal/models"
	"message-functions/internal/repositories"
)

// MessageRepository stores messages as JSON documents in SQLite
type MessageRepository struct {
	*BaseRepository

	hookMu sync.RWMutex
	hook   repositories.CreatedHook
}

// NewMessageRepository creates a new SQLite message repository
func NewMessageRepository(db *sql.DB, collection string, logger *logrus.Logger) *MessageRepository {
	if collection == "" {
		collection = models.DefaultCollection
	}
	return &MessageRepository{
		BaseRepository: NewBaseRepository(db, collection, logger),
	}
}

// SetCreatedHook registers the function called after each Add
func (r *MessageRepository) SetCreatedHook(hook repositories.CreatedHook) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.hook = hook
}

// Add inserts a new document and returns its generated ID
func (r *MessageRepository) Add(ctx context.Context, msg *models.Message) (string, error) {
	if msg == nil {
		return "", repositories.ValidationError(r.collection, "", models.ErrOriginalMissing)
	}
	if err := msg.Validate(); err != nil {
		return "", repositories.ValidationError(r.collection, "", err)
	}

	doc := msg.ToMap()
	data, err := json.Marshal(doc)
	if err != nil {
		return "", repositories.NewRepositoryError("add", r.collection, "", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	query := `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := r.executeExec(ctx, "add", id, query, r.collection, id, string(data), now, now); err != nil {
		return "", err
	}

	r.hookMu.RLock()
	hook := r.hook
	r.hookMu.RUnlock()

	if hook != nil {
		hook(ctx, repositories.CreatedEvent{
			Collection: r.collection,
			DocumentID: id,
			Data:       doc,
		})
	}

	return id, nil
}

// Merge patches the supplied fields into the stored document in a single statement
func (r *MessageRepository) Merge(ctx context.Context, id string, fields models.MessageFields) error {
	if err := r.validateID("merge", id); err != nil {
		return err
	}

	patch, err := json.Marshal(fields.ToMap())
	if err != nil {
		return repositories.NewRepositoryError("merge", r.collection, id, err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			data = json_patch(documents.data, excluded.data),
			updated_at = excluded.updated_at`

	_, err = r.executeExec(ctx, "merge", id, query, r.collection, id, string(patch), now, now)
	return err
}

// GetByID loads a document and decodes it into a Message
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	if err := r.validateID("get", id); err != nil {
		return nil, err
	}

	query := `SELECT data, created_at FROM documents WHERE collection = ? AND id = ?`
	row := r.executeQueryRow(ctx, "get_by_id", query, r.collection, id)

	var data string
	var createdAt time.Time
	if err := row.Scan(&data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NotFoundError(r.collection, id)
		}
		return nil, repositories.NewRepositoryError("get", r.collection, id, classify(err))
	}

	msg := &models.Message{}
	if err := json.Unmarshal([]byte(data), msg); err != nil {
		return nil, repositories.NewRepositoryError("decode", r.collection, id, err)
	}
	msg.ID = id
	msg.CreatedAt = createdAt

	return msg, nil
}

// Close is a no-op; the connection is owned by database.ConnectionManager
func (r *MessageRepository) Close() error {
	return nil
}
