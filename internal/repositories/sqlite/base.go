package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"message-functions/internal/repositories"
)

// BaseRepository provides query helpers shared by document repositories
type BaseRepository struct {
	db         *sql.DB
	collection string
	logger     *logrus.Logger
}

// NewBaseRepository creates a new base repository scoped to a collection
func NewBaseRepository(db *sql.DB, collection string, logger *logrus.Logger) *BaseRepository {
	if logger == nil {
		logger = logrus.New()
	}
	return &BaseRepository{
		db:         db,
		collection: collection,
		logger:     logger,
	}
}

// logQuery logs a query with its execution time
func (r *BaseRepository) logQuery(operation string, query string, args []interface{}, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":  operation,
		"collection": r.collection,
		"query":      strings.Join(strings.Fields(query), " "),
		"args":       len(args),
		"duration":   duration,
	}

	if err != nil {
		fields["error"] = err.Error()
		r.logger.WithFields(fields).Error("Query failed")
	} else {
		r.logger.WithFields(fields).Debug("Query executed")
	}
}

// executeQueryRow executes a single-row query and logs the result
func (r *BaseRepository) executeQueryRow(ctx context.Context, operation, query string, args ...interface{}) *sql.Row {
	start := time.Now()
	row := r.db.QueryRowContext(ctx, query, args...)
	r.logQuery(operation, query, args, time.Since(start), row.Err())
	return row
}

// executeExec executes a non-query statement and logs the result
func (r *BaseRepository) executeExec(ctx context.Context, operation, id, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, query, args...)
	r.logQuery(operation, query, args, time.Since(start), err)

	if err != nil {
		return nil, repositories.NewRepositoryError(operation, r.collection, id, classify(err))
	}

	return result, nil
}

// validateID validates that an ID is not empty
func (r *BaseRepository) validateID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return repositories.NewRepositoryError(op, r.collection, id, repositories.ErrInvalidID)
	}
	return nil
}

// classify maps driver errors onto repository sentinels so callers can decide on retries
func classify(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errors.Join(repositories.ErrTimeout, err)
		case sqlite3.ErrConstraint:
			return errors.Join(repositories.ErrDuplicateEntry, err)
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
			return errors.Join(repositories.ErrConnection, err)
		}
	}
	return err
}
