// Package storage builds the message store selected by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"message-functions/internal/database"
	"message-functions/internal/repositories"
	"message-functions/internal/repositories/dynamodb"
	"message-functions/internal/repositories/memory"
	"message-functions/internal/repositories/sqlite"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypeDynamoDB StoreType = "dynamodb"
)

// ParseStoreType validates a configured store type
func ParseStoreType(s string) (StoreType, error) {
	switch t := StoreType(strings.ToLower(strings.TrimSpace(s))); t {
	case StoreTypeMemory, StoreTypeSQLite, StoreTypeDynamoDB:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported store type: %s", s)
	}
}

// StoreConfig holds the settings for every supported backend
type StoreConfig struct {
	Type       string
	Collection string

	SQLitePath  string
	AutoMigrate bool

	DynamoDBTable string
	DynamoDB      dynamodb.ClientConfig
}

// Store bundles a message repository with the resources backing it
type Store struct {
	Type     StoreType
	Messages repositories.MessageRepository

	health  func(ctx context.Context) error
	closers []func() error
}

// HealthCheck reports whether the backing store is reachable
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	return s.health(ctx)
}

// SetCreatedHook forwards the hook to stores that emit created notifications.
// It returns false when the store relies on an external change feed.
func (s *Store) SetCreatedHook(hook repositories.CreatedHook) bool {
	setter, ok := s.Messages.(repositories.HookSetter)
	if !ok {
		return false
	}
	setter.SetCreatedHook(hook)
	return true
}

// Close releases the repository and its connections in reverse order
func (s *Store) Close() error {
	var errs []error
	if s.Messages != nil {
		if err := s.Messages.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Factory creates Store instances based on configuration
type Factory struct {
	logger *logrus.Logger
}

// NewFactory creates a new store factory
func NewFactory(logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Factory{logger: logger}
}

// Create creates a Store based on the provided configuration
func (f *Factory) Create(ctx context.Context, config *StoreConfig) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("store config is required")
	}

	storeType, err := ParseStoreType(config.Type)
	if err != nil {
		return nil, err
	}

	var store *Store
	switch storeType {
	case StoreTypeMemory:
		store, err = f.createMemoryStore(config)
	case StoreTypeSQLite:
		store, err = f.createSQLiteStore(config)
	case StoreTypeDynamoDB:
		store, err = f.createDynamoDBStore(ctx, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", storeType, err)
	}

	store.Type = storeType
	f.logger.WithFields(logrus.Fields{
		"store_type": storeType,
		"collection": config.Collection,
	}).Info("Message store created")

	return store, nil
}

func (f *Factory) createMemoryStore(config *StoreConfig) (*Store, error) {
	return &Store{
		Messages: memory.NewMessageRepository(config.Collection, f.logger),
	}, nil
}

func (f *Factory) createSQLiteStore(config *StoreConfig) (*Store, error) {
	connConfig := database.DefaultConnectionConfig()
	if config.SQLitePath != "" {
		connConfig.DatabasePath = config.SQLitePath
	}
	connConfig.AutoMigrate = config.AutoMigrate
	connConfig.Logger = f.logger

	cm := database.NewConnectionManager(connConfig)
	if err := cm.Connect(); err != nil {
		return nil, repositories.ConnectionError(err)
	}

	return &Store{
		Messages: sqlite.NewMessageRepository(cm.GetDB(), config.Collection, f.logger),
		health:   cm.HealthCheck,
		closers:  []func() error{cm.Close},
	}, nil
}

func (f *Factory) createDynamoDBStore(ctx context.Context, config *StoreConfig) (*Store, error) {
	client, err := dynamodb.NewClient(ctx, config.DynamoDB)
	if err != nil {
		return nil, repositories.ConnectionError(err)
	}

	table := config.DynamoDBTable
	if table == "" {
		table = config.Collection
	}

	return &Store{
		Messages: dynamodb.NewMessageRepository(client, table, f.logger),
	}, nil
}
