package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"message-functions/internal/adapters/storage"
	"message-functions/internal/config"
	"message-functions/internal/repositories/dynamodb"
	"message-functions/internal/services"
	"message-functions/internal/triggers"
)

// DefaultShutdownTimeout bounds how long Close waits for pending triggers
const DefaultShutdownTimeout = 30 * time.Second

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *logrus.Logger
	Store          *storage.Store
	MessageService services.MessageService

	// Dispatcher runs makeuppercase in-process. It is nil when the store is
	// fed by an external change stream.
	Dispatcher *triggers.Dispatcher
}

// NewContainer creates the dependency container for the configured store
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := config.NewLogger(cfg.Logging)

	store, err := storage.NewFactory(logger).Create(ctx, StoreConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create message store: %w", err)
	}

	messageService := services.NewMessageService(store.Messages, logger)

	container := &Container{
		Config:         cfg,
		Logger:         logger,
		Store:          store,
		MessageService: messageService,
	}

	dispatcher := triggers.NewDispatcher(messageService.MakeUppercase, cfg.MaxInstances, RetryConfig(cfg), logger)
	if store.SetCreatedHook(dispatcher.Hook()) {
		container.Dispatcher = dispatcher
	} else {
		_ = dispatcher.Shutdown(ctx)
	}

	logger.WithFields(logrus.Fields{
		"environment":        cfg.Environment,
		"deployment_mode":    config.GetDeploymentMode(),
		"store_type":         store.Type,
		"max_instances":      cfg.MaxInstances,
		"in_process_trigger": container.Dispatcher != nil,
	}).Info("Container initialized")

	return container, nil
}

// StoreConfig maps application configuration onto the store factory's settings
func StoreConfig(cfg *config.Config) *storage.StoreConfig {
	return &storage.StoreConfig{
		Type:          cfg.Store.Type,
		Collection:    cfg.Store.Collection,
		SQLitePath:    cfg.Store.SQLitePath,
		AutoMigrate:   true,
		DynamoDBTable: cfg.Store.DynamoDBTable,
		DynamoDB: dynamodb.ClientConfig{
			Region:          cfg.Store.AWSRegion,
			Endpoint:        cfg.Store.DynamoDBEndpoint,
			AccessKeyID:     cfg.Store.AWSAccessKeyID,
			SecretAccessKey: cfg.Store.AWSSecretAccessKey,
		},
	}
}

// RetryConfig builds the trigger redelivery policy from configuration
func RetryConfig(cfg *config.Config) *triggers.RetryConfig {
	retry := triggers.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Trigger.MaxAttempts
	if cfg.Trigger.InitialDelay > 0 {
		retry.InitialDelay = cfg.Trigger.InitialDelay
	}
	if cfg.Trigger.MaxDelay > 0 {
		retry.MaxDelay = cfg.Trigger.MaxDelay
	}
	return retry
}

// Shutdown drains pending triggers and closes the store
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	if c.Dispatcher != nil {
		if err := c.Dispatcher.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain triggers: %w", err))
		}
	}

	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Close cleans up all resources
func (c *Container) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return c.Shutdown(ctx)
}
