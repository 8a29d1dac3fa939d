// Package dynamodb stores messages in a DynamoDB table keyed by id.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"message-functions/internal/models"
	"message-functions/internal/repositories"
)

// KeyAttribute is the table's hash key
const KeyAttribute = "id"

// API is the subset of the DynamoDB client used by the repository
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// MessageRepository implements repositories.MessageRepository on DynamoDB
type MessageRepository struct {
	client API
	table  string
	logger *logrus.Logger
}

// NewMessageRepository creates a repository writing to the given table
func NewMessageRepository(client API, table string, logger *logrus.Logger) *MessageRepository {
	if logger == nil {
		logger = logrus.New()
	}
	if table == "" {
		table = models.DefaultCollection
	}
	return &MessageRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

// Add puts a new item with a generated ID, refusing to overwrite an existing one
func (r *MessageRepository) Add(ctx context.Context, msg *models.Message) (string, error) {
	if msg == nil {
		return "", repositories.ValidationError(r.table, "", models.ErrOriginalMissing)
	}
	if err := msg.Validate(); err != nil {
		return "", repositories.ValidationError(r.table, "", err)
	}

	record := *msg
	record.ID = uuid.New().String()
	record.CreatedAt = time.Now().UTC()
	record.Uppercase = nil

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return "", repositories.NewRepositoryError("add", r.table, record.ID, err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(KeyAttribute))).
		Build()
	if err != nil {
		return "", repositories.NewRepositoryError("add", r.table, record.ID, err)
	}

	start := time.Now()
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	r.logCall("put_item", record.ID, time.Since(start), err)
	if err != nil {
		return "", repositories.NewRepositoryError("add", r.table, record.ID, classify(err))
	}

	return record.ID, nil
}

// Merge sets only the supplied attributes with an UpdateItem call.
// UpdateItem creates the item when it does not exist yet.
func (r *MessageRepository) Merge(ctx context.Context, id string, fields models.MessageFields) error {
	if id == "" {
		return repositories.NewRepositoryError("merge", r.table, id, repositories.ErrInvalidID)
	}
	if fields.IsEmpty() {
		return nil
	}

	var update expression.UpdateBuilder
	for name, value := range fields.ToMap() {
		update = update.Set(expression.Name(name), expression.Value(value))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return repositories.NewRepositoryError("merge", r.table, id, err)
	}

	start := time.Now()
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       itemKey(id),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	r.logCall("update_item", id, time.Since(start), err)
	if err != nil {
		return repositories.NewRepositoryError("merge", r.table, id, classify(err))
	}

	return nil
}

// GetByID reads an item with strong consistency
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	if id == "" {
		return nil, repositories.NewRepositoryError("get", r.table, id, repositories.ErrInvalidID)
	}

	start := time.Now()
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	r.logCall("get_item", id, time.Since(start), err)
	if err != nil {
		return nil, repositories.NewRepositoryError("get", r.table, id, classify(err))
	}
	if len(out.Item) == 0 {
		return nil, repositories.NotFoundError(r.table, id)
	}

	msg := &models.Message{}
	if err := attributevalue.UnmarshalMap(out.Item, msg); err != nil {
		return nil, repositories.NewRepositoryError("decode", r.table, id, err)
	}

	return msg, nil
}

// Close implements repositories.MessageRepository
func (r *MessageRepository) Close() error {
	return nil
}

func (r *MessageRepository) logCall(operation, id string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": operation,
		"table":     r.table,
		"id":        id,
		"duration":  duration,
	}
	if err != nil {
		fields["error"] = err.Error()
		r.logger.WithFields(fields).Error("DynamoDB call failed")
		return
	}
	r.logger.WithFields(fields).Debug("DynamoDB call completed")
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		KeyAttribute: &types.AttributeValueMemberS{Value: id},
	}
}

// classify maps service errors onto repository sentinels
func classify(err error) error {
	var (
		conditionFailed *types.ConditionalCheckFailedException
		throughput      *types.ProvisionedThroughputExceededException
		requestLimit    *types.RequestLimitExceeded
		internal        *types.InternalServerError
		notFound        *types.ResourceNotFoundException
	)

	switch {
	case errors.As(err, &conditionFailed):
		return fmt.Errorf("%w: %w", repositories.ErrDuplicateEntry, err)
	case errors.As(err, &throughput), errors.As(err, &requestLimit):
		return fmt.Errorf("%w: %w", repositories.ErrThrottled, err)
	case errors.As(err, &internal):
		return fmt.Errorf("%w: %w", repositories.ErrConnection, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("table not found: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", repositories.ErrTimeout, err)
	}
	return err
}
