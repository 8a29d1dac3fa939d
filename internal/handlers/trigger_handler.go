package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"message-functions/internal/repositories"
	"message-functions/internal/services"
	"message-functions/internal/triggers"
)

// TriggerHandler runs makeuppercase for records from the messages table stream
type TriggerHandler struct {
	messageService services.MessageService
	keyAttribute   string
	logger         *logrus.Logger
}

// NewTriggerHandler creates a stream trigger handler
func NewTriggerHandler(messageService services.MessageService, keyAttribute string, logger *logrus.Logger) *TriggerHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TriggerHandler{
		messageService: messageService,
		keyAttribute:   keyAttribute,
		logger:         logger,
	}
}

// HandleStream processes a batch of stream records. Records that fail with a
// retryable error are reported back so the platform redelivers them. Records
// that can never succeed are logged and dropped. A stream without item images
// fails the whole invocation.
func (h *TriggerHandler) HandleStream(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	response := events.DynamoDBEventResponse{
		BatchItemFailures: []events.DynamoDBBatchItemFailure{},
	}

	for _, record := range event.Records {
		entry := h.logger.WithFields(logrus.Fields{
			"event_id":   record.EventID,
			"event_name": record.EventName,
		})

		created, ok, err := triggers.FromStreamRecord(record, h.keyAttribute)
		if errors.Is(err, triggers.ErrNoNewImage) {
			// A misconfigured stream fails every record; surface it as a failed invocation
			entry.WithError(err).Error("Stream is missing item images")
			return response, fmt.Errorf("cannot process stream batch: %w", err)
		}
		if err != nil {
			entry.WithError(err).Error("Skipping undecodable stream record")
			continue
		}
		if !ok {
			continue
		}

		if err := h.messageService.MakeUppercase(ctx, created); err != nil {
			if repositories.IsValidation(err) {
				entry.WithError(err).WithField("document_id", created.DocumentID).Error("Dropping invalid message")
				continue
			}

			entry.WithError(err).WithField("document_id", created.DocumentID).Error("Trigger failed, reporting for redelivery")
			response.BatchItemFailures = append(response.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: record.Change.SequenceNumber,
			})
		}
	}

	return response, nil
}
