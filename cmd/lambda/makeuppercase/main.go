package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"

	"message-functions/internal/handlers"
	"message-functions/internal/repositories/dynamodb"
	"message-functions/pkg/lambda"
)

func handler(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	container, err := lambda.GetConnectionManager().GetContainer(ctx)
	if err != nil {
		// Failing the whole batch makes the platform redeliver it
		return events.DynamoDBEventResponse{}, err
	}

	triggerHandler := handlers.NewTriggerHandler(container.MessageService, dynamodb.KeyAttribute, container.Logger)
	return triggerHandler.HandleStream(ctx, event)
}

func main() {
	// Drain and close the store when the execution environment shuts down
	awslambda.StartWithOptions(handler, awslambda.WithEnableSIGTERM(func() {
		_ = lambda.GetConnectionManager().Cleanup()
	}))
}
