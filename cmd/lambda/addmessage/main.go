package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"

	"message-functions/internal/handlers"
	"message-functions/pkg/lambda"
)

func handler(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	container, err := lambda.GetConnectionManager().GetContainer(ctx)
	if err != nil {
		return lambda.InternalErrorResponse(), err
	}

	messageHandler := handlers.NewMessageHandler(container.MessageService, container.Logger)
	return lambda.APIGatewayHandler(messageHandler.HandleAddMessage)(ctx, event)
}

func main() {
	// Drain and close the store when the execution environment shuts down
	awslambda.StartWithOptions(handler, awslambda.WithEnableSIGTERM(func() {
		_ = lambda.GetConnectionManager().Cleanup()
	}))
}
