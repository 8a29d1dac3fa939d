package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"message-functions/internal/repositories"
	"message-functions/internal/repositories/memory"
	"message-functions/internal/services"
	"message-functions/internal/triggers"
)

func streamRecord(name, id, seq string, image map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:        "evt-" + seq,
		EventName:      name,
		EventSourceArn: "arn:aws:dynamodb:us-east-1:123456789012:table/messages/stream/2024-01-01T00:00:00.000",
		Change: events.DynamoDBStreamRecord{
			Keys:           map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute(id)},
			NewImage:       image,
			SequenceNumber: seq,
		},
	}
}

func originalImage(text string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{"original": events.NewStringAttribute(text)}
}

func TestHandleStream(t *testing.T) {
	logger := testLogger()
	repo := memory.NewMessageRepository("messages", logger)
	handler := NewTriggerHandler(services.NewMessageService(repo, logger), "id", logger)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord(triggers.StreamEventInsert, "a", "1", originalImage("hello")),
		streamRecord(triggers.StreamEventModify, "b", "2", originalImage("ignored")),
		streamRecord(triggers.StreamEventInsert, "c", "3", map[string]events.DynamoDBAttributeValue{
			"original": events.NewNumberAttribute("42"),
		}),
		streamRecord(triggers.StreamEventInsert, "e", "4", originalImage("")),
	}}

	resp, err := handler.HandleStream(context.Background(), event)
	if err != nil {
		t.Fatalf("HandleStream failed: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("Expected no batch failures, got %+v", resp.BatchItemFailures)
	}

	msg, err := repo.GetByID(context.Background(), "a")
	if err != nil {
		t.Fatalf("Inserted message was not uppercased: %v", err)
	}
	if msg.Uppercase == nil || *msg.Uppercase != "HELLO" {
		t.Errorf("Expected uppercase HELLO, got %v", msg.Uppercase)
	}

	empty, err := repo.GetByID(context.Background(), "e")
	if err != nil {
		t.Fatalf("Empty message was not uppercased: %v", err)
	}
	if empty.Uppercase == nil || *empty.Uppercase != "" {
		t.Errorf("Expected empty uppercase to be written, got %v", empty.Uppercase)
	}

	for _, id := range []string{"b", "c"} {
		if _, err := repo.GetByID(context.Background(), id); !repositories.IsNotFound(err) {
			t.Errorf("Record %s should not be written, got %v", id, err)
		}
	}
}

func TestHandleStream_ReportsRetryableFailures(t *testing.T) {
	handler := NewTriggerHandler(brokenService{
		err: repositories.NewRepositoryError("merge", "messages", "a", repositories.ErrThrottled),
	}, "id", testLogger())

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord(triggers.StreamEventInsert, "a", "100", originalImage("x")),
		streamRecord(triggers.StreamEventRemove, "b", "101", nil),
		streamRecord(triggers.StreamEventInsert, "c", "102", originalImage("y")),
	}}

	resp, err := handler.HandleStream(context.Background(), event)
	if err != nil {
		t.Fatalf("HandleStream failed: %v", err)
	}

	if len(resp.BatchItemFailures) != 2 {
		t.Fatalf("Expected 2 batch failures, got %+v", resp.BatchItemFailures)
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "100" || resp.BatchItemFailures[1].ItemIdentifier != "102" {
		t.Errorf("Unexpected failure identifiers: %+v", resp.BatchItemFailures)
	}
}

func TestHandleStream_DropsInvalidDocuments(t *testing.T) {
	handler := NewTriggerHandler(brokenService{
		err: repositories.ValidationError("messages", "a", errors.New("original is missing")),
	}, "id", testLogger())

	resp, err := handler.HandleStream(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			streamRecord(triggers.StreamEventInsert, "a", "7", originalImage("x")),
		},
	})
	if err != nil {
		t.Fatalf("HandleStream failed: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("Invalid documents should not be redelivered, got %+v", resp.BatchItemFailures)
	}
}

func TestHandleStream_FailsWithoutImages(t *testing.T) {
	logger := testLogger()
	repo := memory.NewMessageRepository("messages", logger)
	handler := NewTriggerHandler(services.NewMessageService(repo, logger), "id", logger)

	// A KEYS_ONLY stream delivers inserts with keys but no item image
	_, err := handler.HandleStream(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			streamRecord(triggers.StreamEventInsert, "a", "1", nil),
		},
	})
	if !errors.Is(err, triggers.ErrNoNewImage) {
		t.Errorf("Expected ErrNoNewImage, got %v", err)
	}
	if repo.Count() != 0 {
		t.Errorf("Nothing should be written, got %d", repo.Count())
	}
}
