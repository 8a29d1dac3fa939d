package triggers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Stream event names
const (
	StreamEventInsert = "INSERT"
	StreamEventModify = "MODIFY"
	StreamEventRemove = "REMOVE"
)

// ErrNoNewImage means the stream does not carry item images, so no record
// can ever be processed until the stream view type includes NEW_IMAGE
var ErrNoNewImage = errors.New("stream record has no new image; enable NEW_IMAGE on the stream")

// FromStreamRecord converts a DynamoDB stream record into a trigger payload.
// It returns false for anything but INSERT, so the trigger's own merge-write
// (a MODIFY) never fires it again.
func FromStreamRecord(record events.DynamoDBEventRecord, keyAttribute string) (DocumentCreated, bool, error) {
	if record.EventName != StreamEventInsert {
		return DocumentCreated{}, false, nil
	}

	image := record.Change.NewImage
	if image == nil {
		return DocumentCreated{}, false, fmt.Errorf("stream record %s: %w", record.EventID, ErrNoNewImage)
	}

	data, err := unmarshalImage(image)
	if err != nil {
		return DocumentCreated{}, false, fmt.Errorf("failed to decode stream record %s: %w", record.EventID, err)
	}

	id := ""
	if key, ok := record.Change.Keys[keyAttribute]; ok && key.DataType() == events.DataTypeString {
		id = key.String()
	} else if raw, ok := data[keyAttribute].(string); ok {
		id = raw
	}
	if id == "" {
		return DocumentCreated{}, false, fmt.Errorf("stream record %s has no %q key", record.EventID, keyAttribute)
	}
	delete(data, keyAttribute)

	return DocumentCreated{
		Collection: TableFromStreamARN(record.EventSourceArn),
		DocumentID: id,
		Data:       data,
	}, true, nil
}

// TableFromStreamARN extracts the table name from
// arn:aws:dynamodb:<region>:<account>:table/<name>/stream/<label>
func TableFromStreamARN(arn string) string {
	idx := strings.Index(arn, ":table/")
	if idx < 0 {
		return ""
	}
	name := arn[idx+len(":table/"):]
	if slash := strings.Index(name, "/"); slash >= 0 {
		name = name[:slash]
	}
	return name
}

func unmarshalImage(image map[string]events.DynamoDBAttributeValue) (map[string]any, error) {
	item := make(map[string]types.AttributeValue, len(image))
	for name, value := range image {
		av, err := toAttributeValue(value)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		item[name] = av
	}

	data := map[string]any{}
	if err := attributevalue.UnmarshalMap(item, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// toAttributeValue maps the Lambda event representation onto the SDK one
func toAttributeValue(v events.DynamoDBAttributeValue) (types.AttributeValue, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}, nil
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}, nil
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}, nil
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}, nil
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}, nil
	case events.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, 0, len(list))
		for _, item := range list {
			av, err := toAttributeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, av)
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	case events.DataTypeMap:
		m := v.Map()
		out := make(map[string]types.AttributeValue, len(m))
		for k, item := range m {
			av, err := toAttributeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = av
		}
		return &types.AttributeValueMemberM{Value: out}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %v", v.DataType())
	}
}
