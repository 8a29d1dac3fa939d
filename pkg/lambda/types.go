package lambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Request represents a generic HTTP request for serverless functions
type Request struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Headers     map[string]string `json:"headers"`
	QueryParams map[string]string `json:"query_params"`
	Body        []byte            `json:"body"`
	PathParams  map[string]string `json:"path_params"`
}

// Header returns a request header, matching the name case-insensitively
func (r *Request) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Response represents a generic HTTP response for serverless functions
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
}

// HandlerFunc is a framework-agnostic handler interface
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// JSONResponse encodes body as JSON with the given status code
func JSONResponse(statusCode int, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return &Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       data,
	}, nil
}

// FromAPIGatewayProxy converts an API Gateway proxy event into a Request
func FromAPIGatewayProxy(event events.APIGatewayProxyRequest) (*Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode request body: %w", err)
		}
		body = decoded
	}

	query := make(map[string]string, len(event.QueryStringParameters))
	for k, v := range event.QueryStringParameters {
		query[k] = v
	}
	// Multi-value parameters take precedence when API Gateway sends both
	for k, values := range event.MultiValueQueryStringParameters {
		if len(values) > 0 {
			query[k] = values[0]
		}
	}

	return &Request{
		Method:      event.HTTPMethod,
		Path:        event.Path,
		Headers:     event.Headers,
		QueryParams: query,
		Body:        body,
		PathParams:  event.PathParameters,
	}, nil
}

// ToAPIGatewayProxy converts a Response into an API Gateway proxy response
func ToAPIGatewayProxy(resp *Response) events.APIGatewayProxyResponse {
	if resp == nil {
		return InternalErrorResponse()
	}
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       string(resp.Body),
	}
}

// InternalErrorResponse is returned when a handler fails without a response
func InternalErrorResponse() events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusInternalServerError,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"error":"Internal server error","message":"An internal error occurred"}`,
	}
}

// APIGatewayHandler adapts a HandlerFunc to the API Gateway proxy signature
func APIGatewayHandler(h HandlerFunc) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		req, err := FromAPIGatewayProxy(event)
		if err != nil {
			resp, _ := JSONResponse(http.StatusBadRequest, map[string]string{
				"error":   "Invalid request",
				"message": err.Error(),
			})
			return ToAPIGatewayProxy(resp), nil
		}

		resp, err := h(ctx, req)
		if err != nil {
			return InternalErrorResponse(), nil
		}
		return ToAPIGatewayProxy(resp), nil
	}
}
