package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"message-functions/internal/services"
	"message-functions/pkg/lambda"
)

// TextParam is the request parameter carrying the message text
const TextParam = "text"

// MessageHandler serves the addmessage ingress and message reads
type MessageHandler struct {
	messageService services.MessageService
	logger         *logrus.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService services.MessageService, logger *logrus.Logger) *MessageHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MessageHandler{
		messageService: messageService,
		logger:         logger,
	}
}

// AddMessage stores the text parameter as a new message.
// The text is read from the query string, then from a form field or JSON body on POST.
func (h *MessageHandler) AddMessage(c *gin.Context) {
	req, err := bindAddMessage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	result, err := h.messageService.AddMessage(c.Request.Context(), req)
	if err != nil {
		h.logFailure("add_message", err)
		status, body := errorStatus(err, "Failed to add message")
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMessage returns a stored message by ID
func (h *MessageHandler) GetMessage(c *gin.Context) {
	msg, err := h.messageService.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, body := errorStatus(err, "Failed to get message")
		if status >= http.StatusInternalServerError {
			h.logFailure("get_message", err)
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// HandleAddMessage is the Lambda form of AddMessage
func (h *MessageHandler) HandleAddMessage(ctx context.Context, req *lambda.Request) (*lambda.Response, error) {
	text, err := textFromRequest(req)
	if err != nil {
		return lambda.JSONResponse(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	result, err := h.messageService.AddMessage(ctx, &services.AddMessageRequest{Text: text})
	if err != nil {
		h.logFailure("add_message", err)
		status, body := errorStatus(err, "Failed to add message")
		return lambda.JSONResponse(status, body)
	}

	return lambda.JSONResponse(http.StatusOK, result)
}

func (h *MessageHandler) logFailure(operation string, err error) {
	h.logger.WithFields(logrus.Fields{
		"operation": operation,
		"error":     err.Error(),
	}).Error("Message request failed")
}

func bindAddMessage(c *gin.Context) (*services.AddMessageRequest, error) {
	req := &services.AddMessageRequest{}

	if text, ok := c.GetQuery(TextParam); ok {
		req.Text = &text
		return req, nil
	}
	if c.Request.Method != http.MethodPost {
		return req, nil
	}

	switch c.ContentType() {
	case binding.MIMEJSON:
		if err := c.ShouldBindBodyWith(req, binding.JSON); err != nil {
			return nil, err
		}
	case binding.MIMEPOSTForm, binding.MIMEMultipartPOSTForm:
		if text, ok := c.GetPostForm(TextParam); ok {
			req.Text = &text
		}
	}

	return req, nil
}

func textFromRequest(req *lambda.Request) (*string, error) {
	if text, ok := req.QueryParams[TextParam]; ok {
		return &text, nil
	}
	if req.Method != http.MethodPost || len(req.Body) == 0 {
		return nil, nil
	}

	contentType := strings.ToLower(req.Header("Content-Type"))
	switch {
	case strings.HasPrefix(contentType, binding.MIMEJSON):
		var body services.AddMessageRequest
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return body.Text, nil
	case strings.HasPrefix(contentType, binding.MIMEPOSTForm):
		form, err := url.ParseQuery(string(req.Body))
		if err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		if values, ok := form[TextParam]; ok && len(values) > 0 {
			return &values[0], nil
		}
	}

	return nil, nil
}
