package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"message-functions/internal/models"
	"message-functions/internal/repositories"
	"message-functions/internal/repositories/memory"
	"message-functions/internal/services"
	"message-functions/internal/triggers"
	"message-functions/pkg/lambda"
)

var resultPattern = regexp.MustCompile(`^Message with ID: (.+) added\.$`)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func setupRouter(t *testing.T) (*gin.Engine, *memory.MessageRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := testLogger()
	repo := memory.NewMessageRepository("messages", logger)
	router := NewRouter(&RouterConfig{
		MessageService: services.NewMessageService(repo, logger),
		Logger:         logger,
		MaxInstances:   10,
	})
	return router, repo
}

func decodeResult(t *testing.T, body []byte) string {
	t.Helper()
	var resp map[string]string
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("Failed to decode response %s: %v", body, err)
	}
	if len(resp) != 1 {
		t.Errorf("Expected only the result field, got %v", resp)
	}
	m := resultPattern.FindStringSubmatch(resp["result"])
	if m == nil {
		t.Fatalf("Unexpected result %q", resp["result"])
	}
	return m[1]
}

func TestAddMessage_QueryParameter(t *testing.T) {
	router, repo := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/addmessage?text=hello", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	id := decodeResult(t, w.Body.Bytes())
	msg, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("Message %s not stored: %v", id, err)
	}
	if msg.OriginalText() != "hello" {
		t.Errorf("Expected original hello, got %q", msg.OriginalText())
	}
}

func TestAddMessage_Bodies(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		want        string
	}{
		{"query on post", "/addmessage?text=from-query", "", "", "from-query"},
		{"query wins over body", "/addmessage?text=q", "application/json", `{"text":"b"}`, "q"},
		{"json body", "/addmessage", "application/json", `{"text":"from json"}`, "from json"},
		{"form body", "/addmessage", "application/x-www-form-urlencoded", url.Values{"text": {"from form"}}.Encode(), "from form"},
		{"empty text", "/addmessage?text=", "", "", ""},
		{"escaped text", "/addmessage?text=" + url.QueryEscape("a b&c"), "", "", "a b&c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, repo := setupRouter(t)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
			}

			id := decodeResult(t, w.Body.Bytes())
			msg, _ := repo.GetByID(context.Background(), id)
			if msg == nil || msg.OriginalText() != tt.want {
				t.Errorf("Expected original %q, got %+v", tt.want, msg)
			}
		})
	}
}

func TestAddMessage_MissingText(t *testing.T) {
	router, repo := setupRouter(t)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/addmessage", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", method, w.Code)
		}

		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
			t.Errorf("%s: expected error response, got %s", method, w.Body.String())
		}
	}

	if repo.Count() != 0 {
		t.Errorf("No message should be created, got %d", repo.Count())
	}
}

func TestAddMessage_InvalidJSON(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/addmessage", strings.NewReader(`{"text":`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

// brokenService fails every call
type brokenService struct{ err error }

func (s brokenService) AddMessage(context.Context, *services.AddMessageRequest) (*services.AddMessageResult, error) {
	return nil, s.err
}

func (s brokenService) MakeUppercase(context.Context, triggers.DocumentCreated) error { return s.err }

func (s brokenService) GetMessage(context.Context, string) (*models.Message, error) {
	return nil, s.err
}

func TestAddMessage_StoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&RouterConfig{
		MessageService: brokenService{err: repositories.ConnectionError(errors.New("secret-host:5432 refused"))},
		Logger:         testLogger(),
		MaxInstances:   1,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/addmessage?text=x", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "secret-host") {
		t.Errorf("Internal details leaked: %s", w.Body.String())
	}
}

func TestGetMessage(t *testing.T) {
	router, repo := setupRouter(t)
	ctx := context.Background()

	id, _ := repo.Add(ctx, models.NewMessage("hello"))
	upper := "HELLO"
	_ = repo.Merge(ctx, id, models.MessageFields{Uppercase: &upper})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/messages/"+id, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var msg models.Message
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	if msg.ID != id || msg.OriginalText() != "hello" || msg.Uppercase == nil || *msg.Uppercase != "HELLO" {
		t.Errorf("Unexpected message: %+v", msg)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/messages/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := testLogger()
	repo := memory.NewMessageRepository("messages", logger)

	healthy := true
	router := NewRouter(&RouterConfig{
		MessageService: services.NewMessageService(repo, logger),
		Logger:         logger,
		MaxInstances:   1,
		HealthCheck: func(ctx context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("store down")
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}

	healthy = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestHandleAddMessage_Lambda(t *testing.T) {
	tests := []struct {
		name       string
		req        *lambda.Request
		wantStatus int
		wantText   string
	}{
		{
			name:       "query",
			req:        &lambda.Request{Method: "GET", QueryParams: map[string]string{"text": "hello"}},
			wantStatus: http.StatusOK,
			wantText:   "hello",
		},
		{
			name:       "empty query value",
			req:        &lambda.Request{Method: "GET", QueryParams: map[string]string{"text": ""}},
			wantStatus: http.StatusOK,
			wantText:   "",
		},
		{
			name: "json body",
			req: &lambda.Request{
				Method:  "POST",
				Headers: map[string]string{"content-type": "application/json; charset=utf-8"},
				Body:    []byte(`{"text":"json"}`),
			},
			wantStatus: http.StatusOK,
			wantText:   "json",
		},
		{
			name: "form body",
			req: &lambda.Request{
				Method:  "POST",
				Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
				Body:    []byte("text=form"),
			},
			wantStatus: http.StatusOK,
			wantText:   "form",
		},
		{
			name:       "missing",
			req:        &lambda.Request{Method: "GET"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "bad json",
			req: &lambda.Request{
				Method:  "POST",
				Headers: map[string]string{"Content-Type": "application/json"},
				Body:    []byte(`{`),
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := testLogger()
			repo := memory.NewMessageRepository("messages", logger)
			handler := NewMessageHandler(services.NewMessageService(repo, logger), logger)

			resp, err := handler.HandleAddMessage(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("HandleAddMessage failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, resp.StatusCode, resp.Body)
			}
			if tt.wantStatus != http.StatusOK {
				if repo.Count() != 0 {
					t.Error("Failed request should not create a message")
				}
				return
			}

			id := decodeResult(t, resp.Body)
			msg, _ := repo.GetByID(context.Background(), id)
			if msg == nil || msg.OriginalText() != tt.wantText {
				t.Errorf("Expected original %q, got %+v", tt.wantText, msg)
			}
		})
	}
}
