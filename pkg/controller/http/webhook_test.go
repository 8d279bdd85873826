package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	controller "github.com/m-mizutani/reltrace/pkg/controller/http"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
)

// generateSignature generates HMAC-SHA256 signature for testing
func generateSignature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler_SignatureVerification(t *testing.T) {
	secret := "test-secret"

	tests := []struct {
		name           string
		payload        string
		signature      string
		wantStatusCode int
	}{
		{
			name:           "Valid signature",
			payload:        `{"action":"closed","pull_request":{"id":1},"repository":{"full_name":"test/repo"},"sender":{"login":"testuser"}}`,
			signature:      "", // Will be generated
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "Invalid signature",
			payload:        `{"action":"closed"}`,
			signature:      "sha256=invalid",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "Missing signature",
			payload:        `{"action":"closed"}`,
			signature:      "",
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &webhookMock{}
			handler := controller.NewWebhookHandler(secret, uc)

			payload := []byte(tt.payload)
			signature := tt.signature
			if signature == "" && tt.wantStatusCode == http.StatusOK {
				signature = generateSignature(secret, payload)
			}

			req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-GitHub-Event", "pull_request")
			req.Header.Set("X-GitHub-Delivery", "test-delivery")
			req.Header.Set("X-Hub-Signature-256", signature)

			w := httptest.NewRecorder()
			handler.Handle(w, req)

			if w.Code != tt.wantStatusCode {
				t.Errorf("Handle() status = %v, want %v", w.Code, tt.wantStatusCode)
			}
			if tt.wantStatusCode != http.StatusOK && len(uc.events) != 0 {
				t.Error("rejected delivery must not reach the use case")
			}
		})
	}
}

func TestWebhookHandler_EventParsing(t *testing.T) {
	secret := "test-secret"

	tests := []struct {
		name           string
		eventType      string
		payload        map[string]any
		wantStatusCode int
		wantType       model.WebhookEventType
		wantRepository string
	}{
		{
			name:      "Pull Request closed event",
			eventType: "pull_request",
			payload: map[string]any{
				"action":       "closed",
				"pull_request": map[string]any{"id": 1},
				"repository":   map[string]any{"full_name": "test/repo"},
				"sender":       map[string]any{"login": "testuser"},
			},
			wantStatusCode: http.StatusOK,
			wantType:       model.EventTypePullRequest,
			wantRepository: "test/repo",
		},
		{
			name:      "Release published event",
			eventType: "release",
			payload: map[string]any{
				"action":     "published",
				"release":    map[string]any{"id": 1},
				"repository": map[string]any{"full_name": "test/repo"},
				"sender":     map[string]any{"login": "testuser"},
			},
			wantStatusCode: http.StatusOK,
			wantType:       model.EventTypeRelease,
			wantRepository: "test/repo",
		},
		{
			name:      "Push event",
			eventType: "push",
			payload: map[string]any{
				"ref":        "refs/heads/main",
				"repository": map[string]any{"full_name": "test/repo", "default_branch": "main"},
			},
			wantStatusCode: http.StatusOK,
			wantType:       model.EventTypePush,
			wantRepository: "test/repo",
		},
		{
			name:           "Unregistered event type",
			eventType:      "no_such_event",
			payload:        map[string]any{},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &webhookMock{}
			handler := controller.NewWebhookHandler(secret, uc)

			payloadBytes, err := json.Marshal(tt.payload)
			gt.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payloadBytes))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-GitHub-Event", tt.eventType)
			req.Header.Set("X-GitHub-Delivery", "test-delivery")
			req.Header.Set("X-Hub-Signature-256", generateSignature(secret, payloadBytes))

			w := httptest.NewRecorder()
			handler.Handle(w, req)

			gt.Equal(t, w.Code, tt.wantStatusCode)
			if tt.wantStatusCode != http.StatusOK {
				gt.Equal(t, len(uc.events), 0)
				return
			}

			var response map[string]string
			gt.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			gt.Equal(t, response["status"], "success")
			gt.Equal(t, response["delivery_id"], "test-delivery")

			gt.Equal(t, len(uc.events), 1)
			gt.Equal(t, uc.events[0].Type, tt.wantType)
			gt.Equal(t, uc.events[0].Repository, tt.wantRepository)
		})
	}
}

func TestWebhookHandler_GeneratesDeliveryID(t *testing.T) {
	secret := "test-secret"
	uc := &webhookMock{}
	handler := controller.NewWebhookHandler(secret, uc)

	payload := []byte(`{"ref":"refs/heads/main","repository":{"full_name":"test/repo"}}`)
	req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payload))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", generateSignature(secret, payload))

	w := httptest.NewRecorder()
	handler.Handle(w, req)

	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, len(uc.events), 1)
	gt.Number(t, len(uc.events[0].ID)).Greater(0)
}

func TestWebhookHandler_UseCaseFailure(t *testing.T) {
	secret := "test-secret"
	uc := &webhookMock{err: errors.New("cache unavailable")}
	handler := controller.NewWebhookHandler(secret, uc)

	payload := []byte(`{"action":"published","repository":{"full_name":"test/repo"}}`)
	req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payload))
	req.Header.Set("X-GitHub-Event", "release")
	req.Header.Set("X-Hub-Signature-256", generateSignature(secret, payload))

	w := httptest.NewRecorder()
	handler.Handle(w, req)

	gt.Equal(t, w.Code, http.StatusInternalServerError)
	gt.String(t, w.Body.String()).Contains("cache unavailable")
}

func TestWebhookHandler_Integration(t *testing.T) {
	ctx := context.Background()
	secret := "integration-test-secret"
	uc := &webhookMock{}

	server, err := controller.NewServer(
		ctx,
		uc,
		&timelineMock{},
		&changelogMock{},
		controller.WithAddr("localhost:0"),
		controller.WithWebhookSecret(secret),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	payloadBytes, _ := json.Marshal(map[string]any{
		"action":     "released",
		"release":    map[string]any{"id": 1},
		"repository": map[string]any{"full_name": "test/repo"},
		"sender":     map[string]any{"login": "testuser"},
	})
	signature := generateSignature(secret, payloadBytes)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/hooks/github/app", bytes.NewReader(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "release")
	req.Header.Set("X-GitHub-Delivery", "integration-test")
	req.Header.Set("X-Hub-Signature-256", signature)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer func() {
		_ = resp.Body.Close() // Error ignored in test
	}()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code = %v, want %v", resp.StatusCode, http.StatusOK)
	}
}
