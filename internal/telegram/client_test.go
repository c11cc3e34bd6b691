package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func withTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	prev := apiBase
	apiBase = srv.URL + "/bot"
	t.Cleanup(func() { apiBase = prev })

	return New("test-token")
}

func TestClient_Call_Success(t *testing.T) {
	c := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hi" {
			t.Fatalf("expected text=hi, got %v", body["text"])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"message_id": 7},
		})
	})

	msg, err := c.SendMessage(context.Background(), 100, "hi", SendMessageOpts{})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.MessageID != 7 {
		t.Fatalf("expected message_id=7, got %d", msg.MessageID)
	}
}

func TestClient_Call_APIError(t *testing.T) {
	c := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"description": "Bad Request: message thread not found",
		})
	})

	_, err := c.ForwardMessage(context.Background(), 100, 200, 1, 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsTopicLost(err) {
		t.Fatalf("expected topic-lost signal, got %v", err)
	}
}

func TestIsTopicLost_NonAPIError(t *testing.T) {
	if IsTopicLost(context.DeadlineExceeded) {
		t.Fatalf("expected non-APIError to not be classified as topic-lost")
	}
}
