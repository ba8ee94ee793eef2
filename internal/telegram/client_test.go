package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendMessage(t *testing.T) {
	t.Parallel()
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"ok": true, "result": {"message_id": 77}}`))
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	if err := c.SendMessage(context.Background(), 42, "안녕!"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["text"] != "안녕!" || gotBody["chat_id"] != float64(42) {
		t.Fatalf("body = %v", gotBody)
	}
	if gotBody["parse_mode"] != "HTML" {
		t.Fatalf("parse_mode = %v, want HTML", gotBody["parse_mode"])
	}
}

func TestCallSurfacesAPIFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "description": "Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	err := c.SendMessage(context.Background(), 42, "hi")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v, want API description surfaced", err)
	}
}

func TestSetWebhook(t *testing.T) {
	t.Parallel()
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotURL, _ = body["url"].(string)
		w.Write([]byte(`{"ok": true, "result": true}`))
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	if err := c.SetWebhook(context.Background(), "https://dearie.example.com/webhook"); err != nil {
		t.Fatalf("SetWebhook: %v", err)
	}
	if gotURL != "https://dearie.example.com/webhook" {
		t.Fatalf("url = %q", gotURL)
	}
}
