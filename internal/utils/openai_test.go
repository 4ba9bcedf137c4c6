package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskbuddy/internal/models"
)

func TestClassifyIntentDecodesToolCall(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"function":{"name":"parse_task_intent",
			"arguments":"{\"intent\":\"add_task\",\"task_content\":\"call mom\",\"time_value\":\"tomorrow at 6\",\"time_type\":\"scheduled\",\"reminder_offset\":30}"}}]}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "test-model", time.Second)
	intent, err := c.ClassifyIntent(context.Background(), "remind me to call mom tomorrow at 6", []string{"buy milk"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if intent.Intent != models.IntentAddTask || intent.TimeValue != "tomorrow at 6" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if intent.ReminderOffset == nil || *intent.ReminderOffset != 30 {
		t.Fatalf("unexpected offset %v", intent.ReminderOffset)
	}
	if got.Model != "test-model" || len(got.Messages) != 2 || !strings.Contains(got.Messages[1].Content, "1. buy milk") {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestClassifyIntentDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "", time.Second)
	if _, err := c.ClassifyIntent(context.Background(), "hi", nil); err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected api error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestClassifyIntentRequiresKey(t *testing.T) {
	c := NewOpenAIClient("", "", "", 0)
	if _, err := c.ClassifyIntent(context.Background(), "hi", nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}
