package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_History(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/chat/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("agentId"); got != "pixie" {
			t.Errorf("expected agentId pixie, got %q", got)
		}
		json.NewEncoder(w).Encode([]HistoryItem{
			{ID: "1", Role: "user", Content: "hi", UserID: "0xabc", Username: "0xabc"},
			{ID: "2", Role: "assistant", Content: "hello", UserID: "bot", Username: "ChatBot"},
		})
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL)
	items, err := c.History(context.Background(), "pixie")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(items) != 2 || items[1].Role != "assistant" {
		t.Errorf("unexpected history %+v", items)
	}
}

func TestHTTPClient_Cost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cost":1.2}`))
	}))
	defer server.Close()

	cost, err := NewHTTPClient(server.URL).Cost(context.Background(), "default")
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != 1.2 {
		t.Errorf("expected 1.2, got %v", cost)
	}
}

func TestHTTPClient_GetRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, WithRetries(2, time.Millisecond))
	if _, err := c.Agents(context.Background()); err != nil {
		t.Fatalf("Agents: %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_SendMessageNeverRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Internal server error"})
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, WithRetries(3, time.Millisecond))
	_, err := c.SendMessage(context.Background(), SendMessageRequest{UserID: "0xabc", Message: "hello", AgentID: "default"})
	if err == nil {
		t.Fatal("expected error")
	}
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.StatusCode != http.StatusInternalServerError || se.Message != "Internal server error" {
		t.Errorf("unexpected error %+v", se)
	}
	if attempts.Load() != 1 {
		t.Errorf("paid messages must be sent once, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_SendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Message != "hello" || req.AgentID != "default" || req.UserID != "0xabc" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"success":true,"message":{"id":"9","content":"hi there"}}`))
	}))
	defer server.Close()

	resp, err := NewHTTPClient(server.URL).SendMessage(context.Background(), SendMessageRequest{
		UserID:   "0xabc",
		Username: "0xabc",
		Message:  "hello",
		AgentID:  "default",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if resp.ReplyText() != "hi there" {
		t.Errorf("expected reply 'hi there', got %q", resp.ReplyText())
	}
	if resp.ReplyMessageID() != "9" {
		t.Errorf("expected reply id 9, got %q", resp.ReplyMessageID())
	}
}

func TestHTTPClient_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, WithRetries(3, time.Millisecond))
	if _, err := c.History(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestToDomainMessage(t *testing.T) {
	m := ToDomainMessage(HistoryItem{ID: "1", Role: "weird", Content: "x", UserID: "0xabc"}, "default")
	if m.Role != "user" {
		t.Errorf("unknown role should map to user, got %s", m.Role)
	}
	if m.Name != "0xabc" || m.AgentID != "default" {
		t.Errorf("unexpected message %+v", m)
	}
}
