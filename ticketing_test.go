package uam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServiceNowOpenTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "hunter2" {
			t.Fatalf("basic auth not sent: %v %q %q", ok, user, pass)
		}
		if r.URL.Path != "/api/now/table/incident" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["urgency"] != "2" {
			t.Fatalf("expected urgency 2 for score 60, got %v", payload["urgency"])
		}
		w.Write([]byte(`{"result": {"number": "INC0012345", "sys_id": "abc123"}}`))
	}))
	defer srv.Close()

	client, err := NewServiceNowClient(TicketingConfig{
		InstanceURL: srv.URL,
		Username:    "svc",
		Password:    "hunter2",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	id, err := client.OpenTicket(context.Background(), &TicketRequest{
		RequestID:     "req-1",
		UserID:        "u-1",
		Permission:    "Database - Developer",
		PriorityScore: 60,
		Outcome:       OutcomeCreateTicket,
	})
	if err != nil {
		t.Fatalf("open ticket: %v", err)
	}
	if id != "INC0012345" {
		t.Fatalf("expected ticket number, got %q", id)
	}
}

func TestServiceNowOpenTicketFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := NewServiceNowClient(TicketingConfig{InstanceURL: srv.URL})
	if _, err := client.OpenTicket(context.Background(), &TicketRequest{RequestID: "req-1"}); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestServiceNowClientRequiresURL(t *testing.T) {
	if _, err := NewServiceNowClient(TicketingConfig{}); err == nil {
		t.Fatal("expected error for missing instance URL")
	}
}

func TestPlaceholderTicketID(t *testing.T) {
	id := PlaceholderTicketID("req-42")
	if !strings.HasPrefix(id, "TKT-") {
		t.Fatalf("expected TKT- prefix, got %q", id)
	}
	if !strings.HasSuffix(id, "-req-42") {
		t.Fatalf("expected request id suffix, got %q", id)
	}
}

func TestEngineUsesTicketClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"number": "INC0099"}}`))
	}))
	defer srv.Close()

	client, _ := NewServiceNowClient(TicketingConfig{InstanceURL: srv.URL})
	e := newTestEngine(t, nil, nil, WithTicketClient(client))

	result, err := e.ProcessRequest(context.Background(), &EvaluationRequest{
		UserID:              "u-1",
		RequestedPermission: "Mystery System Access",
		User:                &UserContext{UserID: "u-1"},
	})
	if err != nil {
		t.Fatalf("process request: %v", err)
	}
	if result.TicketID != "INC0099" {
		t.Fatalf("expected ticket from client, got %q", result.TicketID)
	}
}
