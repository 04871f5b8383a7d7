package uam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode reply: %v", err)
	}
}

func TestHTTPReasonerDecide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("missing bearer token, got %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4" {
			t.Fatalf("unexpected model %q", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected system+user messages, got %d", len(req.Messages))
		}
		chatReply(t, w, "Here is my verdict:\n```json\n{\"decision\": \"create_ticket\", \"reasoning\": \"Needs review.\", \"confidence\": 0.72}\n```")
	}))
	defer srv.Close()

	reasoner, err := NewHTTPReasoner(ReasonerConfig{Endpoint: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("new reasoner: %v", err)
	}

	resp, err := reasoner.Decide(context.Background(), &ReasoningRequest{
		RequestedPermission: "Database - Developer",
		User:                &UserContext{UserID: "u-1"},
		Rule:                &PermissionRule{},
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if resp.Decision != OutcomeCreateTicket || resp.Confidence != 0.72 {
		t.Fatalf("unexpected verdict: %+v", resp)
	}
}

func TestHTTPReasonerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reasoner, _ := NewHTTPReasoner(ReasonerConfig{Endpoint: srv.URL})
	if _, err := reasoner.Decide(context.Background(), &ReasoningRequest{Rule: &PermissionRule{}}); err == nil {
		t.Fatal("expected error on 5xx response")
	}
}

func TestHTTPReasonerNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	reasoner, _ := NewHTTPReasoner(ReasonerConfig{Endpoint: srv.URL})
	if _, err := reasoner.Decide(context.Background(), &ReasoningRequest{Rule: &PermissionRule{}}); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestHTTPReasonerRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPReasoner(ReasonerConfig{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestParseReasonerContent(t *testing.T) {
	out, err := parseReasonerContent(`prose before {"decision":"grant","reasoning":"ok","confidence":0.9} prose after`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Decision != OutcomeGrant {
		t.Fatalf("expected grant, got %s", out.Decision)
	}

	if _, err := parseReasonerContent("no json here"); err == nil {
		t.Fatal("expected error for missing JSON object")
	}
	if _, err := parseReasonerContent(`{"decision":"maybe"}`); err == nil {
		t.Fatal("expected error for unknown decision value")
	}
}
