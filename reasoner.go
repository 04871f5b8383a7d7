package uam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ReasoningRequest is the context bundle handed to the reasoning service
type ReasoningRequest struct {
	RequestedPermission string                  `json:"requested_permission"`
	Description         string                  `json:"description"`
	PriorityScore       float64                 `json:"priority_score"`
	PreRequisites       map[string]PrereqStatus `json:"pre_requisites"`
	User                *UserContext            `json:"user"`
	Rule                *PermissionRule         `json:"rule"`
	Row                 *ConfigRow              `json:"row,omitempty"`
	ValidationIssues    []string                `json:"validation_issues,omitempty"`
}

// ReasoningResponse is the service's verdict. MissingInfo is only populated
// for ask_for_more_info decisions.
type ReasoningResponse struct {
	Decision    Outcome  `json:"decision"`
	Reasoning   string   `json:"reasoning"`
	Confidence  float64  `json:"confidence"`
	MissingInfo []string `json:"missing_info,omitempty"`
}

// ReasoningService produces a natural-language decision for a request.
// Implementations must return an error (never panic, never hang past their
// timeout) when the verdict cannot be produced; the caller falls back to the
// deterministic threshold policy.
type ReasoningService interface {
	Decide(ctx context.Context, req *ReasoningRequest) (*ReasoningResponse, error)
}

// ReasonerConfig configures the HTTP reasoning client
type ReasonerConfig struct {
	Endpoint    string        `json:"endpoint" yaml:"endpoint"`
	APIKey      string        `json:"api_key" yaml:"api_key"`
	Model       string        `json:"model" yaml:"model"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// HTTPReasoner calls a chat-completions style endpoint and expects the model
// to answer with a single JSON object. Every failure mode (transport, status,
// malformed body) surfaces as an error so the delegated policy can fall back.
type HTTPReasoner struct {
	cfg    ReasonerConfig
	client *http.Client
}

func NewHTTPReasoner(cfg ReasonerConfig) (*HTTPReasoner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("reasoner endpoint is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPReasoner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const reasonerSystemPrompt = "You are a security and access management expert. " +
	"Decide on access requests and answer with a single JSON object containing " +
	`"decision" (one of grant, create_ticket, reject, ask_for_more_info), ` +
	`"reasoning" (2-3 professional sentences suitable for audit logs), ` +
	`"confidence" (0-1) and optionally "missing_info" (array of strings).`

func (r *HTTPReasoner) Decide(ctx context.Context, req *ReasoningRequest) (*ReasoningResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:       r.cfg.Model,
		Temperature: r.cfg.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: reasonerSystemPrompt},
			{Role: "user", Content: buildReasonerPrompt(req)},
		},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("reasoner returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode reasoner response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("reasoner returned no choices")
	}

	return parseReasonerContent(chat.Choices[0].Message.Content)
}

// parseReasonerContent extracts the JSON verdict from the model's reply,
// tolerating surrounding prose or code fences
func parseReasonerContent(content string) (*ReasoningResponse, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reasoner reply")
	}
	var out ReasoningResponse
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parse reasoner verdict: %w", err)
	}
	if !out.Decision.valid() {
		return nil, fmt.Errorf("reasoner returned unknown decision %q", out.Decision)
	}
	return &out, nil
}

func buildReasonerPrompt(req *ReasoningRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "REQUESTED PERMISSION: %s\n", req.RequestedPermission)
	if req.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION: %s\n", req.Description)
	}
	if req.User != nil {
		fmt.Fprintf(&b, "\nUSER CONTEXT:\nUser ID: %s\nDepartment: %s\nRole: %s\nEmployee Type: %s\nCurrent Permissions: %d active\nRecent Requests: %d in history\n",
			req.User.UserID, req.User.Department, req.User.Role, req.User.EmployeeType,
			len(req.User.CurrentPermissions), len(req.User.RecentRequests))
	}
	if len(req.PreRequisites) > 0 {
		b.WriteString("\nPRE-REQUISITES STATUS:\n")
		for phrase, status := range req.PreRequisites {
			mark := "not met"
			if status.Met {
				mark = "met"
			}
			fmt.Fprintf(&b, "- %s: %s (%s)\n", phrase, mark, status.Details)
		}
	}
	if req.Row != nil {
		fmt.Fprintf(&b, "\nMATCHED CONFIGURATION ROW:\nRole: %s\nApplication: %s\nAccess Level: %s\nTraining Required: %s\nApproval Required: %s\nException Scenario: %s\n",
			req.Row.Role, req.Row.Application, req.Row.AccessLevel,
			req.Row.TrainingRequired, req.Row.ApprovalRequired, req.Row.ExceptionScenario)
	}
	if len(req.ValidationIssues) > 0 {
		b.WriteString("\nVALIDATION ISSUES:\n")
		for _, issue := range req.ValidationIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	fmt.Fprintf(&b, "\nPRIORITY SCORE: %.2f/100\n", req.PriorityScore)
	return b.String()
}
