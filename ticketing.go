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

// TicketRequest carries everything the ticketing system needs to open a
// manual-review ticket for a request.
type TicketRequest struct {
	RequestID     string  `json:"request_id"`
	UserID        string  `json:"user_id"`
	RequestType   string  `json:"request_type"`
	Permission    string  `json:"permission"`
	Description   string  `json:"description"`
	PriorityScore float64 `json:"priority_score"`
	Outcome       Outcome `json:"outcome"`
	Reasoning     string  `json:"reasoning"`
}

// TicketClient opens review tickets in an external system. A failed call never
// fails the evaluation; the engine substitutes a placeholder ticket ID.
type TicketClient interface {
	OpenTicket(ctx context.Context, req *TicketRequest) (string, error)
}

// PlaceholderTicketID derives a deterministic local ticket reference for a
// request when no ticketing system is reachable.
func PlaceholderTicketID(requestID string) string {
	return fmt.Sprintf("TKT-%s-%s", time.Now().Format("20060102-150405"), requestID)
}

// TicketingConfig configures the REST ticketing client
type TicketingConfig struct {
	InstanceURL string        `json:"instance_url" yaml:"instance_url"`
	Username    string        `json:"username" yaml:"username"`
	Password    string        `json:"password" yaml:"password"`
	Table       string        `json:"table" yaml:"table"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// ServiceNowClient talks to a ServiceNow-compatible table API over basic auth
type ServiceNowClient struct {
	cfg    TicketingConfig
	client *http.Client
}

func NewServiceNowClient(cfg TicketingConfig) (*ServiceNowClient, error) {
	if cfg.InstanceURL == "" {
		return nil, fmt.Errorf("ticketing instance URL is required")
	}
	if cfg.Table == "" {
		cfg.Table = "incident"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.InstanceURL = strings.TrimRight(cfg.InstanceURL, "/")
	return &ServiceNowClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Ticket is the subset of ticket fields the engine cares about
type Ticket struct {
	Number           string `json:"number"`
	SysID            string `json:"sys_id"`
	State            string `json:"state,omitempty"`
	ShortDescription string `json:"short_description,omitempty"`
}

type snResult struct {
	Result Ticket `json:"result"`
}

// OpenTicket creates a ticket and returns its number
func (c *ServiceNowClient) OpenTicket(ctx context.Context, req *TicketRequest) (string, error) {
	payload := map[string]any{
		"short_description": fmt.Sprintf("Access request: %s for user %s", req.Permission, req.UserID),
		"description": fmt.Sprintf("Request ID: %s\nRequest Type: %s\nPermission: %s\nPriority Score: %.2f\n\n%s\n\nDecision reasoning:\n%s",
			req.RequestID, req.RequestType, req.Permission, req.PriorityScore, req.Description, req.Reasoning),
		"category": "access_management",
		"urgency":  urgencyFromScore(req.PriorityScore),
	}

	var out snResult
	if err := c.call(ctx, http.MethodPost, c.tableURL(""), payload, &out); err != nil {
		return "", err
	}
	if out.Result.Number != "" {
		return out.Result.Number, nil
	}
	if out.Result.SysID != "" {
		return out.Result.SysID, nil
	}
	return "", fmt.Errorf("ticketing system returned no ticket identifier")
}

// GetTicket fetches a ticket by sys_id
func (c *ServiceNowClient) GetTicket(ctx context.Context, sysID string) (*Ticket, error) {
	var out snResult
	if err := c.call(ctx, http.MethodGet, c.tableURL(sysID), nil, &out); err != nil {
		return nil, err
	}
	rec := out.Result
	return &rec, nil
}

// UpdateTicket patches fields on an existing ticket
func (c *ServiceNowClient) UpdateTicket(ctx context.Context, sysID string, fields map[string]any) error {
	return c.call(ctx, http.MethodPatch, c.tableURL(sysID), fields, nil)
}

func (c *ServiceNowClient) tableURL(sysID string) string {
	u := fmt.Sprintf("%s/api/now/table/%s", c.cfg.InstanceURL, c.cfg.Table)
	if sysID != "" {
		u += "/" + sysID
	}
	return u
}

func (c *ServiceNowClient) call(ctx context.Context, method, url string, payload any, out any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ticketing system returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ticketing response: %w", err)
	}
	return nil
}

// urgencyFromScore maps the 0-100 priority score to ServiceNow urgency values
// (1 high, 2 medium, 3 low)
func urgencyFromScore(score float64) string {
	switch {
	case score >= 80:
		return "1"
	case score >= 50:
		return "2"
	default:
		return "3"
	}
}
