package uam

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	phlog "github.com/oarkflow/log"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Outcome represents the terminal result of one request evaluation
type Outcome string

const (
	OutcomeGrant        Outcome = "grant"
	OutcomeCreateTicket Outcome = "create_ticket"
	OutcomeReject       Outcome = "reject"
	OutcomeAskMoreInfo  Outcome = "ask_for_more_info"
)

// PriorityLevel of a permission rule
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "high"
	PriorityMedium PriorityLevel = "medium"
	PriorityLow    PriorityLevel = "low"
)

// PermissionRule is a named permission/type pair with priority, auto-grant
// eligibility and an ordered list of free-text prerequisite phrases.
// Rules are synced from the configuration source and immutable during evaluation.
type PermissionRule struct {
	PermissionType   string        `json:"permission_type" yaml:"permission_type"`
	PermissionName   string        `json:"permission_name" yaml:"permission_name"`
	PreRequisites    []string      `json:"pre_requisites" yaml:"pre_requisites"`
	PriorityLevel    PriorityLevel `json:"priority_level" yaml:"priority_level"`
	AutoGrantEnabled bool          `json:"auto_grant_enabled" yaml:"auto_grant_enabled"`
}

// SyntheticDefaultRule is used when no rule matches a request so that mandatory
// row validation still runs against the configuration rows.
func SyntheticDefaultRule(requestedPermission string) *PermissionRule {
	return &PermissionRule{
		PermissionType:   "unclassified",
		PermissionName:   requestedPermission,
		PreRequisites:    nil,
		PriorityLevel:    PriorityMedium,
		AutoGrantEnabled: false,
	}
}

// PermissionGrant is the metadata attached to a permission a user holds
type PermissionGrant struct {
	GrantedAt   time.Time `json:"granted_at"`
	GrantedBy   string    `json:"granted_by"`
	TicketID    string    `json:"ticket_id,omitempty"`
	AutoGranted bool      `json:"auto_granted"`
}

// RequestSummary is a compact view of a past request used for history analysis
type RequestSummary struct {
	ID          string    `json:"id"`
	Permission  string    `json:"permission"`
	Status      string    `json:"status"`
	AutoGranted bool      `json:"auto_granted"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserContext is the caller-supplied snapshot of who is asking.
// The engine reads it and never mutates it.
type UserContext struct {
	UserID                 string                     `json:"user_id" yaml:"user_id"`
	Username               string                     `json:"username,omitempty" yaml:"username,omitempty"`
	Email                  string                     `json:"email,omitempty" yaml:"email,omitempty"`
	Department             string                     `json:"department" yaml:"department"`
	Role                   string                     `json:"role" yaml:"role"`
	EmployeeType           string                     `json:"employee_type" yaml:"employee_type"`
	SecurityClearanceLevel int                        `json:"security_clearance_level" yaml:"security_clearance_level"`
	CompletedTrainings     []string                   `json:"completed_trainings" yaml:"completed_trainings"`
	CurrentPermissions     map[string]PermissionGrant `json:"current_permissions,omitempty" yaml:"current_permissions,omitempty"`
	RecentRequests         []RequestSummary           `json:"recent_requests,omitempty" yaml:"recent_requests,omitempty"`
}

// ConfigRow is one entry of the tabular configuration source: a
// role/application/training/exception combination. Many rows may match a
// request; only the best is validated.
type ConfigRow struct {
	Role               string `json:"role" yaml:"role"`
	Application        string `json:"application" yaml:"application"`
	AccessLevel        string `json:"access_level" yaml:"access_level"`
	Environment        string `json:"environment" yaml:"environment"`
	TrainingRequired   string `json:"training_required" yaml:"training_required"`
	ApprovalRequired   string `json:"approval_required" yaml:"approval_required"`
	ExceptionScenario  string `json:"exception_scenario" yaml:"exception_scenario"`
	Notes              string `json:"notes" yaml:"notes"`
	AuthorizingManager string `json:"authorizing_manager" yaml:"authorizing_manager"`
	RowIndex           int    `json:"row_index" yaml:"row_index"`
	MatchScore         int    `json:"match_score" yaml:"-"`
}

// ValidationResult is computed fresh per (row, user) pair
type ValidationResult struct {
	IsValid           bool     `json:"is_valid"`
	ValidationIssues  []string `json:"validation_issues"`
	TrainingMatch     bool     `json:"training_match"`
	ExceptionViolated bool     `json:"exception_violated"`
}

// PrereqStatus is the evaluation of a single prerequisite phrase
type PrereqStatus struct {
	Met     bool   `json:"met"`
	Details string `json:"details"`
}

// Decision is the terminal value of one evaluation
type Decision struct {
	Outcome             Outcome                 `json:"outcome"`
	PriorityScore       float64                 `json:"priority_score"`
	Confidence          float64                 `json:"confidence"`
	Reasoning           string                  `json:"reasoning"`
	PreRequisitesStatus map[string]PrereqStatus `json:"pre_requisites_status"`
	MissingInfo         []string                `json:"missing_info,omitempty"`
	RuleName            string                  `json:"rule_name,omitempty"`
	MatchedRow          *ConfigRow              `json:"matched_row,omitempty"`
	Trace               []string                `json:"trace,omitempty"`
	Timestamp           time.Time               `json:"timestamp"`
}

// EvaluationRequest is the boundary input for one evaluation
type EvaluationRequest struct {
	UserID              string       `json:"user_id"`
	RequestType         string       `json:"request_type"`
	RequestedPermission string       `json:"requested_permission"`
	Description         string       `json:"description"`
	User                *UserContext `json:"user"`
}

// RequestRecord is the request/decision tuple emitted for storage
type RequestRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	RequestType   string    `json:"request_type"`
	Permission    string    `json:"permission"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	PriorityScore float64   `json:"priority_score"`
	Confidence    float64   `json:"confidence"`
	AutoGranted   bool      `json:"auto_granted"`
	TicketID      string    `json:"ticket_id,omitempty"`
	Reasoning     string    `json:"reasoning"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProcessResult is what ProcessRequest returns after executing the decision
type ProcessResult struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Permission  string    `json:"permission"`
	Decision    *Decision `json:"decision"`
	Status      string    `json:"status"`
	AutoGranted bool      `json:"auto_granted"`
	TicketID    string    `json:"ticket_id,omitempty"`
	Message     string    `json:"message"`
}

// Execution statuses written back to the request record
const (
	StatusGranted       = "granted"
	StatusTicketCreated = "ticket_created"
	StatusRejected      = "rejected"
	StatusPendingInfo   = "pending_info"
)

// ============================================================================
// RULE CATALOG
// ============================================================================

// Catalog is a read-only set of permission rules
type Catalog struct {
	rules []*PermissionRule
}

func NewCatalog(rules []*PermissionRule) *Catalog {
	return &Catalog{rules: rules}
}

func (c *Catalog) Rules() []*PermissionRule {
	return c.rules
}

// FindRule locates the rule for a request: case-insensitive substring match on
// permission name first, then on permission type. This is deliberately
// first-match in input order, not best-match; absence is a valid result (nil).
func (c *Catalog) FindRule(requestedPermission, requestType string) *PermissionRule {
	if c == nil {
		return nil
	}
	perm := strings.ToLower(requestedPermission)
	for _, r := range c.rules {
		name := strings.ToLower(r.PermissionName)
		if name != "" && (strings.Contains(perm, name) || strings.Contains(name, perm)) {
			return r
		}
	}
	reqType := strings.ToLower(requestType)
	if reqType == "" {
		return nil
	}
	for _, r := range c.rules {
		typ := strings.ToLower(r.PermissionType)
		if typ != "" && (strings.Contains(reqType, typ) || strings.Contains(typ, reqType)) {
			return r
		}
	}
	return nil
}

// Snapshot is the immutable reference data one evaluation runs against.
// It is loaded once and swapped atomically, never mutated in place.
type Snapshot struct {
	Catalog *Catalog
	Rows    []ConfigRow
}

// ============================================================================
// STORAGE INTERFACES
// ============================================================================

// RequestStore persists request records and answers history queries
type RequestStore interface {
	SaveRequest(ctx context.Context, r *RequestRecord) error
	UpdateRequest(ctx context.Context, r *RequestRecord) error
	ListRequests(ctx context.Context, userID string, limit int) ([]*RequestRecord, error)
	SimilarRequests(ctx context.Context, permission string) ([]RequestSummary, error)
}

// AuditStore persists the decision audit trail
type AuditStore interface {
	LogDecision(ctx context.Context, entry *AuditEntry) error
	GetDecisionLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// UserStore persists user context snapshots
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*UserContext, error)
	SaveUser(ctx context.Context, user *UserContext) error
	GrantPermission(ctx context.Context, userID, permission string, grant PermissionGrant) error
}

// AuditEntry is one decision in the audit trail
type AuditEntry struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	RequestID     string         `json:"request_id"`
	UserID        string         `json:"user_id"`
	Permission    string         `json:"permission"`
	RequestType   string         `json:"request_type"`
	Outcome       Outcome        `json:"outcome"`
	Status        string         `json:"status"`
	PriorityScore float64        `json:"priority_score"`
	Confidence    float64        `json:"confidence"`
	Reasoning     string         `json:"reasoning"`
	RuleName      string         `json:"rule_name,omitempty"`
	TicketID      string         `json:"ticket_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// AuditFilter for querying the audit trail
type AuditFilter struct {
	UserID     string
	Permission string
	Outcome    Outcome
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
}

// ============================================================================
// IN-MEMORY STORES
// ============================================================================

type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*RequestRecord
	order    []string
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]*RequestRecord)}
}

func (s *MemoryRequestStore) SaveRequest(ctx context.Context, r *RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	cop := *r
	s.requests[r.ID] = &cop
	return nil
}

func (s *MemoryRequestStore) UpdateRequest(ctx context.Context, r *RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; !ok {
		return fmt.Errorf("request not found: %s", r.ID)
	}
	cop := *r
	cop.UpdatedAt = time.Now()
	s.requests[r.ID] = &cop
	return nil
}

func (s *MemoryRequestStore) ListRequests(ctx context.Context, userID string, limit int) ([]*RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*RequestRecord, 0)
	// newest first
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.requests[s.order[i]]
		if userID != "" && r.UserID != userID {
			continue
		}
		cop := *r
		result = append(result, &cop)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryRequestStore) SimilarRequests(ctx context.Context, permission string) ([]RequestSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perm := strings.ToLower(permission)
	result := make([]RequestSummary, 0)
	for _, id := range s.order {
		r := s.requests[id]
		if !strings.Contains(strings.ToLower(r.Permission), perm) && !strings.Contains(perm, strings.ToLower(r.Permission)) {
			continue
		}
		result = append(result, RequestSummary{
			ID:          r.ID,
			Permission:  r.Permission,
			Status:      r.Status,
			AutoGranted: r.AutoGranted,
			CreatedAt:   r.CreatedAt,
		})
	}
	return result, nil
}

type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{entries: make([]*AuditEntry, 0)}
}

func (s *MemoryAuditStore) LogDecision(ctx context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryAuditStore) GetDecisionLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*AuditEntry, 0)
	for _, entry := range s.entries {
		if filter.UserID != "" && entry.UserID != filter.UserID {
			continue
		}
		if filter.Permission != "" && entry.Permission != filter.Permission {
			continue
		}
		if filter.Outcome != "" && entry.Outcome != filter.Outcome {
			continue
		}
		if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
			continue
		}
		result = append(result, entry)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*UserContext
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*UserContext)}
}

func (s *MemoryUserStore) GetUser(ctx context.Context, userID string) (*UserContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	cop := *u
	return &cop, nil
}

func (s *MemoryUserStore) SaveUser(ctx context.Context, user *UserContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *user
	s.users[user.UserID] = &cop
	return nil
}

func (s *MemoryUserStore) GrantPermission(ctx context.Context, userID, permission string, grant PermissionGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	if u.CurrentPermissions == nil {
		u.CurrentPermissions = make(map[string]PermissionGrant)
	}
	u.CurrentPermissions[permission] = grant
	return nil
}

// ============================================================================
// EVALUATION ENGINE
// ============================================================================

// Default priority thresholds on the 0-100 score scale
const (
	DefaultAutoGrantThreshold       = 80.0
	DefaultRequireApprovalThreshold = 50.0
)

type Engine struct {
	snapshot      atomic.Pointer[Snapshot]
	policy        DecisionPolicy
	requestStore  RequestStore
	auditStore    AuditStore
	userStore     UserStore
	tickets       TicketClient
	logger        Logger
	decisionCache *decisionCache

	autoGrantThreshold       float64
	requireApprovalThreshold float64

	// asynchronous audit channel so persistence never blocks an evaluation
	auditCh chan AuditEntry
}

// EngineOption mutates an Engine during construction
type EngineOption func(e *Engine) error

// WithDecisionPolicy installs the decision policy (threshold or delegated)
func WithDecisionPolicy(p DecisionPolicy) EngineOption {
	return func(e *Engine) error {
		if p == nil {
			return fmt.Errorf("decision policy must not be nil")
		}
		e.policy = p
		return nil
	}
}

// WithTicketClient installs the ticketing client used for create_ticket outcomes
func WithTicketClient(t TicketClient) EngineOption {
	return func(e *Engine) error {
		e.tickets = t
		return nil
	}
}

// WithUserStore installs the user store used by ProcessRequest and summaries
func WithUserStore(s UserStore) EngineOption {
	return func(e *Engine) error {
		e.userStore = s
		return nil
	}
}

// WithThresholds overrides the auto-grant / require-approval score thresholds
func WithThresholds(autoGrant, requireApproval float64) EngineOption {
	return func(e *Engine) error {
		if autoGrant < 0 || autoGrant > 100 || requireApproval < 0 || requireApproval > 100 {
			return fmt.Errorf("thresholds must be within [0,100]")
		}
		e.autoGrantThreshold = autoGrant
		e.requireApprovalThreshold = requireApproval
		return nil
	}
}

func NewEngine(requests RequestStore, audits AuditStore, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		requestStore:             requests,
		auditStore:               audits,
		autoGrantThreshold:       DefaultAutoGrantThreshold,
		requireApprovalThreshold: DefaultRequireApprovalThreshold,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.policy == nil {
		e.policy = NewThresholdPolicy(e.autoGrantThreshold, e.requireApprovalThreshold)
	}
	e.snapshot.Store(&Snapshot{Catalog: NewCatalog(nil)})

	e.auditCh = make(chan AuditEntry, 1024)
	go func() {
		bg := context.Background()
		for entry := range e.auditCh {
			if e.auditStore != nil {
				_ = e.auditStore.LogDecision(bg, &entry)
			}
		}
	}()
	return e, nil
}

// SetSnapshot installs a new immutable reference-data snapshot. Evaluations in
// flight keep the snapshot they started with.
func (e *Engine) SetSnapshot(snap *Snapshot) {
	if snap == nil {
		snap = &Snapshot{Catalog: NewCatalog(nil)}
	}
	if snap.Catalog == nil {
		snap.Catalog = NewCatalog(nil)
	}
	e.snapshot.Store(snap)
	e.invalidateDecisionCache()
}

func (e *Engine) CurrentSnapshot() *Snapshot {
	return e.snapshot.Load()
}

// Evaluate runs one full evaluation and always terminates with a Decision
// unless the caller violates the contract (nil user context, empty permission).
func (e *Engine) Evaluate(ctx context.Context, req *EvaluationRequest) (*Decision, error) {
	return e.evaluateInternal(ctx, req, false)
}

// Explain is Evaluate with a step-by-step trace attached to the Decision
func (e *Engine) Explain(ctx context.Context, req *EvaluationRequest) (*Decision, error) {
	return e.evaluateInternal(ctx, req, true)
}

func (e *Engine) evaluateInternal(ctx context.Context, req *EvaluationRequest, includeTrace bool) (*Decision, error) {
	if req == nil || req.User == nil {
		return nil, fmt.Errorf("user context is required")
	}
	if strings.TrimSpace(req.RequestedPermission) == "" {
		return nil, fmt.Errorf("requested permission is required")
	}

	if !includeTrace {
		if cached, ok := e.getCachedDecision(req); ok {
			return cached, nil
		}
	}

	start := time.Now()
	snap := e.snapshot.Load()
	decision := &Decision{Timestamp: start}
	trace := func(format string, args ...any) {
		if includeTrace {
			decision.Trace = append(decision.Trace, fmt.Sprintf(format, args...))
		}
	}

	// 1. Rule lookup, synthetic default when absent
	rule := snap.Catalog.FindRule(req.RequestedPermission, req.RequestType)
	if rule == nil {
		rule = SyntheticDefaultRule(req.RequestedPermission)
		trace("rule: none matched, using synthetic default (priority=%s auto_grant=%v)", rule.PriorityLevel, rule.AutoGrantEnabled)
		if e.logger != nil {
			e.logger.Debug("no rule matched, using synthetic default", "permission", req.RequestedPermission)
		}
	} else {
		trace("rule: matched %q (priority=%s auto_grant=%v prereqs=%d)", rule.PermissionName, rule.PriorityLevel, rule.AutoGrantEnabled, len(rule.PreRequisites))
	}
	decision.RuleName = rule.PermissionName

	// 2. Prerequisites
	prereqs := EvaluatePrerequisites(rule.PreRequisites, req.User)
	decision.PreRequisitesStatus = prereqs
	trace("prerequisites: %d/%d met", countMet(prereqs), len(prereqs))

	// 3. Priority score
	decision.PriorityScore = Score(rule, req.User, prereqs)
	trace("score: %.2f", decision.PriorityScore)

	// 4. Row matching and mandatory validation
	rows := ExtractMatchingRows(req.RequestedPermission, req.User, snap.Rows)
	best := SelectBestRow(rows, req.RequestedPermission, req.User)
	var validation *ValidationResult
	if best != nil {
		decision.MatchedRow = best
		v := ValidateRow(best, req.User)
		validation = &v
		trace("row: selected row %d (role=%q application=%q) valid=%v", best.RowIndex, best.Role, best.Application, v.IsValid)
		for _, issue := range v.ValidationIssues {
			trace("row issue: %s", issue)
		}
	} else {
		trace("row: no configuration row matched")
	}

	// 5. Mandatory short-circuit ahead of any policy or reasoning-service call
	if validation != nil {
		if validation.ExceptionViolated {
			decision.Outcome = OutcomeReject
			decision.Confidence = 0.95
			decision.Reasoning = fmt.Sprintf("Exception scenario %q blocks this request for employee type %q.", best.ExceptionScenario, req.User.EmployeeType)
			trace("mandatory: exception scenario violated, rejecting")
			e.finishDecision(ctx, req, decision, includeTrace)
			return decision, nil
		}
		if !validation.TrainingMatch {
			decision.Outcome = OutcomeReject
			decision.Confidence = 0.95
			decision.Reasoning = fmt.Sprintf("Required training %q has not been completed.", best.TrainingRequired)
			trace("mandatory: required training unmatched, rejecting")
			e.finishDecision(ctx, req, decision, includeTrace)
			return decision, nil
		}
	}

	// 6. History for pattern analysis
	var similar []RequestSummary
	if e.requestStore != nil {
		similar, _ = e.requestStore.SimilarRequests(ctx, req.RequestedPermission)
	}

	// 7. Delegated or threshold decision
	verdict := e.policy.Decide(ctx, &PolicyInput{
		Rule:                rule,
		Row:                 best,
		Validation:          validation,
		User:                req.User,
		RequestedPermission: req.RequestedPermission,
		Description:         req.Description,
		PriorityScore:       decision.PriorityScore,
		PreRequisites:       prereqs,
		SimilarRequests:     similar,
	})
	decision.Outcome = verdict.Outcome
	decision.Confidence = verdict.Confidence
	decision.Reasoning = verdict.Reasoning
	decision.MissingInfo = verdict.MissingInfo
	trace("policy: %s outcome=%s confidence=%.2f", verdict.Source, verdict.Outcome, verdict.Confidence)

	// 8. Historical adjustment: grants get a confidence bump when at least 70%
	// of similar past requests were auto-granted
	if len(similar) > 0 {
		autoGranted := 0
		for _, s := range similar {
			if s.AutoGranted {
				autoGranted++
			}
		}
		if float64(autoGranted) >= float64(len(similar))*0.7 {
			if decision.Outcome == OutcomeGrant {
				decision.Confidence += 0.1
			}
			decision.Reasoning += fmt.Sprintf(" Similar requests historically auto-granted (%d/%d).", autoGranted, len(similar))
			trace("history: %d/%d similar requests auto-granted", autoGranted, len(similar))
		}
	}

	if decision.Confidence > 1.0 {
		decision.Confidence = 1.0
	}
	if decision.Confidence < 0 {
		decision.Confidence = 0
	}

	e.finishDecision(ctx, req, decision, includeTrace)
	return decision, nil
}

func (e *Engine) finishDecision(ctx context.Context, req *EvaluationRequest, decision *Decision, includeTrace bool) {
	if !includeTrace {
		e.setCachedDecision(req, decision)
	}
	e.auditDecision(req, decision)
}

func (e *Engine) auditDecision(req *EvaluationRequest, decision *Decision) {
	entry := AuditEntry{
		ID:            fmt.Sprintf("%d", time.Now().UnixNano()),
		Timestamp:     decision.Timestamp,
		UserID:        req.UserID,
		Permission:    req.RequestedPermission,
		RequestType:   req.RequestType,
		Outcome:       decision.Outcome,
		PriorityScore: decision.PriorityScore,
		Confidence:    decision.Confidence,
		Reasoning:     decision.Reasoning,
		RuleName:      decision.RuleName,
	}

	phlog.Info().
		Str("user", req.UserID).
		Str("permission", req.RequestedPermission).
		Str("outcome", string(decision.Outcome)).
		Float64("score", decision.PriorityScore).
		Float64("confidence", decision.Confidence).
		Str("rule", decision.RuleName).
		Msg("access decision")

	select {
	case e.auditCh <- entry:
	default:
		// drop rather than block the evaluation path
	}
}

// ProcessRequest evaluates a request, persists the record, executes the
// decision and returns the combined result. Failures of the ticketing service
// or stores degrade to placeholders; the decision is never lost.
func (e *Engine) ProcessRequest(ctx context.Context, req *EvaluationRequest) (*ProcessResult, error) {
	if req != nil && req.User != nil && e.userStore != nil {
		_ = e.userStore.SaveUser(ctx, req.User)
	}

	decision, err := e.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	record := &RequestRecord{
		ID:            fmt.Sprintf("%d", time.Now().UnixNano()),
		UserID:        req.UserID,
		RequestType:   req.RequestType,
		Permission:    req.RequestedPermission,
		Description:   req.Description,
		Status:        string(decision.Outcome),
		PriorityScore: decision.PriorityScore,
		Confidence:    decision.Confidence,
		Reasoning:     decision.Reasoning,
		CreatedAt:     time.Now(),
	}
	if e.requestStore != nil {
		if err := e.requestStore.SaveRequest(ctx, record); err != nil && e.logger != nil {
			e.logger.Error("save request failed", "request", record.ID, "error", err.Error())
		}
	}

	result := e.executeDecision(ctx, record, decision)

	record.Status = result.Status
	record.AutoGranted = result.AutoGranted
	record.TicketID = result.TicketID
	if e.requestStore != nil {
		_ = e.requestStore.UpdateRequest(ctx, record)
	}
	return result, nil
}

func (e *Engine) executeDecision(ctx context.Context, record *RequestRecord, decision *Decision) *ProcessResult {
	result := &ProcessResult{
		RequestID:  record.ID,
		UserID:     record.UserID,
		Permission: record.Permission,
		Decision:   decision,
	}

	switch decision.Outcome {
	case OutcomeGrant:
		result.Status = StatusGranted
		result.AutoGranted = true
		result.Message = "Access has been automatically granted"
		if e.userStore != nil {
			_ = e.userStore.GrantPermission(ctx, record.UserID, record.Permission, PermissionGrant{
				GrantedAt:   time.Now(),
				GrantedBy:   "uam-engine",
				AutoGranted: true,
			})
		}

	case OutcomeCreateTicket:
		ticketID := e.openTicket(ctx, record, decision)
		result.Status = StatusTicketCreated
		result.TicketID = ticketID
		result.Message = fmt.Sprintf("Ticket created for manual review: %s", ticketID)

	case OutcomeReject:
		result.Status = StatusRejected
		result.Message = "Request has been rejected"

	case OutcomeAskMoreInfo:
		result.Status = StatusPendingInfo
		result.Message = "More information is required before a decision can be made"

	default:
		result.Status = StatusPendingInfo
		result.Message = "Request requires manual review"
	}
	return result
}

func (e *Engine) openTicket(ctx context.Context, record *RequestRecord, decision *Decision) string {
	if e.tickets != nil {
		id, err := e.tickets.OpenTicket(ctx, &TicketRequest{
			RequestID:     record.ID,
			UserID:        record.UserID,
			RequestType:   record.RequestType,
			Permission:    record.Permission,
			Description:   record.Description,
			PriorityScore: decision.PriorityScore,
			Outcome:       decision.Outcome,
			Reasoning:     decision.Reasoning,
		})
		if err == nil && id != "" {
			return id
		}
		if e.logger != nil {
			e.logger.Error("ticketing failed, using placeholder id", "request", record.ID, "error", fmt.Sprint(err))
		}
	}
	return PlaceholderTicketID(record.ID)
}

// UserAccessSummary reports a user's permissions and request history
func (e *Engine) UserAccessSummary(ctx context.Context, userID string) (*AccessSummary, error) {
	if e.userStore == nil {
		return nil, fmt.Errorf("no user store configured")
	}
	user, err := e.userStore.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := &AccessSummary{
		UserID:             user.UserID,
		Username:           user.Username,
		Department:         user.Department,
		Role:               user.Role,
		CurrentPermissions: user.CurrentPermissions,
		TotalPermissions:   len(user.CurrentPermissions),
	}
	if e.requestStore != nil {
		recent, err := e.requestStore.ListRequests(ctx, userID, 20)
		if err == nil {
			summary.RecentRequests = recent
			summary.TotalRequests = len(recent)
		}
	}
	return summary, nil
}

// AccessSummary is the report returned by UserAccessSummary
type AccessSummary struct {
	UserID             string                     `json:"user_id"`
	Username           string                     `json:"username,omitempty"`
	Department         string                     `json:"department"`
	Role               string                     `json:"role"`
	CurrentPermissions map[string]PermissionGrant `json:"current_permissions"`
	RecentRequests     []*RequestRecord           `json:"recent_requests"`
	TotalPermissions   int                        `json:"total_permissions"`
	TotalRequests      int                        `json:"total_requests"`
}

func countMet(status map[string]PrereqStatus) int {
	met := 0
	for _, s := range status {
		if s.Met {
			met++
		}
	}
	return met
}
