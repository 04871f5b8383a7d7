package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/uam"
)

// SQLAuditStore persists the decision audit trail in SQL
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) (*SQLAuditStore, error) {
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) LogDecision(ctx context.Context, entry *uam.AuditEntry) error {
	metaB, _ := json.Marshal(entry.Metadata)
	q := `INSERT INTO audit_log(id, timestamp, request_id, user_id, permission, request_type, outcome, status, priority_score, confidence, reasoning, rule_name, ticket_id, metadata_json)
VALUES(:id, :timestamp, :request_id, :user_id, :permission, :request_type, :outcome, :status, :priority_score, :confidence, :reasoning, :rule_name, :ticket_id, :metadata_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             entry.ID,
		"timestamp":      entry.Timestamp,
		"request_id":     entry.RequestID,
		"user_id":        entry.UserID,
		"permission":     entry.Permission,
		"request_type":   entry.RequestType,
		"outcome":        string(entry.Outcome),
		"status":         entry.Status,
		"priority_score": entry.PriorityScore,
		"confidence":     entry.Confidence,
		"reasoning":      entry.Reasoning,
		"rule_name":      entry.RuleName,
		"ticket_id":      entry.TicketID,
		"metadata_json":  string(metaB),
	})
	return err
}

func (s *SQLAuditStore) GetDecisionLog(ctx context.Context, filter uam.AuditFilter) ([]*uam.AuditEntry, error) {
	q := `SELECT id, timestamp, request_id, user_id, permission, request_type, outcome, status, priority_score, confidence, reasoning, rule_name, ticket_id, metadata_json FROM audit_log WHERE 1=1`
	params := map[string]any{}
	if filter.UserID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = filter.UserID
	}
	if filter.Permission != "" {
		q += " AND permission = :permission"
		params["permission"] = filter.Permission
	}
	if filter.Outcome != "" {
		q += " AND outcome = :outcome"
		params["outcome"] = string(filter.Outcome)
	}
	if !filter.StartTime.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = filter.EndTime
	}
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*uam.AuditEntry, 0)
	for r.Next() {
		var entry uam.AuditEntry
		var outcome, metaJSON string
		var timestampRaw interface{}
		if err := r.Scan(&entry.ID, &timestampRaw, &entry.RequestID, &entry.UserID, &entry.Permission, &entry.RequestType,
			&outcome, &entry.Status, &entry.PriorityScore, &entry.Confidence, &entry.Reasoning, &entry.RuleName, &entry.TicketID, &metaJSON); err != nil {
			return nil, err
		}
		entry.Timestamp = scanTime(timestampRaw)
		entry.Outcome = uam.Outcome(outcome)
		_ = json.Unmarshal([]byte(metaJSON), &entry.Metadata)
		out = append(out, &entry)
	}
	return out, nil
}
