package stores

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/uam"
)

// SQLRequestStore persists access request records in SQL
type SQLRequestStore struct {
	db *squealx.DB
}

func NewSQLRequestStore(db *squealx.DB) (*SQLRequestStore, error) {
	return &SQLRequestStore{db: db}, nil
}

func (s *SQLRequestStore) SaveRequest(ctx context.Context, r *uam.RequestRecord) error {
	q := `INSERT INTO access_requests(id, user_id, request_type, permission, description, status, priority_score, confidence, auto_granted, ticket_id, reasoning, created_at, updated_at)
VALUES(:id, :user_id, :request_type, :permission, :description, :status, :priority_score, :confidence, :auto_granted, :ticket_id, :reasoning, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             r.ID,
		"user_id":        r.UserID,
		"request_type":   r.RequestType,
		"permission":     r.Permission,
		"description":    r.Description,
		"status":         r.Status,
		"priority_score": r.PriorityScore,
		"confidence":     r.Confidence,
		"auto_granted":   boolToInt(r.AutoGranted),
		"ticket_id":      r.TicketID,
		"reasoning":      r.Reasoning,
		"created_at":     r.CreatedAt,
		"updated_at":     r.UpdatedAt,
	})
	return err
}

func (s *SQLRequestStore) UpdateRequest(ctx context.Context, r *uam.RequestRecord) error {
	q := `UPDATE access_requests SET status = :status, priority_score = :priority_score, confidence = :confidence, auto_granted = :auto_granted, ticket_id = :ticket_id, reasoning = :reasoning, updated_at = :updated_at WHERE id = :id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             r.ID,
		"status":         r.Status,
		"priority_score": r.PriorityScore,
		"confidence":     r.Confidence,
		"auto_granted":   boolToInt(r.AutoGranted),
		"ticket_id":      r.TicketID,
		"reasoning":      r.Reasoning,
		"updated_at":     time.Now(),
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("request not found: %s", r.ID)
	}
	return nil
}

const requestColumns = `id, user_id, request_type, permission, description, status, priority_score, confidence, auto_granted, ticket_id, reasoning, created_at, updated_at`

func (s *SQLRequestStore) ListRequests(ctx context.Context, userID string, limit int) ([]*uam.RequestRecord, error) {
	q := `SELECT ` + requestColumns + ` FROM access_requests WHERE 1=1`
	params := map[string]any{}
	if userID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = userID
	}
	q += " ORDER BY created_at DESC"
	if limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*uam.RequestRecord, 0)
	for r.Next() {
		rec, err := scanRequest(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SimilarRequests finds past requests whose permission contains, or is
// contained by, the given permission (case-insensitive), oldest first
func (s *SQLRequestStore) SimilarRequests(ctx context.Context, permission string) ([]uam.RequestSummary, error) {
	perm := strings.ToLower(permission)
	q := `SELECT id, permission, status, auto_granted, created_at FROM access_requests
WHERE LOWER(permission) LIKE :pattern OR :perm LIKE '%' || LOWER(permission) || '%'
ORDER BY created_at ASC LIMIT 200`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{
		"pattern": "%" + perm + "%",
		"perm":    perm,
	})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]uam.RequestSummary, 0)
	for r.Next() {
		var id, permission, status string
		var autoGranted int
		var createdRaw interface{}
		if err := r.Scan(&id, &permission, &status, &autoGranted, &createdRaw); err != nil {
			return nil, err
		}
		out = append(out, uam.RequestSummary{
			ID:          id,
			Permission:  permission,
			Status:      status,
			AutoGranted: autoGranted != 0,
			CreatedAt:   scanTime(createdRaw),
		})
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(r rowScanner) (*uam.RequestRecord, error) {
	var rec uam.RequestRecord
	var autoGranted int
	var createdRaw, updatedRaw interface{}
	if err := r.Scan(&rec.ID, &rec.UserID, &rec.RequestType, &rec.Permission, &rec.Description, &rec.Status,
		&rec.PriorityScore, &rec.Confidence, &autoGranted, &rec.TicketID, &rec.Reasoning, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	rec.AutoGranted = autoGranted != 0
	rec.CreatedAt = scanTime(createdRaw)
	rec.UpdatedAt = scanTime(updatedRaw)
	return &rec, nil
}
