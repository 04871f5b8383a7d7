package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/uam"
)

// SQLUserStore persists user context snapshots in SQL. Trainings and
// permission grants are stored as JSON columns; the relational fields are the
// ones queries filter on.
type SQLUserStore struct {
	db *squealx.DB
}

func NewSQLUserStore(db *squealx.DB) (*SQLUserStore, error) {
	return &SQLUserStore{db: db}, nil
}

func (s *SQLUserStore) SaveUser(ctx context.Context, user *uam.UserContext) error {
	trainingsB, _ := json.Marshal(user.CompletedTrainings)
	permsB, _ := json.Marshal(user.CurrentPermissions)
	q := `INSERT INTO users(user_id, username, email, department, role, employee_type, security_clearance_level, trainings_json, permissions_json, updated_at)
VALUES(:user_id, :username, :email, :department, :role, :employee_type, :security_clearance_level, :trainings_json, :permissions_json, :updated_at)
ON CONFLICT(user_id) DO UPDATE SET username = :username, email = :email, department = :department, role = :role, employee_type = :employee_type, security_clearance_level = :security_clearance_level, trainings_json = :trainings_json, permissions_json = :permissions_json, updated_at = :updated_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":                  user.UserID,
		"username":                 user.Username,
		"email":                    user.Email,
		"department":               user.Department,
		"role":                     user.Role,
		"employee_type":            user.EmployeeType,
		"security_clearance_level": user.SecurityClearanceLevel,
		"trainings_json":           string(trainingsB),
		"permissions_json":         string(permsB),
		"updated_at":               time.Now(),
	})
	return err
}

func (s *SQLUserStore) GetUser(ctx context.Context, userID string) (*uam.UserContext, error) {
	q := `SELECT user_id, username, email, department, role, employee_type, security_clearance_level, trainings_json, permissions_json FROM users WHERE user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	var user uam.UserContext
	var trainingsJSON, permsJSON string
	if err := r.Scan(&user.UserID, &user.Username, &user.Email, &user.Department, &user.Role,
		&user.EmployeeType, &user.SecurityClearanceLevel, &trainingsJSON, &permsJSON); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(trainingsJSON), &user.CompletedTrainings)
	_ = json.Unmarshal([]byte(permsJSON), &user.CurrentPermissions)
	return &user, nil
}

func (s *SQLUserStore) GrantPermission(ctx context.Context, userID, permission string, grant uam.PermissionGrant) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.CurrentPermissions == nil {
		user.CurrentPermissions = make(map[string]uam.PermissionGrant)
	}
	user.CurrentPermissions[permission] = grant
	return s.SaveUser(ctx, user)
}
