package uam

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prerequisite phrases arrive as free text from a non-technical configuration
// source ("Valid Employee ID", "Manager Approval", "Database Training", ...).
// Each phrase is classified once into a tagged kind and then evaluated per
// kind, so the policy is auditable and testable per category. Classification
// never fails: unrecognized phrases fall through to a generic context scan.

// PrerequisiteKind is the semantic category of a prerequisite phrase
type PrerequisiteKind int

const (
	KindEmployeeID PrerequisiteKind = iota
	KindDepartment
	KindApproval
	KindSecurityClearance
	KindTraining
	KindRole
	KindGeneric
)

func (k PrerequisiteKind) String() string {
	switch k {
	case KindEmployeeID:
		return "employee_id"
	case KindDepartment:
		return "department"
	case KindApproval:
		return "approval"
	case KindSecurityClearance:
		return "security_clearance"
	case KindTraining:
		return "training"
	case KindRole:
		return "role"
	default:
		return "generic"
	}
}

// minimum clearance level considered sufficient for clearance prerequisites
const requiredClearanceLevel = 2

// ClassifyPrerequisite resolves a phrase to its kind. The first matching
// category wins, in fixed priority order.
func ClassifyPrerequisite(phrase string) PrerequisiteKind {
	p := strings.ToLower(phrase)
	switch {
	case strings.Contains(p, "employee id"):
		return KindEmployeeID
	case strings.Contains(p, "department"):
		return KindDepartment
	case strings.Contains(p, "approval"):
		return KindApproval
	case strings.Contains(p, "security") && strings.Contains(p, "clearance"):
		return KindSecurityClearance
	case strings.Contains(p, "training"):
		return KindTraining
	case strings.Contains(p, "role"):
		return KindRole
	default:
		return KindGeneric
	}
}

// EvaluatePrerequisites checks every phrase independently against the user
// context. Empty phrases are skipped; nothing here can fail the evaluation.
func EvaluatePrerequisites(preRequisites []string, user *UserContext) map[string]PrereqStatus {
	status := make(map[string]PrereqStatus, len(preRequisites))
	if user == nil {
		return status
	}
	// the serialized context view is derived once per evaluation and only
	// needed by generic phrases
	var contextBlob string
	for _, phrase := range preRequisites {
		if strings.TrimSpace(phrase) == "" {
			continue
		}
		kind := ClassifyPrerequisite(phrase)
		if kind == KindGeneric && contextBlob == "" {
			contextBlob = serializeContext(user)
		}
		status[phrase] = evaluatePrerequisite(kind, phrase, user, contextBlob)
	}
	return status
}

func evaluatePrerequisite(kind PrerequisiteKind, phrase string, user *UserContext, contextBlob string) PrereqStatus {
	switch kind {
	case KindEmployeeID:
		if user.UserID != "" {
			return PrereqStatus{Met: true, Details: "User ID present"}
		}
		return PrereqStatus{Met: false, Details: "User ID missing"}

	case KindDepartment:
		if user.Department != "" {
			return PrereqStatus{Met: true, Details: fmt.Sprintf("Department: %s", user.Department)}
		}
		return PrereqStatus{Met: false, Details: "Department not set"}

	case KindApproval:
		// approval is granted through a separate out-of-band process and can
		// never be satisfied from a context snapshot
		return PrereqStatus{Met: false, Details: "Requires manager approval"}

	case KindSecurityClearance:
		met := user.SecurityClearanceLevel >= requiredClearanceLevel
		return PrereqStatus{Met: met, Details: fmt.Sprintf("Security clearance level: %d", user.SecurityClearanceLevel)}

	case KindTraining:
		return evaluateTrainingPrereq(phrase, user)

	case KindRole:
		if user.Role != "" {
			return PrereqStatus{Met: true, Details: fmt.Sprintf("Role: %s", user.Role)}
		}
		return PrereqStatus{Met: false, Details: "Role not set"}

	default:
		if strings.Contains(contextBlob, strings.ToLower(phrase)) {
			return PrereqStatus{Met: true, Details: "Found in context"}
		}
		return PrereqStatus{Met: false, Details: "Not found in context"}
	}
}

// evaluateTrainingPrereq strips the word "training" from the phrase and checks
// whether any completed training mentions the remainder. A bare "training"
// requirement is satisfied by any completed training.
func evaluateTrainingPrereq(phrase string, user *UserContext) PrereqStatus {
	trainingType := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(phrase), "training", ""))
	if trainingType == "" {
		if len(user.CompletedTrainings) > 0 {
			return PrereqStatus{Met: true, Details: fmt.Sprintf("Trainings: %s", strings.Join(user.CompletedTrainings, ", "))}
		}
		return PrereqStatus{Met: false, Details: "Training not completed"}
	}
	for _, t := range user.CompletedTrainings {
		if strings.Contains(strings.ToLower(t), trainingType) {
			return PrereqStatus{Met: true, Details: fmt.Sprintf("Trainings: %s", strings.Join(user.CompletedTrainings, ", "))}
		}
	}
	return PrereqStatus{Met: false, Details: "Training not completed"}
}

// serializeContext renders the user context as a lower-cased blob for generic
// substring checks
func serializeContext(user *UserContext) string {
	b, err := json.Marshal(user)
	if err != nil {
		return strings.ToLower(fmt.Sprintf("%+v", user))
	}
	return strings.ToLower(string(b))
}
