package uam

import (
	"fmt"
	"strings"
)

// Row validation enforces the mandatory conditions of the selected
// configuration row: training completion and exception carve-outs can force
// rejection regardless of score or any downstream reasoning; role alignment is
// informational only. Blank fields skip their rule; nothing here raises.

// generic terms that carry no signal when comparing training names
var genericTrainingWords = map[string]bool{
	"training":      true,
	"course":        true,
	"certification": true,
}

const trainingWordLen = 4

// trainingWords returns the lower-cased significant words of a training name:
// longer than four characters and not a generic term.
func trainingWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, "()[]{}.,;:-/")
		if len(w) > trainingWordLen && !genericTrainingWords[w] {
			out[w] = true
		}
	}
	return out
}

// TrainingSatisfies reports whether a completed training covers a required
// one: exact case-insensitive equality, substring containment either way, a
// shared overlap of at least two significant words, or the requirement's
// significant words all appearing in the completed training.
func TrainingSatisfies(completed, required string) bool {
	c := strings.ToLower(strings.TrimSpace(completed))
	r := strings.ToLower(strings.TrimSpace(required))
	if c == "" || r == "" {
		return false
	}
	if c == r {
		return true
	}
	if strings.Contains(c, r) || strings.Contains(r, c) {
		return true
	}
	cw := trainingWords(completed)
	rw := trainingWords(required)
	if len(rw) == 0 {
		return false
	}
	overlap := 0
	subset := true
	for w := range rw {
		if cw[w] {
			overlap++
		} else {
			subset = false
		}
	}
	return overlap >= 2 || subset
}

// ValidateRow checks the selected row against the user context
func ValidateRow(row *ConfigRow, user *UserContext) ValidationResult {
	result := ValidationResult{
		IsValid:       true,
		TrainingMatch: true,
	}
	if row == nil || user == nil {
		return result
	}

	// mandatory: training requirement
	required := strings.TrimSpace(row.TrainingRequired)
	if required != "" {
		matched := false
		for _, t := range user.CompletedTrainings {
			if TrainingSatisfies(t, required) {
				matched = true
				break
			}
		}
		if !matched {
			result.IsValid = false
			result.TrainingMatch = false
			if len(user.CompletedTrainings) == 0 {
				result.ValidationIssues = append(result.ValidationIssues,
					fmt.Sprintf("required training %q not completed: user has no completed trainings", required))
			} else {
				result.ValidationIssues = append(result.ValidationIssues,
					fmt.Sprintf("required training %q not completed: no match among [%s]", required, strings.Join(user.CompletedTrainings, ", ")))
			}
		}
	}

	// mandatory: exception scenario carve-outs
	if violation := exceptionViolation(row.ExceptionScenario, user); violation != "" {
		result.IsValid = false
		result.ExceptionViolated = true
		result.ValidationIssues = append(result.ValidationIssues, violation)
	}

	// soft: role alignment is reported but never invalidates on its own
	rowRole := strings.ToLower(strings.TrimSpace(row.Role))
	userRole := strings.ToLower(strings.TrimSpace(user.Role))
	if rowRole != "" && userRole != "" &&
		!strings.Contains(rowRole, userRole) && !strings.Contains(userRole, rowRole) {
		result.ValidationIssues = append(result.ValidationIssues,
			fmt.Sprintf("role mismatch: row expects %q, user has %q", row.Role, user.Role))
	}

	return result
}

// exceptionViolation evaluates the keyword triggers of an exception scenario
// against the user's employee type and department. Returns a description of
// the violation, or "" when the scenario does not apply.
func exceptionViolation(scenario string, user *UserContext) string {
	s := strings.ToLower(strings.TrimSpace(scenario))
	if s == "" {
		return ""
	}
	empType := strings.ToLower(strings.TrimSpace(user.EmployeeType))

	if strings.Contains(s, "contractor") && (empType == "contractor" || empType == "external") {
		return fmt.Sprintf("exception scenario blocks employee type %q: %s", user.EmployeeType, scenario)
	}
	if strings.Contains(s, "intern") && empType == "intern" {
		return fmt.Sprintf("exception scenario blocks employee type %q: %s", user.EmployeeType, scenario)
	}
	if strings.Contains(s, "external") && (empType == "external" || empType == "contractor") {
		return fmt.Sprintf("exception scenario blocks employee type %q: %s", user.EmployeeType, scenario)
	}

	// department carve-outs of the form "non <department>"
	if idx := strings.Index(s, "non "); idx >= 0 {
		fields := strings.Fields(s[idx+len("non "):])
		if len(fields) > 0 {
			carved := strings.Trim(fields[0], ".,;:")
			switch carved {
			case "contractor", "contractors", "intern", "interns", "external", "externals", "":
				// employee-type triggers were handled above
				return ""
			}
			dept := strings.ToLower(strings.TrimSpace(user.Department))
			if dept == "" || (!strings.Contains(dept, carved) && !strings.Contains(carved, dept)) {
				return fmt.Sprintf("exception scenario restricts access to %q department: %s", carved, scenario)
			}
		}
	}
	return ""
}
