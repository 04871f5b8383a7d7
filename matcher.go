package uam

import (
	"sort"
	"strings"
)

// Row matching heuristics for the tabular configuration source. Requests carry
// free text assembled by the intake form ("<application> - <role> - (<access level>)"),
// so matching is word-overlap based and deliberately forgiving.

const significantWordLen = 3

// SignificantWords returns the lower-cased words of s longer than three
// characters. Short connectives carry no matching signal.
func SignificantWords(s string) []string {
	words := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, "()[]{}.,;:-/")
		if len(w) > significantWordLen {
			out = append(out, w)
		}
	}
	return out
}

// ExtractMatchingRows scans the configuration rows for candidates matching the
// requested permission: +3 when a significant word overlaps the row's role,
// +2 when one overlaps the application. Rows come back sorted by descending
// match score; zero-score rows with a non-empty role are kept so validation
// still has a plausible candidate to run against.
func ExtractMatchingRows(requestedPermission string, user *UserContext, rows []ConfigRow) []ConfigRow {
	words := SignificantWords(requestedPermission)
	out := make([]ConfigRow, 0, len(rows))
	for _, row := range rows {
		score := 0
		role := strings.ToLower(row.Role)
		app := strings.ToLower(row.Application)
		for _, w := range words {
			if role != "" && (strings.Contains(role, w) || strings.Contains(w, role)) {
				score += 3
				break
			}
		}
		for _, w := range words {
			if app != "" && (strings.Contains(app, w) || strings.Contains(w, app)) {
				score += 2
				break
			}
		}
		if score == 0 && strings.TrimSpace(row.Role) == "" {
			continue
		}
		row.MatchScore = score
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchScore > out[j].MatchScore })
	return out
}

// parseRequestedPermission splits the positional "<application> - <role> - ..."
// convention. Only the first two hyphen-delimited segments are consumed; the
// rest (access level, environment) is ignored here. This convention is fragile
// but preserved for compatibility with the intake forms.
func parseRequestedPermission(requestedPermission string) (application, role string) {
	parts := strings.Split(requestedPermission, "-")
	if len(parts) > 0 {
		application = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 {
		role = strings.TrimSpace(parts[1])
	}
	return application, role
}

// SelectBestRow picks the single row to validate. The user's own declared role
// is preferred over the role segment parsed from the permission string. Exact
// role/application equality scores +10, partial containment +5, on top of the
// extraction match score. Rows where both role and application matched beat
// rows matching role alone; ties go to the first row encountered. When no row
// achieves even a role match, the highest-scored extraction row is returned.
// Returns nil only when rows is empty.
func SelectBestRow(rows []ConfigRow, requestedPermission string, user *UserContext) *ConfigRow {
	if len(rows) == 0 {
		return nil
	}

	application, parsedRole := parseRequestedPermission(requestedPermission)
	targetRole := parsedRole
	if user != nil && strings.TrimSpace(user.Role) != "" {
		targetRole = user.Role
	}
	targetRoleLower := strings.ToLower(strings.TrimSpace(targetRole))
	targetAppLower := strings.ToLower(strings.TrimSpace(application))

	bestIdx := -1
	bestScore := 0
	bestBoth := false

	for i := range rows {
		row := &rows[i]
		score := row.MatchScore
		roleMatched := false
		appMatched := false

		rowRole := strings.ToLower(strings.TrimSpace(row.Role))
		if targetRoleLower != "" && rowRole != "" {
			if rowRole == targetRoleLower {
				score += 10
				roleMatched = true
			} else if strings.Contains(rowRole, targetRoleLower) || strings.Contains(targetRoleLower, rowRole) {
				score += 5
				roleMatched = true
			}
		}

		rowApp := strings.ToLower(strings.TrimSpace(row.Application))
		if targetAppLower != "" && rowApp != "" {
			if rowApp == targetAppLower {
				score += 10
				appMatched = true
			} else if strings.Contains(rowApp, targetAppLower) || strings.Contains(targetAppLower, rowApp) {
				score += 5
				appMatched = true
			}
		}

		if !roleMatched {
			continue
		}
		both := roleMatched && appMatched
		// both-matched candidates always outrank role-only candidates
		if bestIdx == -1 || (both && !bestBoth) || (both == bestBoth && score > bestScore) {
			bestIdx = i
			bestScore = score
			bestBoth = both
		}
	}

	if bestIdx >= 0 {
		cop := rows[bestIdx]
		return &cop
	}
	// no role match anywhere: fall back to the strongest extraction candidate
	cop := rows[0]
	return &cop
}
