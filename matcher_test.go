package uam

import "testing"

func TestSignificantWords(t *testing.T) {
	words := SignificantWords("Database - Developer - (Admin Access)")
	want := []string{"database", "developer", "admin", "access"}
	if len(words) != len(want) {
		t.Fatalf("expected %d words, got %v", len(want), words)
	}
	for i, w := range want {
		if words[i] != w {
			t.Fatalf("word %d: expected %q got %q", i, w, words[i])
		}
	}
}

func TestExtractMatchingRowsScoring(t *testing.T) {
	rows := []ConfigRow{
		{Role: "Analyst", Application: "Tableau", RowIndex: 0},
		{Role: "Developer", Application: "Database", RowIndex: 1},
		{Role: "", Application: "Random", RowIndex: 2},
	}

	matched := ExtractMatchingRows("Database - Developer", nil, rows)
	if len(matched) != 2 {
		t.Fatalf("expected 2 rows (empty-role zero-score row dropped), got %d", len(matched))
	}
	if matched[0].RowIndex != 1 {
		t.Fatalf("expected developer/database row first, got row %d", matched[0].RowIndex)
	}
	if matched[0].MatchScore != 5 {
		t.Fatalf("expected match score 5 (+3 role, +2 application), got %d", matched[0].MatchScore)
	}
	if matched[1].MatchScore != 0 {
		t.Fatalf("expected zero score for unrelated row with role, got %d", matched[1].MatchScore)
	}
}

func TestSelectBestRowPrefersBothMatched(t *testing.T) {
	user := &UserContext{Role: "Developer"}
	rows := []ConfigRow{
		{Role: "Developer", Application: "Jenkins", RowIndex: 0, MatchScore: 9},
		{Role: "Developer", Application: "Database", RowIndex: 1, MatchScore: 0},
	}

	best := SelectBestRow(rows, "Database - Developer", user)
	if best == nil {
		t.Fatal("expected a selected row")
	}
	if best.RowIndex != 1 {
		t.Fatalf("expected both-matched row 1 over role-only row, got row %d", best.RowIndex)
	}
}

func TestSelectBestRowPrefersUserRole(t *testing.T) {
	user := &UserContext{Role: "Developer"}
	rows := []ConfigRow{
		{Role: "Analyst", Application: "Database", RowIndex: 0},
		{Role: "Developer", Application: "Database", RowIndex: 1},
	}

	best := SelectBestRow(rows, "Database - Analyst", user)
	if best == nil || best.RowIndex != 1 {
		t.Fatalf("expected user's declared role to win, got %+v", best)
	}
}

func TestSelectBestRowFallsBackToHighestMatch(t *testing.T) {
	user := &UserContext{Role: "Designer"}
	rows := []ConfigRow{
		{Role: "Developer", Application: "Database", RowIndex: 3, MatchScore: 5},
		{Role: "Analyst", Application: "Tableau", RowIndex: 7, MatchScore: 0},
	}

	best := SelectBestRow(rows, "Payroll", user)
	if best == nil || best.RowIndex != 3 {
		t.Fatalf("expected fallback to first (highest-scored) row, got %+v", best)
	}
}

func TestSelectBestRowEmpty(t *testing.T) {
	if best := SelectBestRow(nil, "anything", &UserContext{}); best != nil {
		t.Fatalf("expected nil for empty rows, got %+v", best)
	}
}

func TestParseRequestedPermission(t *testing.T) {
	app, role := parseRequestedPermission("Salesforce - Admin - (Full Access)")
	if app != "Salesforce" || role != "Admin" {
		t.Fatalf("expected Salesforce/Admin, got %q/%q", app, role)
	}

	app, role = parseRequestedPermission("Jenkins")
	if app != "Jenkins" || role != "" {
		t.Fatalf("expected Jenkins with empty role, got %q/%q", app, role)
	}
}
