package uam

import "testing"

func TestTrainingSatisfies(t *testing.T) {
	cases := []struct {
		completed string
		required  string
		want      bool
	}{
		{"Database Security Training", "database security training", true},
		{"Database Security", "Database Security Training", true},
		{"Advanced Database Security Course", "Database Security Training", true},
		{"Database Basics", "Database Security Training", false},
		{"Phishing Awareness", "Database Security Training", false},
		{"", "Database Security Training", false},
		{"Database Security Training", "", false},
	}
	for _, c := range cases {
		if got := TrainingSatisfies(c.completed, c.required); got != c.want {
			t.Fatalf("TrainingSatisfies(%q, %q) = %v, want %v", c.completed, c.required, got, c.want)
		}
	}
}

func TestValidateRowTrainingMismatch(t *testing.T) {
	row := &ConfigRow{Role: "Developer", TrainingRequired: "Database Security Training"}
	user := &UserContext{Role: "Developer", CompletedTrainings: []string{"Database Basics"}}

	result := ValidateRow(row, user)
	if result.IsValid {
		t.Fatal("expected invalid result for unmatched mandatory training")
	}
	if result.TrainingMatch {
		t.Fatal("expected training_match=false")
	}
	if len(result.ValidationIssues) == 0 {
		t.Fatal("expected a descriptive validation issue")
	}
}

func TestValidateRowNoTrainingsAtAll(t *testing.T) {
	row := &ConfigRow{Role: "Developer", TrainingRequired: "Database Security Training"}
	user := &UserContext{Role: "Developer"}

	result := ValidateRow(row, user)
	if result.IsValid || result.TrainingMatch {
		t.Fatal("a training requirement with zero completed trainings is an automatic non-match")
	}
}

func TestValidateRowExceptionBlocksContractor(t *testing.T) {
	row := &ConfigRow{Role: "Developer", ExceptionScenario: "Role not permitted for contractors"}

	for _, empType := range []string{"Contractor", "External"} {
		user := &UserContext{Role: "Developer", EmployeeType: empType}
		result := ValidateRow(row, user)
		if !result.ExceptionViolated || result.IsValid {
			t.Fatalf("expected exception violation for employee type %s", empType)
		}
	}

	fullTime := &UserContext{Role: "Developer", EmployeeType: "full-time"}
	result := ValidateRow(row, fullTime)
	if result.ExceptionViolated {
		t.Fatal("full-time employee must not trigger the contractor exception")
	}
}

func TestValidateRowExceptionBlocksIntern(t *testing.T) {
	row := &ConfigRow{Role: "Analyst", ExceptionScenario: "Not available to interns"}
	user := &UserContext{Role: "Analyst", EmployeeType: "Intern"}

	result := ValidateRow(row, user)
	if !result.ExceptionViolated {
		t.Fatal("expected exception violation for intern")
	}
}

func TestValidateRowDepartmentCarveOut(t *testing.T) {
	row := &ConfigRow{Role: "Analyst", ExceptionScenario: "Restricted for non Finance staff"}

	outsider := &UserContext{Role: "Analyst", Department: "Engineering", EmployeeType: "full-time"}
	result := ValidateRow(row, outsider)
	if !result.ExceptionViolated {
		t.Fatal("expected violation for user outside the carved-out department")
	}

	insider := &UserContext{Role: "Analyst", Department: "Finance", EmployeeType: "full-time"}
	result = ValidateRow(row, insider)
	if result.ExceptionViolated {
		t.Fatal("finance user must pass the non-finance carve-out")
	}
}

func TestValidateRowRoleMismatchIsSoft(t *testing.T) {
	row := &ConfigRow{Role: "Administrator"}
	user := &UserContext{Role: "Developer"}

	result := ValidateRow(row, user)
	if !result.IsValid {
		t.Fatal("role mismatch alone must not invalidate the row")
	}
	if len(result.ValidationIssues) != 1 {
		t.Fatalf("expected exactly one informational issue, got %v", result.ValidationIssues)
	}
}

func TestValidateRowBlankFieldsSkip(t *testing.T) {
	result := ValidateRow(&ConfigRow{}, &UserContext{Role: "Developer"})
	if !result.IsValid || !result.TrainingMatch || result.ExceptionViolated {
		t.Fatalf("blank row fields must skip their rules: %+v", result)
	}
}
