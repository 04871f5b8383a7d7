package uam

import "time"

// Builders provide a fluent API for creating rules, rows and user contexts

// RuleBuilder builds a PermissionRule
type RuleBuilder struct {
	r *PermissionRule
}

func NewRuleBuilder() *RuleBuilder {
	return &RuleBuilder{r: &PermissionRule{PreRequisites: []string{}, PriorityLevel: PriorityMedium}}
}

func (b *RuleBuilder) Name(n string) *RuleBuilder { b.r.PermissionName = n; return b }
func (b *RuleBuilder) Type(t string) *RuleBuilder { b.r.PermissionType = t; return b }
func (b *RuleBuilder) PreRequisites(p ...string) *RuleBuilder {
	b.r.PreRequisites = append(b.r.PreRequisites, p...)
	return b
}
func (b *RuleBuilder) Priority(p PriorityLevel) *RuleBuilder { b.r.PriorityLevel = p; return b }
func (b *RuleBuilder) AutoGrant(enabled bool) *RuleBuilder   { b.r.AutoGrantEnabled = enabled; return b }
func (b *RuleBuilder) Build() *PermissionRule                { return b.r }

// RowBuilder builds a ConfigRow
type RowBuilder struct {
	row ConfigRow
}

func NewRowBuilder() *RowBuilder { return &RowBuilder{} }

func (b *RowBuilder) Role(r string) *RowBuilder        { b.row.Role = r; return b }
func (b *RowBuilder) Application(a string) *RowBuilder { b.row.Application = a; return b }
func (b *RowBuilder) AccessLevel(l string) *RowBuilder { b.row.AccessLevel = l; return b }
func (b *RowBuilder) Environment(e string) *RowBuilder { b.row.Environment = e; return b }
func (b *RowBuilder) TrainingRequired(t string) *RowBuilder {
	b.row.TrainingRequired = t
	return b
}
func (b *RowBuilder) ApprovalRequired(a string) *RowBuilder {
	b.row.ApprovalRequired = a
	return b
}
func (b *RowBuilder) ExceptionScenario(s string) *RowBuilder {
	b.row.ExceptionScenario = s
	return b
}
func (b *RowBuilder) Notes(n string) *RowBuilder              { b.row.Notes = n; return b }
func (b *RowBuilder) AuthorizingManager(m string) *RowBuilder { b.row.AuthorizingManager = m; return b }
func (b *RowBuilder) Index(i int) *RowBuilder                 { b.row.RowIndex = i; return b }
func (b *RowBuilder) Build() ConfigRow                        { return b.row }

// UserContextBuilder builds a UserContext
type UserContextBuilder struct {
	u *UserContext
}

func NewUserContextBuilder() *UserContextBuilder {
	return &UserContextBuilder{u: &UserContext{
		CompletedTrainings: []string{},
		CurrentPermissions: map[string]PermissionGrant{},
	}}
}

func (b *UserContextBuilder) ID(id string) *UserContextBuilder       { b.u.UserID = id; return b }
func (b *UserContextBuilder) Username(n string) *UserContextBuilder  { b.u.Username = n; return b }
func (b *UserContextBuilder) Email(e string) *UserContextBuilder     { b.u.Email = e; return b }
func (b *UserContextBuilder) Department(d string) *UserContextBuilder {
	b.u.Department = d
	return b
}
func (b *UserContextBuilder) Role(r string) *UserContextBuilder { b.u.Role = r; return b }
func (b *UserContextBuilder) EmployeeType(t string) *UserContextBuilder {
	b.u.EmployeeType = t
	return b
}
func (b *UserContextBuilder) ClearanceLevel(l int) *UserContextBuilder {
	b.u.SecurityClearanceLevel = l
	return b
}
func (b *UserContextBuilder) Trainings(t ...string) *UserContextBuilder {
	b.u.CompletedTrainings = append(b.u.CompletedTrainings, t...)
	return b
}
func (b *UserContextBuilder) Permission(name string, autoGranted bool) *UserContextBuilder {
	b.u.CurrentPermissions[name] = PermissionGrant{GrantedAt: time.Now(), AutoGranted: autoGranted}
	return b
}
func (b *UserContextBuilder) RecentRequest(s RequestSummary) *UserContextBuilder {
	b.u.RecentRequests = append(b.u.RecentRequests, s)
	return b
}
func (b *UserContextBuilder) Build() *UserContext { return b.u }
