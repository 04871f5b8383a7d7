package uam

import (
	"context"
	"fmt"
	"testing"
)

func TestThresholdPolicyAutoGrant(t *testing.T) {
	p := NewThresholdPolicy(DefaultAutoGrantThreshold, DefaultRequireApprovalThreshold)
	verdict := p.Decide(context.Background(), &PolicyInput{
		Rule:          &PermissionRule{AutoGrantEnabled: true},
		PriorityScore: 90,
		PreRequisites: prereqsWithMet(5, 5),
	})
	if verdict.Outcome != OutcomeGrant {
		t.Fatalf("expected grant, got %s", verdict.Outcome)
	}
	if verdict.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %v", verdict.Confidence)
	}
	if verdict.Source != "threshold" {
		t.Fatalf("expected threshold source, got %s", verdict.Source)
	}
}

func TestThresholdPolicyHighScoreMissingPrereqs(t *testing.T) {
	p := NewThresholdPolicy(DefaultAutoGrantThreshold, DefaultRequireApprovalThreshold)
	verdict := p.Decide(context.Background(), &PolicyInput{
		Rule:          &PermissionRule{AutoGrantEnabled: true},
		PriorityScore: 85,
		PreRequisites: prereqsWithMet(2, 5),
	})
	if verdict.Outcome != OutcomeCreateTicket || verdict.Confidence != 0.7 {
		t.Fatalf("expected create_ticket/0.70, got %s/%v", verdict.Outcome, verdict.Confidence)
	}
}

func TestThresholdPolicyNoAutoGrantRule(t *testing.T) {
	p := NewThresholdPolicy(DefaultAutoGrantThreshold, DefaultRequireApprovalThreshold)
	verdict := p.Decide(context.Background(), &PolicyInput{
		Rule:          &PermissionRule{AutoGrantEnabled: false},
		PriorityScore: 95,
		PreRequisites: prereqsWithMet(5, 5),
	})
	if verdict.Outcome != OutcomeCreateTicket || verdict.Confidence != 0.75 {
		t.Fatalf("high score without auto-grant must route to ticket/0.75, got %s/%v", verdict.Outcome, verdict.Confidence)
	}
}

func TestThresholdPolicyModerateAndLow(t *testing.T) {
	p := NewThresholdPolicy(DefaultAutoGrantThreshold, DefaultRequireApprovalThreshold)

	moderate := p.Decide(context.Background(), &PolicyInput{
		Rule:          &PermissionRule{},
		PriorityScore: 60,
	})
	if moderate.Outcome != OutcomeCreateTicket || moderate.Confidence != 0.75 {
		t.Fatalf("expected create_ticket/0.75 for moderate score, got %s/%v", moderate.Outcome, moderate.Confidence)
	}

	low := p.Decide(context.Background(), &PolicyInput{
		Rule:          &PermissionRule{},
		PriorityScore: 30,
	})
	if low.Outcome != OutcomeCreateTicket || low.Confidence != 0.8 {
		t.Fatalf("expected create_ticket/0.80 for low score, got %s/%v", low.Outcome, low.Confidence)
	}
}

type stubReasoner struct {
	resp *ReasoningResponse
	err  error
}

func (s *stubReasoner) Decide(_ context.Context, _ *ReasoningRequest) (*ReasoningResponse, error) {
	return s.resp, s.err
}

func TestDelegatedPolicyUsesReasoner(t *testing.T) {
	p := NewDelegatedPolicy(&stubReasoner{resp: &ReasoningResponse{
		Decision:    OutcomeAskMoreInfo,
		Reasoning:   "need the business justification",
		Confidence:  1.4,
		MissingInfo: []string{"business justification"},
	}}, NewThresholdPolicy(80, 50))

	verdict := p.Decide(context.Background(), &PolicyInput{Rule: &PermissionRule{}, PriorityScore: 60})
	if verdict.Outcome != OutcomeAskMoreInfo {
		t.Fatalf("expected ask_for_more_info from reasoner, got %s", verdict.Outcome)
	}
	if verdict.Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1.0, got %v", verdict.Confidence)
	}
	if verdict.Source != "reasoner" {
		t.Fatalf("expected reasoner source, got %s", verdict.Source)
	}
	if len(verdict.MissingInfo) != 1 {
		t.Fatalf("missing info not propagated: %v", verdict.MissingInfo)
	}
}

func TestDelegatedPolicyFallsBackOnError(t *testing.T) {
	p := NewDelegatedPolicy(&stubReasoner{err: fmt.Errorf("timeout")}, NewThresholdPolicy(80, 50))

	verdict := p.Decide(context.Background(), &PolicyInput{Rule: &PermissionRule{}, PriorityScore: 60})
	if verdict.Source != "threshold" {
		t.Fatalf("expected fallback to threshold policy, got %s", verdict.Source)
	}
	if verdict.Outcome != OutcomeCreateTicket {
		t.Fatalf("expected threshold outcome, got %s", verdict.Outcome)
	}
}

func TestDelegatedPolicyFallsBackOnInvalidOutcome(t *testing.T) {
	p := NewDelegatedPolicy(&stubReasoner{resp: &ReasoningResponse{Decision: "approve"}}, NewThresholdPolicy(80, 50))

	verdict := p.Decide(context.Background(), &PolicyInput{Rule: &PermissionRule{}, PriorityScore: 60})
	if verdict.Source != "threshold" {
		t.Fatalf("unknown reasoner outcome must fall back, got source %s", verdict.Source)
	}
}

func TestDelegatedPolicyNilReasoner(t *testing.T) {
	p := NewDelegatedPolicy(nil, NewThresholdPolicy(80, 50))
	verdict := p.Decide(context.Background(), &PolicyInput{Rule: &PermissionRule{}, PriorityScore: 95})
	if verdict.Source != "threshold" {
		t.Fatalf("nil reasoner must fall back, got source %s", verdict.Source)
	}
}
