package uam

import (
	"context"
	"fmt"
)

// Decision policies turn an evaluated request into a terminal verdict. The
// engine enforces the mandatory-validation reject before any policy runs, so
// policies only ever see requests that survived training and exception checks.
//
// Two implementations exist: ThresholdPolicy applies the deterministic score
// thresholds; DelegatedPolicy hands the call to a reasoning service and falls
// back to a wrapped ThresholdPolicy on any failure. Selecting between them is
// a construction-time concern, which keeps "is the reasoner enabled" checks
// out of the decision path.

// PolicyInput is the full context a policy decides on
type PolicyInput struct {
	Rule                *PermissionRule
	Row                 *ConfigRow
	Validation          *ValidationResult
	User                *UserContext
	RequestedPermission string
	Description         string
	PriorityScore       float64
	PreRequisites       map[string]PrereqStatus
	SimilarRequests     []RequestSummary
}

// PolicyVerdict is what a policy returns. Policies never fail: a verdict is
// always produced.
type PolicyVerdict struct {
	Outcome     Outcome
	Confidence  float64
	Reasoning   string
	MissingInfo []string
	Source      string // "threshold" or "reasoner"
}

// DecisionPolicy is the pluggable decision strategy
type DecisionPolicy interface {
	Decide(ctx context.Context, in *PolicyInput) *PolicyVerdict
}

// ----------------------------------------------------------------------------
// Threshold policy
// ----------------------------------------------------------------------------

// ThresholdPolicy applies the deterministic score thresholds
type ThresholdPolicy struct {
	autoGrantThreshold       float64
	requireApprovalThreshold float64
}

func NewThresholdPolicy(autoGrant, requireApproval float64) *ThresholdPolicy {
	return &ThresholdPolicy{
		autoGrantThreshold:       autoGrant,
		requireApprovalThreshold: requireApproval,
	}
}

func (p *ThresholdPolicy) Decide(_ context.Context, in *PolicyInput) *PolicyVerdict {
	met := countMet(in.PreRequisites)
	total := len(in.PreRequisites)

	if in.PriorityScore >= p.autoGrantThreshold && in.Rule.AutoGrantEnabled {
		if float64(met) >= float64(total)*0.8 {
			return &PolicyVerdict{
				Outcome:    OutcomeGrant,
				Confidence: 0.85,
				Reasoning: fmt.Sprintf("High priority score (%.2f) and most pre-requisites met (%d/%d). Rule allows auto-grant.",
					in.PriorityScore, met, total),
				Source: "threshold",
			}
		}
		return &PolicyVerdict{
			Outcome:    OutcomeCreateTicket,
			Confidence: 0.7,
			Reasoning: fmt.Sprintf("High priority but missing critical pre-requisites (%d/%d met).",
				met, total),
			Source: "threshold",
		}
	}

	if in.PriorityScore >= p.requireApprovalThreshold {
		reasoning := fmt.Sprintf("Moderate priority (%.2f) requires review.", in.PriorityScore)
		if met < total {
			reasoning += fmt.Sprintf(" Some pre-requisites not met (%d/%d).", met, total)
		}
		return &PolicyVerdict{
			Outcome:    OutcomeCreateTicket,
			Confidence: 0.75,
			Reasoning:  reasoning,
			Source:     "threshold",
		}
	}

	return &PolicyVerdict{
		Outcome:    OutcomeCreateTicket,
		Confidence: 0.8,
		Reasoning:  fmt.Sprintf("Low priority score (%.2f) requires manual review.", in.PriorityScore),
		Source:     "threshold",
	}
}

// ----------------------------------------------------------------------------
// Delegated policy
// ----------------------------------------------------------------------------

// DelegatedPolicy hands the decision to a reasoning service, passing the full
// row/validation context. Timeout, transport errors or malformed output all
// degrade to the wrapped fallback policy; the reasoner can never break an
// evaluation.
type DelegatedPolicy struct {
	reasoner ReasoningService
	fallback DecisionPolicy
	logger   Logger
}

func NewDelegatedPolicy(reasoner ReasoningService, fallback DecisionPolicy) *DelegatedPolicy {
	return &DelegatedPolicy{reasoner: reasoner, fallback: fallback}
}

// SetLogger installs an optional logger for fallback diagnostics
func (p *DelegatedPolicy) SetLogger(l Logger) { p.logger = l }

func (p *DelegatedPolicy) Decide(ctx context.Context, in *PolicyInput) *PolicyVerdict {
	if p.reasoner == nil {
		return p.fallback.Decide(ctx, in)
	}
	resp, err := p.reasoner.Decide(ctx, buildReasoningRequest(in))
	if err != nil || resp == nil || !resp.Decision.valid() {
		if p.logger != nil {
			p.logger.Error("reasoning service unavailable, using threshold fallback", "error", fmt.Sprint(err))
		}
		return p.fallback.Decide(ctx, in)
	}
	conf := resp.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return &PolicyVerdict{
		Outcome:     resp.Decision,
		Confidence:  conf,
		Reasoning:   resp.Reasoning,
		MissingInfo: resp.MissingInfo,
		Source:      "reasoner",
	}
}

func (o Outcome) valid() bool {
	switch o {
	case OutcomeGrant, OutcomeCreateTicket, OutcomeReject, OutcomeAskMoreInfo:
		return true
	}
	return false
}

func buildReasoningRequest(in *PolicyInput) *ReasoningRequest {
	req := &ReasoningRequest{
		RequestedPermission: in.RequestedPermission,
		Description:         in.Description,
		PriorityScore:       in.PriorityScore,
		PreRequisites:       in.PreRequisites,
		User:                in.User,
		Rule:                in.Rule,
		Row:                 in.Row,
	}
	if in.Validation != nil {
		req.ValidationIssues = in.Validation.ValidationIssues
	}
	return req
}
