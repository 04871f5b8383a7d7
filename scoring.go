package uam

import "math"

// Score bonuses on the 0-100 priority scale
const (
	baseScore             = 50.0
	prereqWeight          = 30.0
	highPriorityBonus     = 20.0
	mediumPriorityBonus   = 10.0
	existingUserBonus     = 10.0
	autoGrantCapableBonus = 10.0
)

// MetRatio is the fraction of prerequisites that are satisfied. Zero
// prerequisites yields 0, never a division error.
func MetRatio(status map[string]PrereqStatus) float64 {
	if len(status) == 0 {
		return 0
	}
	return float64(countMet(status)) / float64(len(status))
}

// Score computes the 0-100 priority score for a request:
// 50 base, up to +30 for prerequisite satisfaction, +20/+10/0 for rule
// priority (medium when unset), +10 when the user already holds any
// permission, +10 when the rule is auto-grant capable. Clamped to [0,100] and
// rounded to two decimals so stored scores compare exactly.
func Score(rule *PermissionRule, user *UserContext, prereqStatus map[string]PrereqStatus) float64 {
	score := baseScore

	score += MetRatio(prereqStatus) * prereqWeight

	switch rule.PriorityLevel {
	case PriorityHigh:
		score += highPriorityBonus
	case PriorityLow:
		// no bonus
	default:
		score += mediumPriorityBonus
	}

	if user != nil && len(user.CurrentPermissions) > 0 {
		score += existingUserBonus
	}

	if rule.AutoGrantEnabled {
		score += autoGrantCapableBonus
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return math.Round(score*100) / 100
}
