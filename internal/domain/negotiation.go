// Package domain – negotiation logic
//
// This file holds the pure, side-effect-free core of the negotiation state
// machine: per-item convergence and aggregate progress. Both functions are
// deterministic and never touch the database; the service layer calls them
// after every item mutation and persists the results.
package domain

import "math"

// EvaluateItem computes whether a single item is agreed. Agreement requires
// both choice values to be present and equal; the agreed value is then the
// common value. In every other case (either side missing, or both present
// but different) the item is not agreed and the agreed value is nil.
//
// Equality is exact string comparison of the submitted values. No trimming
// or case folding is applied: "Yes" and "yes" do not converge.
func EvaluateItem(item *Item) (agreed bool, agreedValue *string) {
	if item.CreatorChoiceValue == nil || item.PartnerChoiceValue == nil {
		return false, nil
	}
	if *item.CreatorChoiceValue != *item.PartnerChoiceValue {
		return false, nil
	}
	v := *item.CreatorChoiceValue
	return true, &v
}

// ApplyConvergence re-evaluates the item and writes the derived fields back
// onto it. It returns true when the evaluation changed IsAgreed in either
// direction (an overwrite of one side can also unlock a previously agreed
// item).
func ApplyConvergence(item *Item) (changed bool) {
	agreed, value := EvaluateItem(item)
	changed = agreed != item.IsAgreed
	item.IsAgreed = agreed
	item.AgreedChoiceValue = value
	return changed
}

// ComputeProgress returns the completion percentage for a set of items:
// agreed/total * 100, rounded to two decimals. An empty set yields 0.
func ComputeProgress(items []Item) float64 {
	if len(items) == 0 {
		return 0.0
	}
	agreed := 0
	for i := range items {
		if items[i].IsAgreed {
			agreed++
		}
	}
	return round2(float64(agreed) / float64(len(items)) * 100)
}

// AllItemsAnswered reports whether every item carries a value from both
// sides. The truce offer precondition depends on this, not on agreement.
func AllItemsAnswered(items []Item) bool {
	for i := range items {
		if items[i].CreatorChoiceValue == nil || items[i].PartnerChoiceValue == nil {
			return false
		}
	}
	return true
}

// round2 rounds to two decimal places, half away from zero.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
