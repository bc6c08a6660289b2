package domain

import "testing"

func strp(s string) *string { return &s }

func TestEvaluateItem(t *testing.T) {
	cases := []struct {
		name      string
		creator   *string
		partner   *string
		wantAgree bool
		wantValue *string
	}{
		{"both nil", nil, nil, false, nil},
		{"creator only", strp("x"), nil, false, nil},
		{"partner only", nil, strp("x"), false, nil},
		{"equal", strp("x"), strp("x"), true, strp("x")},
		{"unequal", strp("x"), strp("y"), false, nil},
		{"case sensitive", strp("Yes"), strp("yes"), false, nil},
		{"whitespace sensitive", strp("x "), strp("x"), false, nil},
		{"empty strings equal", strp(""), strp(""), true, strp("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := &Item{CreatorChoiceValue: tc.creator, PartnerChoiceValue: tc.partner}
			agreed, value := EvaluateItem(it)
			if agreed != tc.wantAgree {
				t.Fatalf("agreed = %v; want %v", agreed, tc.wantAgree)
			}
			if (value == nil) != (tc.wantValue == nil) {
				t.Fatalf("value = %v; want %v", value, tc.wantValue)
			}
			if value != nil && *value != *tc.wantValue {
				t.Fatalf("value = %q; want %q", *value, *tc.wantValue)
			}
		})
	}
}

func TestEvaluateItem_CopiesAgreedValue(t *testing.T) {
	it := &Item{CreatorChoiceValue: strp("x"), PartnerChoiceValue: strp("x")}
	_, value := EvaluateItem(it)
	if value == it.CreatorChoiceValue {
		t.Fatal("agreed value must not alias the creator's pointer")
	}
	*it.CreatorChoiceValue = "mutated"
	if *value != "x" {
		t.Fatalf("agreed value changed through aliasing: %q", *value)
	}
}

func TestApplyConvergence_TogglesBothWays(t *testing.T) {
	it := &Item{CreatorChoiceValue: strp("x"), PartnerChoiceValue: strp("x")}

	if changed := ApplyConvergence(it); !changed {
		t.Fatal("expected change when item newly converges")
	}
	if !it.IsAgreed || it.AgreedChoiceValue == nil || *it.AgreedChoiceValue != "x" {
		t.Fatalf("item not marked agreed: %+v", it)
	}

	// Re-running on an unchanged item must be a no-op.
	if changed := ApplyConvergence(it); changed {
		t.Fatal("expected no change on stable item")
	}

	// Overwriting one side unlocks the item.
	it.PartnerChoiceValue = strp("y")
	if changed := ApplyConvergence(it); !changed {
		t.Fatal("expected change when agreement is lost")
	}
	if it.IsAgreed || it.AgreedChoiceValue != nil {
		t.Fatalf("item still agreed after divergence: %+v", it)
	}
}

func TestComputeProgress(t *testing.T) {
	mk := func(agreed ...bool) []Item {
		out := make([]Item, len(agreed))
		for i, a := range agreed {
			out[i] = Item{IsAgreed: a}
		}
		return out
	}

	cases := []struct {
		name  string
		items []Item
		want  float64
	}{
		{"no items", nil, 0.0},
		{"none agreed", mk(false, false), 0.0},
		{"all agreed", mk(true, true, true), 100.0},
		{"half", mk(true, false), 50.0},
		{"one third rounds", mk(true, false, false), 33.33},
		{"two thirds rounds", mk(true, true, false), 66.67},
		{"one of seven", mk(true, false, false, false, false, false, false), 14.29},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeProgress(tc.items); got != tc.want {
				t.Fatalf("ComputeProgress = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestAllItemsAnswered(t *testing.T) {
	full := Item{CreatorChoiceValue: strp("a"), PartnerChoiceValue: strp("b")}
	half := Item{CreatorChoiceValue: strp("a")}

	if !AllItemsAnswered([]Item{full, full}) {
		t.Fatal("expected answered when both sides present everywhere")
	}
	if AllItemsAnswered([]Item{full, half}) {
		t.Fatal("expected unanswered when one side is missing")
	}
	if !AllItemsAnswered(nil) {
		t.Fatal("vacuously answered for empty set")
	}
}
