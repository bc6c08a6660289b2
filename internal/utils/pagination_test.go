package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"42", 0, 42},
		{"", 10, 10},
		{"x", 5, 5},
		{"-3", 1, -3},
		{"3.5", 7, 7},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Errorf("AtoiDefault(%q, %d) = %d, want %d", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, size     int
		wantP, wantS   int
	}{
		{0, 0, 1, 20},
		{-5, 50, 1, 50},
		{2, 500, 2, 100},
		{3, 10, 3, 10},
	}
	for _, tc := range cases {
		p, s := ClampPage(tc.page, tc.size, 20, 100)
		if p != tc.wantP || s != tc.wantS {
			t.Errorf("ClampPage(%d, %d) = (%d, %d), want (%d, %d)",
				tc.page, tc.size, p, s, tc.wantP, tc.wantS)
		}
	}
}
