package grading

import "testing"

func TestMarkScale(t *testing.T) {
	s := DefaultMarkScale()
	cases := []struct {
		pct  float64
		want int
	}{
		{100, 5},
		{85, 5}, // bounds are inclusive
		{84.99, 4},
		{65, 4},
		{64.99, 3},
		{40, 3},
		{39.99, 2},
		{0, 2},
	}
	for _, tc := range cases {
		if got := s.Mark(tc.pct); got != tc.want {
			t.Errorf("Mark(%v) = %d, want %d", tc.pct, got, tc.want)
		}
	}
}
