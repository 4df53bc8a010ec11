package grading

// MarkScale maps an attempt percentage onto the 5-point school mark.
// Each field is the lower inclusive bound for that mark; anything below
// Satisfactory is a 2.
type MarkScale struct {
	Excellent    float64 `json:"excellent"`
	Good         float64 `json:"good"`
	Satisfactory float64 `json:"satisfactory"`
}

func DefaultMarkScale() MarkScale {
	return MarkScale{Excellent: 85, Good: 65, Satisfactory: 40}
}

func (s MarkScale) Mark(percentage float64) int {
	switch {
	case percentage >= s.Excellent:
		return 5
	case percentage >= s.Good:
		return 4
	case percentage >= s.Satisfactory:
		return 3
	default:
		return 2
	}
}
