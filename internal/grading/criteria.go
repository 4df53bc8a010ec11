package grading

// Criteria is the teacher-scoped grading configuration consulted at
// scoring time. It is passed explicitly into every Score call and
// snapshotted once per attempt aggregation, so a criteria edit that
// lands mid-recalculation never mixes two versions inside one attempt.
type Criteria struct {
	// PartialCreditMulti awards fractional credit on multi-choice
	// questions (|correct ∩ selected| / |correct ∪ selected|) instead of
	// the default exact-set all-or-nothing.
	PartialCreditMulti bool `json:"partial_credit_multi"`

	// MultiCorrectThreshold is the minimum overlap ratio at which a
	// partially credited multi-choice answer still counts as "correct".
	// Only consulted when PartialCreditMulti is set.
	MultiCorrectThreshold float64 `json:"multi_correct_threshold"`

	// MaxEditDistance tolerates this many character edits when matching
	// free-text answers. Zero means exact (normalized) match only.
	MaxEditDistance int `json:"max_edit_distance"`
}

// DefaultCriteria are the rules applied when a teacher has never
// configured their own: all-or-nothing multi-choice, exact free text.
func DefaultCriteria() Criteria {
	return Criteria{MultiCorrectThreshold: 1.0}
}

func (c Criteria) valid() bool {
	return c.MultiCorrectThreshold >= 0 && c.MultiCorrectThreshold <= 1 && c.MaxEditDistance >= 0
}
