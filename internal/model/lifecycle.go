package model

// transitions is the receipt lifecycle:
// UPLOADED → EXTRACTED | NEEDS_REVIEW → FINALIZED (terminal).
// There is no reverse edge; re-opening a finalized receipt rehydrates
// from the persisted split snapshot instead of changing status.
var transitions = map[string][]string{
	StatusUploaded:    {StatusExtracted, StatusNeedsReview},
	StatusExtracted:   {StatusFinalized},
	StatusNeedsReview: {StatusFinalized},
	StatusFinalized:   {},
}

// CanTransition reports whether moving a receipt from one status to
// another is a legal lifecycle step.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}
