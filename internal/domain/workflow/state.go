package workflow

// State represents a claim's position in the review lifecycle.
// Values match the claim status strings stored with each claim.
type State string

const (
	StateAutoApproved State = "Auto-Approved"
	StateNeedsReview  State = "Needs Review"
	StatePending      State = "Pending"
	StateApproved     State = "Approved"
	StateRejected     State = "Rejected"
)

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateRejected
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid claim state
func (s State) IsValid() bool {
	switch s {
	case StateAutoApproved, StateNeedsReview, StatePending, StateApproved, StateRejected:
		return true
	}
	return false
}
