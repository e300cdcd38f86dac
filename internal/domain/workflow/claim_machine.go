package workflow

import "sync"

// claimLifecycle holds the admin decisions shared by every claim.
// Verdict states produced by evaluation (and the reserved Pending state)
// accept one decision; Approved and Rejected accept none.
var claimLifecycle = sync.OnceValue(func() *Lifecycle {
	b := NewLifecycleBuilder()
	for _, open := range []State{StateAutoApproved, StateNeedsReview, StatePending} {
		b.Permit(open, TriggerApprove, StateApproved).
			Permit(open, TriggerReject, StateRejected)
	}
	return b.Build()
})

// NewClaimMachine returns a machine positioned at the claim's current status.
// It panics if status is not a claim state.
func NewClaimMachine(status string) *Machine {
	return claimLifecycle().Start(State(status))
}
