// Package vault owns the folder tree that encodes workflow state. A
// file's location is its state; moving it is the only state transition.
package vault

// State identifies one workflow folder. The folder names are a fixed
// external contract: humans operate the workflow by dragging files
// between them.
type State string

const (
	Inbox           State = "Inbox"
	NeedsAction     State = "Needs_Action"
	Plans           State = "Plans"
	PendingApproval State = "Pending_Approval"
	Approved        State = "Approved"
	Rejected        State = "Rejected"
	Done            State = "Done"
	Logs            State = "Logs"
	Briefings       State = "Briefings"
	Accounting      State = "Accounting"
)

// States lists every folder the engine guarantees to exist, in a stable
// order. Briefings and Accounting are created but not read by the core.
func States() []State {
	return []State{
		Inbox, NeedsAction, Plans, PendingApproval,
		Approved, Rejected, Done, Logs,
		Briefings, Accounting,
	}
}

// transitions maps each state to the states an item may legally move to.
// Pending_Approval transitions are performed by a human, never by the
// engine; everything the engine does ends in Done.
var transitions = map[State][]State{
	Inbox:           {NeedsAction},
	NeedsAction:     {Done},
	Plans:           {Done},
	PendingApproval: {Approved, Rejected},
	Approved:        {Done},
	Rejected:        {Done},
}

// CanTransition reports whether moving an item from one state to
// another is a legal workflow transition. Done is terminal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
