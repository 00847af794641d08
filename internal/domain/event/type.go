package event

// Type identifies the kind of domain event
type Type string

const (
	// TypeStageChanged is published after a transition has been applied
	TypeStageChanged Type = "stage.changed"

	// TypeApprovalRequested is published when a gated transition is enqueued
	TypeApprovalRequested Type = "approval.requested"

	// TypeApprovalApproved is published when an admin approves a pending entry
	TypeApprovalApproved Type = "approval.approved"

	// TypeApprovalRejected is published when an admin rejects a pending entry
	TypeApprovalRejected Type = "approval.rejected"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}
