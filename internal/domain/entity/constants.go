package entity

// Approval entry lifecycle states. Resolved entries are retained so a second
// resolution attempt can be rejected deterministically.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Actor roles. Admins may resolve approvals and move entities into gated
// stages directly.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Entity statuses set by post-transition hooks
const (
	StatusCustomer = "customer"
)
