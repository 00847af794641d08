package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownKind is returned when no pipeline definition is registered for an entity kind
	ErrUnknownKind = errors.New("unknown pipeline kind")

	// ErrUnknownStage is returned when a stage is not part of the pipeline definition
	ErrUnknownStage = errors.New("unknown stage")

	// ErrInvalidTransition is returned when a transition is not allowed by the stage graph
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrInvalidDefinition is returned when a pipeline definition fails load-time validation
	ErrInvalidDefinition = errors.New("invalid pipeline definition")

	// ErrEntityNotFound is returned when the entity does not exist for the tenant
	ErrEntityNotFound = errors.New("entity not found")

	// ErrApprovalNotFound is returned when an approval entry does not exist
	ErrApprovalNotFound = errors.New("approval entry not found")

	// ErrTenantMismatch is returned when an approval entry belongs to a different tenant
	ErrTenantMismatch = errors.New("approval entry belongs to another tenant")

	// ErrAlreadyProcessed is returned when a resolved approval entry is resolved again
	ErrAlreadyProcessed = errors.New("approval entry already processed")

	// ErrStageConflict is returned when the entity stage changed between read and write
	ErrStageConflict = errors.New("entity stage changed concurrently")
)

// InvalidTransitionError carries the legal next stages so callers can present
// real options instead of a generic failure.
type InvalidTransitionError struct {
	Kind    Kind
	From    Stage
	To      Stage
	Allowed []Stage
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("invalid stage transition: %s has no outgoing transitions from %s", e.Kind, e.From)
	}
	names := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("invalid stage transition: %s cannot move from %s to %s (allowed: %s)",
		e.Kind, e.From, e.To, strings.Join(names, ", "))
}

// Unwrap makes the error match ErrInvalidTransition via errors.Is
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
