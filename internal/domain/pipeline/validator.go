package pipeline

// Decision is the outcome of validating a transition
type Decision struct {
	// RequiresApproval is true when the target stage cannot be entered
	// without administrator sign-off
	RequiresApproval bool
}

// Validate checks whether moving from current to target is legal under the
// definition. Pure function: no I/O, no side effects. A current stage with no
// outgoing edges is treated as having an empty allowed set; a target stage
// outside the graph is an illegal transition and still carries the allowed
// set for diagnostics.
func Validate(def *Definition, current, target Stage) (Decision, error) {
	if !def.HasStage(target) {
		return Decision{}, &InvalidTransitionError{
			Kind:    def.Kind,
			From:    current,
			To:      target,
			Allowed: def.AllowedFrom(current),
		}
	}

	for _, allowed := range def.Transitions[current] {
		if allowed == target {
			return Decision{RequiresApproval: def.IsGated(target)}, nil
		}
	}

	return Decision{}, &InvalidTransitionError{
		Kind:    def.Kind,
		From:    current,
		To:      target,
		Allowed: def.AllowedFrom(current),
	}
}
