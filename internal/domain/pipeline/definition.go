package pipeline

import "fmt"

// Kind identifies the category of business entity a pipeline governs
type Kind string

const (
	KindLead    Kind = "lead"
	KindOrder   Kind = "order"
	KindProject Kind = "project"
	KindTask    Kind = "task"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Stage is a named step in a pipeline
type Stage string

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// Definition is the immutable stage graph for one entity kind: the ordered
// stage list, the legal transition edges, and the stages that require
// administrator sign-off before they can be entered. Definitions are authored
// at startup and never mutated afterwards.
type Definition struct {
	Kind          Kind
	Stages        []Stage
	Transitions   map[Stage][]Stage
	ApprovalGated []Stage

	stageSet map[Stage]bool
	gatedSet map[Stage]bool
}

// Validate checks the definition for internal consistency: stages must be
// unique and every stage referenced by an edge or gate must exist. Called once
// at registration; a malformed graph is a deployment bug and fails loudly.
func (d *Definition) Validate() error {
	if d.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidDefinition)
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("%w: %s has no stages", ErrInvalidDefinition, d.Kind)
	}

	d.stageSet = make(map[Stage]bool, len(d.Stages))
	for _, s := range d.Stages {
		if s == "" {
			return fmt.Errorf("%w: %s has an empty stage name", ErrInvalidDefinition, d.Kind)
		}
		if d.stageSet[s] {
			return fmt.Errorf("%w: %s declares stage %q twice", ErrInvalidDefinition, d.Kind, s)
		}
		d.stageSet[s] = true
	}

	for from, targets := range d.Transitions {
		if !d.stageSet[from] {
			return fmt.Errorf("%w: %s transition references unknown stage %q", ErrInvalidDefinition, d.Kind, from)
		}
		for _, to := range targets {
			if !d.stageSet[to] {
				return fmt.Errorf("%w: %s transition %s -> %s references unknown stage", ErrInvalidDefinition, d.Kind, from, to)
			}
		}
	}

	d.gatedSet = make(map[Stage]bool, len(d.ApprovalGated))
	for _, s := range d.ApprovalGated {
		if !d.stageSet[s] {
			return fmt.Errorf("%w: %s gates unknown stage %q", ErrInvalidDefinition, d.Kind, s)
		}
		d.gatedSet[s] = true
	}

	return nil
}

// FirstStage returns the entry stage of the graph. Entities that have never
// been moved are treated as sitting here.
func (d *Definition) FirstStage() Stage {
	return d.Stages[0]
}

// HasStage returns true if the stage is part of the definition
func (d *Definition) HasStage(s Stage) bool {
	return d.stageSet[s]
}

// IsGated returns true if entering the stage requires administrator sign-off
func (d *Definition) IsGated(s Stage) bool {
	return d.gatedSet[s]
}

// AllowedFrom returns the legal target stages from the given stage. A stage
// with no outgoing edges yields an empty slice (terminal stage).
func (d *Definition) AllowedFrom(s Stage) []Stage {
	targets := d.Transitions[s]
	out := make([]Stage, len(targets))
	copy(out, targets)
	return out
}

// IsTerminal returns true if the stage has no outgoing transitions. Terminal
// stages may still be re-entered from elsewhere in the graph.
func (d *Definition) IsTerminal(s Stage) bool {
	return len(d.Transitions[s]) == 0
}
