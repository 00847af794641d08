package pipeline

import "fmt"

// Registry is the static catalog of pipeline definitions, one per entity
// kind. It is populated once at startup and read-only afterwards, so it is
// safe for concurrent use without locking.
type Registry struct {
	definitions map[Kind]*Definition
	kinds       []Kind
}

// NewRegistry validates and indexes the given definitions. A malformed graph
// or a duplicate kind fails registration.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{
		definitions: make(map[Kind]*Definition, len(defs)),
	}

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.definitions[def.Kind]; exists {
			return nil, fmt.Errorf("%w: kind %s registered twice", ErrInvalidDefinition, def.Kind)
		}
		r.definitions[def.Kind] = def
		r.kinds = append(r.kinds, def.Kind)
	}

	return r, nil
}

// Definition returns the pipeline definition for the kind
func (r *Registry) Definition(kind Kind) (*Definition, error) {
	def, ok := r.definitions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return def, nil
}

// Kinds returns the registered kinds in registration order
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}
