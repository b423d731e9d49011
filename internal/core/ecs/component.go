package ecs

import (
	"github.com/rotisserie/eris"
)

// ComponentType is the stable tag a component kind is stored, queried and
// serialized under, e.g. "Transform".
type ComponentType string

// Component is a plain data record attached to at most one (entity, type) slot.
type Component interface {
	ComponentType() ComponentType
	// Clone returns a copy that can be mutated independently of the receiver.
	Clone() Component
}

// Serializer lets a component control its persisted form. Components without
// it are persisted as a structural copy of their exported fields.
type Serializer interface {
	Serialize() (map[string]any, error)
}

// Deserializer is the counterpart of Serializer, applied to a freshly
// constructed instance.
type Deserializer interface {
	Deserialize(data map[string]any) error
}

// Constructor builds a new instance of one component kind.
type Constructor func(args ...any) (Component, error)

// ComponentClass pairs a component tag with its constructor. It is the unit
// of registration.
type ComponentClass struct {
	Type ComponentType
	New  Constructor
}

// Define builds the class of the pointer component type *T. setup, when
// non-nil, receives the constructor arguments of CreateComponent.
func Define[T any, PT interface {
	*T
	Component
}](setup func(c PT, args ...any) error) ComponentClass {
	typ := PT(new(T)).ComponentType()
	return ComponentClass{
		Type: typ,
		New: func(args ...any) (Component, error) {
			c := PT(new(T))
			if setup != nil {
				if err := setup(c, args...); err != nil {
					return nil, eris.Wrapf(err, "construct %s", typ)
				}
			}
			return c, nil
		},
	}
}

// TypeOf returns the tag of the pointer component type *T.
func TypeOf[T any, PT interface {
	*T
	Component
}]() ComponentType {
	return PT(new(T)).ComponentType()
}
