package ecs

import (
	"sort"

	"github.com/rotisserie/eris"
)

// ComponentRegistry maps component tags to constructors. One registry may be
// shared by every World of a process; it is passed in explicitly rather than
// reached through a package global.
type ComponentRegistry struct {
	constructors map[ComponentType]Constructor
}

func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		constructors: make(map[ComponentType]Constructor, 16),
	}
}

// Register stores the class constructor under its tag. Registering a tag again
// replaces the previous constructor.
func (r *ComponentRegistry) Register(class ComponentClass) error {
	if class.Type == "" {
		return eris.Wrap(ErrMissingComponentType, "register component")
	}
	if class.New == nil {
		return eris.Wrapf(ErrMissingConstructor, "register component %s", class.Type)
	}
	r.constructors[class.Type] = class.New
	return nil
}

func (r *ComponentRegistry) GetConstructor(typ ComponentType) (Constructor, bool) {
	c, ok := r.constructors[typ]
	return c, ok
}

// CreateComponent builds an instance of typ. It returns (nil, false) for an
// unknown tag or when the constructor rejects args.
func (r *ComponentRegistry) CreateComponent(typ ComponentType, args ...any) (Component, bool) {
	ctor, ok := r.constructors[typ]
	if !ok {
		return nil, false
	}
	c, err := ctor(args...)
	if err != nil {
		return nil, false
	}
	return c, true
}

func (r *ComponentRegistry) HasComponent(typ ComponentType) bool {
	_, ok := r.constructors[typ]
	return ok
}

// GetRegisteredTypes returns every registered tag, sorted.
func (r *ComponentRegistry) GetRegisteredTypes() []ComponentType {
	out := make([]ComponentType, 0, len(r.constructors))
	for t := range r.constructors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Constructors returns a copy of the tag to constructor map.
func (r *ComponentRegistry) Constructors() map[ComponentType]Constructor {
	out := make(map[ComponentType]Constructor, len(r.constructors))
	for t, c := range r.constructors {
		out[t] = c
	}
	return out
}

func (r *ComponentRegistry) Clear() {
	r.constructors = make(map[ComponentType]Constructor, 16)
}
