package ecs

import (
	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
)

// ComponentManager stores the component instances of one World, keyed by
// (type, entity). A type must be registered here before instances of it can
// be attached.
type ComponentManager struct {
	registry *ComponentRegistry
	stores   map[ComponentType]*componentStore
	order    []ComponentType
}

func NewComponentManager(registry *ComponentRegistry) *ComponentManager {
	if registry == nil {
		registry = NewComponentRegistry()
	}
	return &ComponentManager{
		registry: registry,
		stores:   make(map[ComponentType]*componentStore, 16),
		order:    make([]ComponentType, 0, 16),
	}
}

func (m *ComponentManager) Registry() *ComponentRegistry { return m.registry }

// RegisterComponent creates an empty store for the class and forwards it to
// the registry. Registering a type again resets its store.
func (m *ComponentManager) RegisterComponent(class ComponentClass) error {
	if err := m.registry.Register(class); err != nil {
		return err
	}
	if _, ok := m.stores[class.Type]; !ok {
		m.order = append(m.order, class.Type)
	}
	m.stores[class.Type] = newComponentStore()
	return nil
}

func (m *ComponentManager) IsRegistered(typ ComponentType) bool {
	_, ok := m.stores[typ]
	return ok
}

// RegisteredTypes returns the types with a store, in registration order.
func (m *ComponentManager) RegisteredTypes() []ComponentType {
	return append([]ComponentType(nil), m.order...)
}

// AddComponent attaches c to id under typ, replacing any previous instance.
func (m *ComponentManager) AddComponent(id EntityID, typ ComponentType, c Component) error {
	s, err := m.store(typ)
	if err != nil {
		return err
	}
	if c == nil || c.ComponentType() != typ {
		return eris.Wrapf(ErrComponentTypeMismatch, "add %s to entity %d", typ, id)
	}
	s.Set(id, c)
	return nil
}

func (m *ComponentManager) GetComponent(id EntityID, typ ComponentType) (Component, bool) {
	s, ok := m.stores[typ]
	if !ok {
		return nil, false
	}
	return s.Get(id)
}

// RemoveComponent detaches typ from id and returns the removed instance.
// Absent components are a no-op.
func (m *ComponentManager) RemoveComponent(id EntityID, typ ComponentType) (Component, bool) {
	s, ok := m.stores[typ]
	if !ok {
		return nil, false
	}
	return s.Remove(id)
}

func (m *ComponentManager) HasComponent(id EntityID, typ ComponentType) bool {
	s, ok := m.stores[typ]
	if !ok {
		return false
	}
	return s.Has(id)
}

// GetEntitiesWithComponentTypes returns the entities holding every one of
// types. The smallest store drives the scan, so results follow that store's
// insertion order. Callers must not rely on numeric ordering.
func (m *ComponentManager) GetEntitiesWithComponentTypes(types ...ComponentType) []EntityID {
	if len(types) == 0 {
		return nil
	}
	stores := make([]*componentStore, 0, len(types))
	for _, t := range types {
		s, ok := m.stores[t]
		if !ok {
			return nil
		}
		stores = append(stores, s)
	}
	smallest := 0
	for i, s := range stores {
		if s.Len() < stores[smallest].Len() {
			smallest = i
		}
	}
	out := make([]EntityID, 0, stores[smallest].Len())
	for _, id := range stores[smallest].entities {
		matched := true
		for i, s := range stores {
			if i != smallest && !s.Has(id) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, id)
		}
	}
	return out
}

// GetEntitiesWithComponents is GetEntitiesWithComponentTypes over classes.
func (m *ComponentManager) GetEntitiesWithComponents(classes ...ComponentClass) []EntityID {
	types := make([]ComponentType, len(classes))
	for i, c := range classes {
		types[i] = c.Type
	}
	return m.GetEntitiesWithComponentTypes(types...)
}

// GetAllComponentsForEntity returns every component attached to id.
func (m *ComponentManager) GetAllComponentsForEntity(id EntityID) map[ComponentType]Component {
	out := make(map[ComponentType]Component)
	for _, t := range m.order {
		if c, ok := m.stores[t].Get(id); ok {
			out[t] = c
		}
	}
	return out
}

// componentTypesOf lists the types attached to id in registration order.
func (m *ComponentManager) componentTypesOf(id EntityID) []ComponentType {
	var out []ComponentType
	for _, t := range m.order {
		if m.stores[t].Has(id) {
			out = append(out, t)
		}
	}
	return out
}

// UpdateComponent replaces the instance stored for (id, typ).
func (m *ComponentManager) UpdateComponent(id EntityID, typ ComponentType, c Component) error {
	return m.AddComponent(id, typ, c)
}

// BatchOperation applies fn to every id in order. A failing call does not stop
// the batch or undo earlier calls; all failures are returned combined.
func (m *ComponentManager) BatchOperation(ids []EntityID, fn func(EntityID) error) error {
	var errs error
	for _, id := range ids {
		if err := fn(id); err != nil {
			errs = multierr.Append(errs, eris.Wrapf(err, "entity %d", id))
		}
	}
	return errs
}

// AddComponents attaches each component under its own tag, stopping at the
// first failure. Components attached before the failure stay attached.
func (m *ComponentManager) AddComponents(id EntityID, comps ...Component) error {
	for _, c := range comps {
		if c == nil {
			return eris.Wrapf(ErrComponentTypeMismatch, "add nil component to entity %d", id)
		}
		if err := m.AddComponent(id, c.ComponentType(), c); err != nil {
			return err
		}
	}
	return nil
}

func (m *ComponentManager) RemoveComponents(id EntityID, types ...ComponentType) {
	for _, t := range types {
		m.RemoveComponent(id, t)
	}
}

// CreateAndAddComponent constructs typ through the registry and attaches it.
func (m *ComponentManager) CreateAndAddComponent(id EntityID, typ ComponentType, args ...any) (Component, error) {
	if _, err := m.store(typ); err != nil {
		return nil, err
	}
	ctor, ok := m.registry.GetConstructor(typ)
	if !ok {
		return nil, eris.Wrapf(ErrComponentNotRegistered, "create %s", typ)
	}
	c, err := ctor(args...)
	if err != nil {
		return nil, err
	}
	if err := m.AddComponent(id, typ, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetComponentConstructors returns the constructors known to the registry.
func (m *ComponentManager) GetComponentConstructors() map[ComponentType]Constructor {
	return m.registry.Constructors()
}

// Clear empties every store but keeps the registrations.
func (m *ComponentManager) Clear() {
	for _, s := range m.stores {
		s.Reset()
	}
}

func (m *ComponentManager) store(typ ComponentType) (*componentStore, error) {
	s, ok := m.stores[typ]
	if !ok {
		return nil, eris.Wrapf(ErrComponentNotRegistered, "component type %q", typ)
	}
	return s, nil
}
