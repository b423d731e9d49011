package ecs

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// World is the top-level ECS container. It owns the entity manager, the
// component manager and the system manager for its whole lifetime, and adds
// the cascading behaviour none of them can provide alone.
type World struct {
	entities   *EntityManager
	components *ComponentManager
	systems    *SystemManager
	log        *zap.Logger
}

// Option configures a World.
type Option func(*worldOptions)

type worldOptions struct {
	registry *ComponentRegistry
	log      *zap.Logger
}

// WithRegistry shares registry with the World instead of creating a private one.
func WithRegistry(registry *ComponentRegistry) Option {
	return func(o *worldOptions) { o.registry = registry }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *worldOptions) { o.log = log }
}

func NewWorld(opts ...Option) *World {
	o := worldOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewComponentRegistry()
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return &World{
		entities:   NewEntityManager(),
		components: NewComponentManager(o.registry),
		systems:    NewSystemManager(),
		log:        o.log,
	}
}

func (w *World) EntityManager() *EntityManager       { return w.entities }
func (w *World) ComponentManager() *ComponentManager { return w.components }
func (w *World) SystemManager() *SystemManager       { return w.systems }
func (w *World) Logger() *zap.Logger                 { return w.log }

// ── Entities ───────────────────────────────────────────────────────

func (w *World) CreateEntity() EntityID {
	return w.entities.CreateEntity()
}

// CreateEntityWithID makes a caller-chosen handle live, e.g. when loading a scene.
// A live entity holding the same index under another generation is destroyed
// first, with the usual removal hooks.
func (w *World) CreateEntityWithID(id EntityID) EntityID {
	if cur, ok := w.entities.LiveAt(id.Index()); ok && cur != id {
		w.log.Debug("entity displaced", zap.Uint64("old", uint64(cur)), zap.Uint64("new", uint64(id)))
		w.DestroyEntity(cur)
	}
	return w.entities.CreateEntityWithID(id)
}

func (w *World) HasEntity(id EntityID) bool {
	return w.entities.HasEntity(id)
}

// DestroyEntity detaches every component of id, firing removal hooks for each,
// notifies EntityRemovedHook systems and only then releases the handle.
func (w *World) DestroyEntity(id EntityID) {
	if !w.entities.HasEntity(id) {
		return
	}
	for _, t := range w.components.componentTypesOf(id) {
		w.RemoveComponent(id, t)
	}
	for _, s := range w.systems.GetAllSystems() {
		if h, ok := s.(EntityRemovedHook); ok {
			h.OnEntityRemoved(w, id)
		}
	}
	w.entities.DestroyEntity(id)
}

// ── Components ─────────────────────────────────────────────────────

func (w *World) RegisterComponent(class ComponentClass) error {
	if err := w.components.RegisterComponent(class); err != nil {
		return err
	}
	w.log.Debug("component registered", zap.String("type", string(class.Type)))
	return nil
}

func (w *World) AddComponent(id EntityID, typ ComponentType, c Component) error {
	return w.components.AddComponent(id, typ, c)
}

// Attach adds c under its own tag.
func (w *World) Attach(id EntityID, comps ...Component) error {
	return w.components.AddComponents(id, comps...)
}

func (w *World) CreateAndAddComponent(id EntityID, typ ComponentType, args ...any) (Component, error) {
	return w.components.CreateAndAddComponent(id, typ, args...)
}

func (w *World) GetComponent(id EntityID, typ ComponentType) (Component, bool) {
	return w.components.GetComponent(id, typ)
}

// RemoveComponent detaches typ from id and notifies ComponentRemovedHook systems.
func (w *World) RemoveComponent(id EntityID, typ ComponentType) {
	c, ok := w.components.RemoveComponent(id, typ)
	if !ok {
		return
	}
	for _, s := range w.systems.GetAllSystems() {
		if h, ok := s.(ComponentRemovedHook); ok {
			h.OnComponentRemoved(w, id, typ, c)
		}
	}
}

func (w *World) UpdateComponent(id EntityID, typ ComponentType, c Component) error {
	return w.components.UpdateComponent(id, typ, c)
}

func (w *World) HasComponent(id EntityID, typ ComponentType) bool {
	return w.components.HasComponent(id, typ)
}

func (w *World) GetEntitiesWithComponentTypes(types ...ComponentType) []EntityID {
	return w.components.GetEntitiesWithComponentTypes(types...)
}

func (w *World) GetEntitiesWithComponents(classes ...ComponentClass) []EntityID {
	return w.components.GetEntitiesWithComponents(classes...)
}

func (w *World) GetAllComponentsForEntity(id EntityID) map[ComponentType]Component {
	return w.components.GetAllComponentsForEntity(id)
}

func (w *World) GetComponentConstructors() map[ComponentType]Constructor {
	return w.components.GetComponentConstructors()
}

// ── Systems ────────────────────────────────────────────────────────

func (w *World) RegisterSystem(s System) error {
	return w.systems.RegisterSystem(s, w)
}

func (w *World) RemoveSystem(s System) bool {
	return w.systems.RemoveSystem(s, w)
}

// Update advances the simulation by one tick.
func (w *World) Update(dt time.Duration) {
	w.systems.UpdateAll(w, dt)
}

// Clear drops every entity and component. Systems are removed, with their
// OnRemove hooks, only when clearSystems is set.
func (w *World) Clear(clearSystems bool) {
	w.entities.Clear()
	w.components.Clear()
	if clearSystems {
		w.systems.Clear(w)
	}
}

// ── Legacy plugin path ─────────────────────────────────────────────

// Initializer is the minimal plugin shape accepted by RegisterPlugin.
type Initializer interface {
	Initialize(w *World) error
}

// RegisterPlugin initializes a plugin that only knows how to set itself up.
// Dependency-aware plugins go through plugin.Manager instead.
func (w *World) RegisterPlugin(p any) error {
	initializer, ok := p.(Initializer)
	if !ok {
		return eris.Wrapf(ErrInvalidPlugin, "register plugin %T", p)
	}
	if err := initializer.Initialize(w); err != nil {
		return eris.Wrapf(err, "initialize plugin %T", p)
	}
	return nil
}
