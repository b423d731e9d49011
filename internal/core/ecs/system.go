package ecs

import "time"

// System is the interface every ECS system implements. Lower priority values
// run earlier within a tick.
type System interface {
	Priority() int
	Update(w *World, dt time.Duration)
}

// RegisterHook is implemented by systems that need setup when they join a World.
type RegisterHook interface {
	OnRegister(w *World)
}

// RemoveHook is implemented by systems that release state when they leave a World.
type RemoveHook interface {
	OnRemove(w *World)
}

// EntityRemovedHook is notified after an entity's components are gone and
// before its handle is released.
type EntityRemovedHook interface {
	OnEntityRemoved(w *World, id EntityID)
}

// ComponentRemovedHook is notified for every component the World detaches.
type ComponentRemovedHook interface {
	OnComponentRemoved(w *World, id EntityID, typ ComponentType, c Component)
}

// SystemFunc adapts a function to System.
type SystemFunc struct {
	Order int
	Fn    func(w *World, dt time.Duration)
}

func (s *SystemFunc) Priority() int                     { return s.Order }
func (s *SystemFunc) Update(w *World, dt time.Duration) { s.Fn(w, dt) }
