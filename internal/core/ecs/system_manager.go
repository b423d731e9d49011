package ecs

import (
	"cmp"
	"reflect"
	"slices"
	"time"

	"github.com/physim/studio/internal/core/event"
	"github.com/rotisserie/eris"
)

// SystemRegistered is emitted every time a system joins the manager.
type SystemRegistered struct {
	System System
}

// SystemManager executes systems in priority order each tick.
type SystemManager struct {
	systems    []System
	registered event.Listeners[SystemRegistered]
}

func NewSystemManager() *SystemManager {
	return &SystemManager{
		systems: make([]System, 0, 16),
	}
}

// RegisterSystem appends s. When w is non-nil and s implements RegisterHook,
// the hook runs before subscribers are told about s. Systems are removed by
// identity, so s must be a non-nil pointer.
func (m *SystemManager) RegisterSystem(s System, w *World) error {
	if v := reflect.ValueOf(s); !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return eris.Wrapf(ErrInvalidSystem, "register system %T", s)
	}
	m.systems = append(m.systems, s)
	if w != nil {
		if h, ok := s.(RegisterHook); ok {
			h.OnRegister(w)
		}
	}
	m.registered.Emit(SystemRegistered{System: s})
	return nil
}

// OnSystemRegistered subscribes fn to registrations.
func (m *SystemManager) OnSystemRegistered(fn func(SystemRegistered)) (unsubscribe func()) {
	return m.registered.Subscribe(fn)
}

// UpdateAll runs every system once, ascending by priority. The sort is stable
// and repeated each call, so equal priorities keep registration order and a
// priority changed between ticks takes effect on the next one.
func (m *SystemManager) UpdateAll(w *World, dt time.Duration) {
	slices.SortStableFunc(m.systems, func(a, b System) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	for _, s := range slices.Clone(m.systems) {
		s.Update(w, dt)
	}
}

// RemoveSystem removes s by identity. It reports whether s was registered.
// Only pointers are ever registered, so the comparison cannot panic.
func (m *SystemManager) RemoveSystem(s System, w *World) bool {
	i := slices.Index(m.systems, s)
	if i < 0 {
		return false
	}
	m.systems = slices.Delete(m.systems, i, i+1)
	if w != nil {
		if h, ok := s.(RemoveHook); ok {
			h.OnRemove(w)
		}
	}
	return true
}

// Clear removes every system, running OnRemove hooks when w is non-nil.
func (m *SystemManager) Clear(w *World) {
	systems := m.systems
	m.systems = make([]System, 0, 16)
	if w == nil {
		return
	}
	for _, s := range systems {
		if h, ok := s.(RemoveHook); ok {
			h.OnRemove(w)
		}
	}
}

// GetAllSystems returns the systems in their current order.
func (m *SystemManager) GetAllSystems() []System {
	return slices.Clone(m.systems)
}

// FindSystem returns the first registered system of concrete type S.
func FindSystem[S System](m *SystemManager) (S, bool) {
	for _, s := range m.systems {
		if typed, ok := s.(S); ok {
			return typed, true
		}
	}
	var zero S
	return zero, false
}
