package ecs

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestroyEntityCascades(t *testing.T) {
	w := newTestWorld(t)
	watcher := &removalWatcher{}
	require.NoError(t, w.RegisterSystem(watcher))

	id := w.CreateEntity()
	require.NoError(t, w.Attach(id, &position{}, &velocity{}, &label{Text: "x"}))

	w.DestroyEntity(id)

	assert.False(t, w.HasEntity(id))
	assert.Empty(t, w.GetAllComponentsForEntity(id))
	assert.Equal(t, []ComponentType{"Position", "Velocity", "Label"}, watcher.components)
	assert.Equal(t, []EntityID{id}, watcher.entities)
	assert.Equal(t, []bool{true}, watcher.sawEntity, "handle must still be live while hooks run")
}

func TestDestroyUnknownEntityIsNoop(t *testing.T) {
	w := newTestWorld(t)
	watcher := &removalWatcher{}
	require.NoError(t, w.RegisterSystem(watcher))

	w.DestroyEntity(NewEntityID(3, 0))

	assert.Empty(t, watcher.entities)
}

func TestRemoveComponentFiresHookOnlyWhenPresent(t *testing.T) {
	w := newTestWorld(t)
	watcher := &removalWatcher{}
	require.NoError(t, w.RegisterSystem(watcher))
	id := w.CreateEntity()
	require.NoError(t, w.AddComponent(id, "Position", &position{}))

	w.RemoveComponent(id, "Velocity")
	w.RemoveComponent(id, "Position")
	w.RemoveComponent(id, "Position")

	assert.Equal(t, []ComponentType{"Position"}, watcher.components)
}

func TestWorldUpdateDrivesSystems(t *testing.T) {
	w := newTestWorld(t)
	id := w.CreateEntity()
	require.NoError(t, w.Attach(id, &position{}, &velocity{DX: 2, DY: -1}))
	require.NoError(t, w.RegisterSystem(&SystemFunc{Order: 10, Fn: func(w *World, dt time.Duration) {
		Each2(w, func(_ EntityID, p *position, v *velocity) {
			p.X += v.DX * dt.Seconds()
			p.Y += v.DY * dt.Seconds()
		})
	}}))

	w.Update(500 * time.Millisecond)
	w.Update(500 * time.Millisecond)

	p, ok := Get[position](w, id)
	require.True(t, ok)
	assert.InDelta(t, 2.0, p.X, 1e-9)
	assert.InDelta(t, -1.0, p.Y, 1e-9)
}

func TestWorldClearKeepsSystemsUnlessAsked(t *testing.T) {
	var log []string
	w := newTestWorld(t)
	require.NoError(t, w.RegisterSystem(&recordingSystem{name: "S", log: &log}))
	id := w.CreateEntity()
	require.NoError(t, w.AddComponent(id, "Position", &position{}))

	w.Clear(false)

	assert.False(t, w.HasEntity(id))
	assert.False(t, w.HasComponent(id, "Position"))
	assert.Len(t, w.SystemManager().GetAllSystems(), 1)
	assert.Contains(t, w.GetComponentConstructors(), ComponentType("Position"))

	w.Clear(true)

	assert.Empty(t, w.SystemManager().GetAllSystems())
	assert.Equal(t, []string{"register:S", "remove:S"}, log)
}

func TestWorldsShareRegistry(t *testing.T) {
	registry := NewComponentRegistry()
	a := NewWorld(WithRegistry(registry))
	b := NewWorld(WithRegistry(registry))
	require.NoError(t, a.RegisterComponent(positionClass))

	assert.Contains(t, b.GetComponentConstructors(), ComponentType("Position"))
	assert.Error(t, b.AddComponent(b.CreateEntity(), "Position", &position{}))
}

type initPlugin struct {
	err    error
	called bool
}

func (p *initPlugin) Initialize(*World) error {
	p.called = true
	return p.err
}

func TestWorldRegisterPluginShim(t *testing.T) {
	w := NewWorld()

	ok := &initPlugin{}
	require.NoError(t, w.RegisterPlugin(ok))
	assert.True(t, ok.called)

	err := w.RegisterPlugin(struct{ Name string }{"no-init"})
	assert.ErrorIs(t, err, ErrInvalidPlugin)

	failing := &initPlugin{err: eris.New("engine offline")}
	assert.ErrorContains(t, w.RegisterPlugin(failing), "engine offline")
}

func TestEachVisitsStoreOrder(t *testing.T) {
	w := newTestWorld(t)
	a := w.CreateEntity()
	b := w.CreateEntity()
	require.NoError(t, w.Attach(b, &label{Text: "b"}))
	require.NoError(t, w.Attach(a, &label{Text: "a"}))

	var seen []string
	Each(w, func(_ EntityID, l *label) { seen = append(seen, l.Text) })

	assert.Equal(t, []string{"b", "a"}, seen)
}

func TestCreateEntityWithIDDisplacesLiveIndex(t *testing.T) {
	w := newTestWorld(t)
	watcher := &removalWatcher{}
	require.NoError(t, w.RegisterSystem(watcher))
	old := w.CreateEntity()
	require.NoError(t, w.Attach(old, &position{X: 1}))

	id := w.CreateEntityWithID(NewEntityID(old.Index(), old.Generation()+1))

	assert.True(t, w.HasEntity(id))
	assert.False(t, w.HasEntity(old))
	assert.Empty(t, w.GetEntitiesWithComponentTypes("Position"))
	assert.Empty(t, w.GetAllComponentsForEntity(old))
	assert.Equal(t, []EntityID{old}, watcher.entities)
	assert.Equal(t, []ComponentType{"Position"}, watcher.components)
	assert.Equal(t, 1, w.EntityManager().Count())

	require.NoError(t, w.Attach(id, &position{X: 2}))
	assert.Equal(t, []EntityID{id}, w.GetEntitiesWithComponentTypes("Position"))
}

func TestCreateEntityWithIDSameHandleKeepsComponents(t *testing.T) {
	w := newTestWorld(t)
	id := w.CreateEntity()
	require.NoError(t, w.Attach(id, &position{X: 1}))

	assert.Equal(t, id, w.CreateEntityWithID(id))
	assert.True(t, w.HasComponent(id, "Position"))
}
