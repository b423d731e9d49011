package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityManagerLiveHandlesAreUnique(t *testing.T) {
	m := NewEntityManager()
	live := map[EntityID]bool{}
	for i := 0; i < 64; i++ {
		id := m.CreateEntity()
		require.False(t, live[id], "handle %d issued twice", id)
		live[id] = true
		if i%3 == 0 {
			m.DestroyEntity(id)
			delete(live, id)
		}
	}
	assert.Equal(t, len(live), m.Count())
	for id := range live {
		assert.True(t, m.HasEntity(id))
	}
}

func TestEntityManagerReusesFreedIndexLIFO(t *testing.T) {
	m := NewEntityManager()
	a := m.CreateEntity()
	b := m.CreateEntity()
	m.DestroyEntity(a)
	m.DestroyEntity(b)

	first := m.CreateEntity()
	second := m.CreateEntity()

	assert.Equal(t, b.Index(), first.Index())
	assert.Equal(t, a.Index(), second.Index())
	assert.NotEqual(t, b, first, "recycled index must carry a new generation")
	assert.False(t, m.HasEntity(a))
	assert.False(t, m.HasEntity(b))
	assert.True(t, m.HasEntity(first))
}

func TestEntityManagerDestroyStaleHandleIsNoop(t *testing.T) {
	m := NewEntityManager()
	a := m.CreateEntity()
	m.DestroyEntity(a)
	reused := m.CreateEntity()

	m.DestroyEntity(a)

	assert.True(t, m.HasEntity(reused))
	assert.Equal(t, 1, m.Count())
}

func TestEntityManagerCreateWithID(t *testing.T) {
	m := NewEntityManager()
	id := NewEntityID(5, 2)

	got := m.CreateEntityWithID(id)

	assert.Equal(t, id, got)
	assert.True(t, m.HasEntity(id))
	assert.Equal(t, 1, m.Count())

	// Indices skipped over are still available to plain creation.
	next := m.CreateEntity()
	assert.Less(t, next.Index(), uint32(5))
	assert.Equal(t, 2, m.Count())

	assert.Equal(t, id, m.CreateEntityWithID(id))
	assert.Equal(t, 2, m.Count())
}

func TestEntityManagerClearInvalidatesHandles(t *testing.T) {
	m := NewEntityManager()
	a := m.CreateEntity()
	b := m.CreateEntity()

	m.Clear()

	assert.False(t, m.HasEntity(a))
	assert.False(t, m.HasEntity(b))
	assert.Empty(t, m.GetAllEntities())

	fresh := m.CreateEntity()
	assert.Equal(t, uint32(0), fresh.Index())
	assert.NotEqual(t, a, fresh)
}

func TestEntityManagerGetAllEntitiesInIndexOrder(t *testing.T) {
	m := NewEntityManager()
	a := m.CreateEntity()
	b := m.CreateEntity()
	c := m.CreateEntity()
	m.DestroyEntity(b)

	assert.Equal(t, []EntityID{a, c}, m.GetAllEntities())
}

func TestEntityManagerLiveAt(t *testing.T) {
	m := NewEntityManager()
	id := m.CreateEntity()

	got, ok := m.LiveAt(id.Index())
	require.True(t, ok)
	assert.Equal(t, id, got)

	m.DestroyEntity(id)
	_, ok = m.LiveAt(id.Index())
	assert.False(t, ok)
	_, ok = m.LiveAt(99)
	assert.False(t, ok)
}
