package ecs

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }

// EntityManager owns entity identity. Freed indices are reused LIFO, each reuse
// under a new generation, so a handle held past its destroy never matches again.
type EntityManager struct {
	generations []uint32
	alive       []bool
	freeList    []uint32
	nextIndex   uint32
	count       int
}

func NewEntityManager() *EntityManager {
	return &EntityManager{
		generations: make([]uint32, 0, 1024),
		alive:       make([]bool, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

// CreateEntity allocates a handle, preferring the most recently freed index.
func (m *EntityManager) CreateEntity() EntityID {
	if len(m.freeList) > 0 {
		idx := m.freeList[len(m.freeList)-1]
		m.freeList = m.freeList[:len(m.freeList)-1]
		m.alive[idx] = true
		m.count++
		return NewEntityID(idx, m.generations[idx])
	}
	idx := m.nextIndex
	m.nextIndex++
	m.grow(idx)
	m.alive[idx] = true
	m.count++
	return NewEntityID(idx, m.generations[idx])
}

// CreateEntityWithID makes the caller-supplied handle live and returns it.
// Used when rebuilding a world from a saved document. A live handle on the same
// index under another generation is replaced; World.CreateEntityWithID destroys
// it first so its components go with it.
func (m *EntityManager) CreateEntityWithID(id EntityID) EntityID {
	idx := id.Index()
	if idx >= m.nextIndex {
		for i := m.nextIndex; i < idx; i++ {
			m.grow(i)
			m.freeList = append(m.freeList, i)
		}
		m.nextIndex = idx + 1
		m.grow(idx)
	} else if !m.alive[idx] {
		m.takeFromFreeList(idx)
	} else if m.generations[idx] == id.Generation() {
		return id
	} else {
		m.count--
	}
	m.generations[idx] = id.Generation()
	m.alive[idx] = true
	m.count++
	return id
}

// LiveAt returns the live handle occupying index, if any.
func (m *EntityManager) LiveAt(index uint32) (EntityID, bool) {
	if index >= m.nextIndex || !m.alive[index] {
		return 0, false
	}
	return NewEntityID(index, m.generations[index]), true
}

func (m *EntityManager) HasEntity(id EntityID) bool {
	idx := id.Index()
	if idx >= m.nextIndex {
		return false
	}
	return m.alive[idx] && m.generations[idx] == id.Generation()
}

// DestroyEntity returns the index to the free pool. Unknown or stale handles are ignored.
func (m *EntityManager) DestroyEntity(id EntityID) {
	if !m.HasEntity(id) {
		return
	}
	idx := id.Index()
	m.alive[idx] = false
	m.generations[idx]++
	m.freeList = append(m.freeList, idx)
	m.count--
}

// GetAllEntities returns the live handles in index order.
func (m *EntityManager) GetAllEntities() []EntityID {
	out := make([]EntityID, 0, m.count)
	for idx := uint32(0); idx < m.nextIndex; idx++ {
		if m.alive[idx] {
			out = append(out, NewEntityID(idx, m.generations[idx]))
		}
	}
	return out
}

func (m *EntityManager) Count() int { return m.count }

// Clear retires every handle issued so far. Indices are handed out again from
// zero, under bumped generations.
func (m *EntityManager) Clear() {
	m.freeList = m.freeList[:0]
	for idx := m.nextIndex; idx > 0; idx-- {
		i := idx - 1
		if m.alive[i] {
			m.alive[i] = false
			m.generations[i]++
		}
		m.freeList = append(m.freeList, i)
	}
	m.count = 0
}

func (m *EntityManager) grow(idx uint32) {
	for int(idx) >= len(m.generations) {
		m.generations = append(m.generations, 0)
		m.alive = append(m.alive, false)
	}
}

// takeFromFreeList is linear in the free list, so restoring many ids into a
// cleared manager is quadratic.
func (m *EntityManager) takeFromFreeList(idx uint32) {
	for i := len(m.freeList) - 1; i >= 0; i-- {
		if m.freeList[i] == idx {
			m.freeList = append(m.freeList[:i], m.freeList[i+1:]...)
			return
		}
	}
}
