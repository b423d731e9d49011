package ecs

// componentStore holds one component kind. Iteration follows insertion order;
// removal keeps the relative order of the remaining entries.
type componentStore struct {
	index    map[EntityID]int
	entities []EntityID
	data     []Component
}

func newComponentStore() *componentStore {
	return &componentStore{
		index:    make(map[EntityID]int, 256),
		entities: make([]EntityID, 0, 256),
		data:     make([]Component, 0, 256),
	}
}

func (s *componentStore) Set(id EntityID, c Component) {
	if i, ok := s.index[id]; ok {
		s.data[i] = c
		return
	}
	s.index[id] = len(s.entities)
	s.entities = append(s.entities, id)
	s.data = append(s.data, c)
}

func (s *componentStore) Get(id EntityID) (Component, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.data[i], true
}

func (s *componentStore) Has(id EntityID) bool {
	_, ok := s.index[id]
	return ok
}

// Remove deletes the entry for id and returns what was stored. Keeping order
// costs a reindex of the tail, so mass removal is quadratic in store size.
func (s *componentStore) Remove(id EntityID) (Component, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	c := s.data[i]
	copy(s.entities[i:], s.entities[i+1:])
	copy(s.data[i:], s.data[i+1:])
	s.entities = s.entities[:len(s.entities)-1]
	s.data[len(s.data)-1] = nil
	s.data = s.data[:len(s.data)-1]
	delete(s.index, id)
	for j := i; j < len(s.entities); j++ {
		s.index[s.entities[j]] = j
	}
	return c, true
}

func (s *componentStore) Len() int {
	return len(s.entities)
}

func (s *componentStore) Each(fn func(EntityID, Component)) {
	for i, id := range s.entities {
		fn(id, s.data[i])
	}
}

func (s *componentStore) Reset() {
	s.index = make(map[EntityID]int, 256)
	s.entities = s.entities[:0]
	clear(s.data)
	s.data = s.data[:0]
}
