package ecs

// Get returns the *T component of id, or (nil, false) when it is absent.
func Get[T any, PT interface {
	*T
	Component
}](w *World, id EntityID) (PT, bool) {
	c, ok := w.components.GetComponent(id, TypeOf[T, PT]())
	if !ok {
		return nil, false
	}
	typed, ok := c.(PT)
	return typed, ok
}

// Each iterates over entities that have component T, in store order.
func Each[T any, PT interface {
	*T
	Component
}](w *World, fn func(EntityID, PT)) {
	for _, id := range w.components.GetEntitiesWithComponentTypes(TypeOf[T, PT]()) {
		if c, ok := Get[T, PT](w, id); ok {
			fn(id, c)
		}
	}
}

// Each2 iterates over entities that have both component A and B.
// It iterates over the smaller store and checks the larger one.
func Each2[A, B any, PA interface {
	*A
	Component
}, PB interface {
	*B
	Component
}](w *World, fn func(EntityID, PA, PB)) {
	ids := w.components.GetEntitiesWithComponentTypes(TypeOf[A, PA](), TypeOf[B, PB]())
	for _, id := range ids {
		a, okA := Get[A, PA](w, id)
		b, okB := Get[B, PB](w, id)
		if okA && okB {
			fn(id, a, b)
		}
	}
}
