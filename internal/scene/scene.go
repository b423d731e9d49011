// Package scene converts a World to and from a portable document of the form
// {"entities": [{"entityId": 1, "components": {"Transform": {...}}}]}.
package scene

import (
	"sort"

	"github.com/physim/studio/internal/core/ecs"
	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
)

// Document is a serialized World.
type Document struct {
	Entities []Entity `json:"entities" yaml:"entities"`
}

// Entity is one serialized entity. Components are keyed by component type.
type Entity struct {
	EntityID   ecs.EntityID              `json:"entityId" yaml:"entityId"`
	Components map[string]map[string]any `json:"components" yaml:"components"`
}

// Snapshot serializes every live entity of w with all of its components.
func Snapshot(w *ecs.World) (*Document, error) {
	doc := &Document{Entities: []Entity{}}
	for _, id := range w.EntityManager().GetAllEntities() {
		comps := w.GetAllComponentsForEntity(id)
		ent := Entity{EntityID: id, Components: make(map[string]map[string]any, len(comps))}
		for typ, c := range comps {
			data, err := ecs.EncodeComponent(c)
			if err != nil {
				return nil, eris.Wrapf(err, "snapshot entity %d", id)
			}
			ent.Components[string(typ)] = data
		}
		doc.Entities = append(doc.Entities, ent)
	}
	return doc, nil
}

// Restore clears the entities and components of w and rebuilds them from doc.
// Systems and component registrations are kept. Entities keep their ids.
// Components of unregistered types are skipped and reported together in the
// returned error; everything else is still restored.
func Restore(w *ecs.World, doc *Document) error {
	w.Clear(false)
	constructors := w.GetComponentConstructors()

	var errs error
	for _, ent := range doc.Entities {
		id := w.CreateEntityWithID(ent.EntityID)
		types := make([]string, 0, len(ent.Components))
		for typ := range ent.Components {
			types = append(types, typ)
		}
		sort.Strings(types)
		for _, typ := range types {
			ctype := ecs.ComponentType(typ)
			ctor, ok := constructors[ctype]
			if !ok || !w.ComponentManager().IsRegistered(ctype) {
				errs = multierr.Append(errs, eris.Wrapf(ecs.ErrComponentNotRegistered, "restore entity %d: %s", id, typ))
				continue
			}
			c, err := ecs.DecodeComponent(ctype, ctor, ent.Components[typ])
			if err != nil {
				errs = multierr.Append(errs, eris.Wrapf(err, "restore entity %d", id))
				continue
			}
			if err := w.AddComponent(id, ctype, c); err != nil {
				errs = multierr.Append(errs, eris.Wrapf(err, "restore entity %d", id))
			}
		}
	}
	return errs
}
