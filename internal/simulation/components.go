// Package simulation holds the built-in physics plugins: core motion,
// rigid bodies and cloth.
package simulation

import (
	"github.com/physim/studio/internal/core/ecs"
)

// Transform places an entity in the world. Rotation is Euler angles in radians.
type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

func (*Transform) ComponentType() ecs.ComponentType { return "Transform" }
func (t *Transform) Clone() ecs.Component {
	c := *t
	return &c
}

// Velocity is applied to Transform by the core integration system.
type Velocity struct {
	Linear  Vec3 `json:"linear"`
	Angular Vec3 `json:"angular"`
}

func (*Velocity) ComponentType() ecs.ComponentType { return "Velocity" }
func (v *Velocity) Clone() ecs.Component {
	c := *v
	return &c
}

// RigidBody marks an entity as subject to gravity and ground contact.
type RigidBody struct {
	Mass        float64 `json:"mass"`
	Restitution float64 `json:"restitution"`
	Static      bool    `json:"static"`
}

func (*RigidBody) ComponentType() ecs.ComponentType { return "RigidBody" }
func (b *RigidBody) Clone() ecs.Component {
	c := *b
	return &c
}

// ClothParticle is one point mass of a cloth. Pinned particles never move.
type ClothParticle struct {
	Mass   float64 `json:"mass"`
	Pinned bool    `json:"pinned"`
}

func (*ClothParticle) ComponentType() ecs.ComponentType { return "ClothParticle" }
func (p *ClothParticle) Clone() ecs.Component {
	c := *p
	return &c
}

// ClothSpring keeps two particles at Rest distance. It lives on its own entity.
type ClothSpring struct {
	A         ecs.EntityID `json:"a"`
	B         ecs.EntityID `json:"b"`
	Rest      float64      `json:"rest"`
	Stiffness float64      `json:"stiffness"`
}

func (*ClothSpring) ComponentType() ecs.ComponentType { return "ClothSpring" }
func (s *ClothSpring) Clone() ecs.Component {
	c := *s
	return &c
}

var (
	TransformClass = ecs.Define[Transform](func(t *Transform, args ...any) error {
		t.Scale = Vec3{1, 1, 1}
		if len(args) > 0 {
			if p, ok := args[0].(Vec3); ok {
				t.Position = p
			}
		}
		return nil
	})

	VelocityClass = ecs.Define[Velocity](nil)

	RigidBodyClass = ecs.Define[RigidBody](func(b *RigidBody, _ ...any) error {
		b.Mass = 1
		return nil
	})

	ClothParticleClass = ecs.Define[ClothParticle](func(p *ClothParticle, _ ...any) error {
		p.Mass = 1
		return nil
	})

	ClothSpringClass = ecs.Define[ClothSpring](nil)
)

// registerMissing registers the classes w does not know yet. Known types keep
// their stores so re-activation does not drop entities.
func registerMissing(w *ecs.World, classes ...ecs.ComponentClass) error {
	for _, class := range classes {
		if w.ComponentManager().IsRegistered(class.Type) {
			continue
		}
		if err := w.RegisterComponent(class); err != nil {
			return err
		}
	}
	return nil
}
