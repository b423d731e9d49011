package simulation

import (
	"context"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/physim/studio/internal/core/ecs"
	"github.com/physim/studio/internal/plugin"
	"github.com/rotisserie/eris"
)

// RigidBodyParams are the tunables of the rigid body plugin.
type RigidBodyParams struct {
	Gravity      float64 `json:"gravity" jsonschema:"title=Gravity,description=Vertical acceleration in m/s²,default=-9.81"`
	GroundHeight float64 `json:"ground_height" jsonschema:"title=Ground height,default=0"`
	Restitution  float64 `json:"restitution" jsonschema:"title=Default restitution,minimum=0,maximum=1,default=0.5"`
	Spawn        int     `json:"spawn" jsonschema:"title=Demo bodies,description=Bodies dropped on activation,minimum=0"`
}

func DefaultRigidBodyParams() RigidBodyParams {
	return RigidBodyParams{Gravity: -9.81, Restitution: 0.5}
}

// RigidBodyPlugin drops bodies under gravity onto a flat ground plane.
type RigidBodyPlugin struct {
	params  RigidBodyParams
	world   *ecs.World
	spawned []ecs.EntityID
}

func NewRigidBodyPlugin(params RigidBodyParams) *RigidBodyPlugin {
	return &RigidBodyPlugin{params: params}
}

func (*RigidBodyPlugin) Name() string           { return "rigidbody" }
func (*RigidBodyPlugin) Dependencies() []string { return []string{"core"} }
func (*RigidBodyPlugin) Version() string        { return "1.0.0" }
func (*RigidBodyPlugin) Description() string    { return "Gravity and ground contact for rigid bodies" }
func (*RigidBodyPlugin) Author() string         { return "physim" }

// Prepare validates the parameters before anything touches the World.
func (p *RigidBodyPlugin) Prepare(context.Context) error {
	if p.params.Restitution < 0 || p.params.Restitution > 1 {
		return eris.Errorf("restitution %v out of [0, 1]", p.params.Restitution)
	}
	if p.params.Spawn < 0 {
		return eris.Errorf("spawn %d is negative", p.params.Spawn)
	}
	return nil
}

func (p *RigidBodyPlugin) Register(w *ecs.World) error {
	p.world = w
	return registerMissing(w, RigidBodyClass)
}

// InitializeEntities stacks the demo bodies one metre apart above the ground.
func (p *RigidBodyPlugin) InitializeEntities(w *ecs.World) error {
	for i := 0; i < p.params.Spawn; i++ {
		id := w.CreateEntity()
		err := w.Attach(id,
			&Transform{Position: Vec3{Y: p.params.GroundHeight + float64(i+1)}, Scale: Vec3{1, 1, 1}},
			&Velocity{},
			&RigidBody{Mass: 1, Restitution: p.params.Restitution},
		)
		if err != nil {
			w.DestroyEntity(id)
			return eris.Wrapf(err, "spawn body %d", i)
		}
		p.spawned = append(p.spawned, id)
	}
	return nil
}

// Unregister destroys the bodies this plugin spawned.
func (p *RigidBodyPlugin) Unregister() error {
	if p.world != nil {
		for _, id := range p.spawned {
			p.world.DestroyEntity(id)
		}
	}
	p.spawned = nil
	return nil
}

func (p *RigidBodyPlugin) Systems(sc *plugin.StudioContext) []ecs.System {
	return []ecs.System{
		&GravitySystem{Gravity: plugin.Param(sc, "gravity", p.params.Gravity)},
		&GroundContactSystem{Height: plugin.Param(sc, "ground_height", p.params.GroundHeight)},
	}
}

func (*RigidBodyPlugin) ParameterSchema() *jsonschema.Schema {
	return reflectParams(&RigidBodyParams{})
}

// GravitySystem accelerates every non-static rigid body.
type GravitySystem struct {
	Gravity float64
}

func (*GravitySystem) Priority() int { return PriorityForces }

func (s *GravitySystem) Update(w *ecs.World, dt time.Duration) {
	dv := s.Gravity * dt.Seconds()
	ecs.Each2[RigidBody, Velocity](w, func(_ ecs.EntityID, b *RigidBody, v *Velocity) {
		if !b.Static {
			v.Linear.Y += dv
		}
	})
}

// GroundContactSystem keeps bodies above the ground plane and bounces them
// with their restitution.
type GroundContactSystem struct {
	Height float64
}

func (*GroundContactSystem) Priority() int { return PriorityConstraints }

func (s *GroundContactSystem) Update(w *ecs.World, _ time.Duration) {
	ecs.Each2[RigidBody, Transform](w, func(id ecs.EntityID, b *RigidBody, t *Transform) {
		if b.Static || t.Position.Y >= s.Height {
			return
		}
		t.Position.Y = s.Height
		if v, ok := ecs.Get[Velocity](w, id); ok && v.Linear.Y < 0 {
			v.Linear.Y = -v.Linear.Y * b.Restitution
		}
	})
}
