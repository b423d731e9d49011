package simulation

import (
	"time"

	"github.com/invopop/jsonschema"
	"github.com/physim/studio/internal/core/ecs"
	"github.com/physim/studio/internal/plugin"
	"github.com/rotisserie/eris"
)

// ClothParams are the tunables of the cloth plugin.
type ClothParams struct {
	Gravity    float64 `json:"gravity" jsonschema:"title=Gravity,default=-9.81"`
	Wind       Vec3    `json:"wind" jsonschema:"title=Wind,description=Acceleration applied to free particles"`
	Damping    float64 `json:"damping" jsonschema:"title=Damping,description=Velocity fraction lost per second,minimum=0,maximum=1,default=0.02"`
	Iterations int     `json:"iterations" jsonschema:"title=Constraint iterations,minimum=1,default=4"`
	Width      int     `json:"width" jsonschema:"title=Demo cloth width,description=Particles per row; 0 spawns nothing,minimum=0"`
	Height     int     `json:"height" jsonschema:"title=Demo cloth height,minimum=0"`
	Spacing    float64 `json:"spacing" jsonschema:"title=Particle spacing,default=0.1"`
}

func DefaultClothParams() ClothParams {
	return ClothParams{Gravity: -9.81, Damping: 0.02, Iterations: 4, Spacing: 0.1}
}

// ClothPlugin simulates particle cloth held together by springs.
type ClothPlugin struct {
	params  ClothParams
	world   *ecs.World
	spawned []ecs.EntityID
}

func NewClothPlugin(params ClothParams) *ClothPlugin {
	if params.Iterations < 1 {
		params.Iterations = 1
	}
	return &ClothPlugin{params: params}
}

func (*ClothPlugin) Name() string           { return "cloth" }
func (*ClothPlugin) Dependencies() []string { return []string{"core"} }
func (*ClothPlugin) Version() string        { return "1.0.0" }
func (*ClothPlugin) Description() string    { return "Particle cloth with wind, damping and spring constraints" }
func (*ClothPlugin) Author() string         { return "physim" }

func (p *ClothPlugin) Register(w *ecs.World) error {
	p.world = w
	return registerMissing(w, ClothParticleClass, ClothSpringClass)
}

// InitializeEntities spawns a Width x Height sheet hanging from its top row.
func (p *ClothPlugin) InitializeEntities(w *ecs.World) error {
	cols, rows, d := p.params.Width, p.params.Height, p.params.Spacing
	if cols <= 0 || rows <= 0 {
		return nil
	}
	grid := make([]ecs.EntityID, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			id := w.CreateEntity()
			p.spawned = append(p.spawned, id)
			err := w.Attach(id,
				&Transform{Position: Vec3{X: float64(c) * d, Y: -float64(r) * d}, Scale: Vec3{1, 1, 1}},
				&Velocity{},
				&ClothParticle{Mass: 1, Pinned: r == 0},
			)
			if err != nil {
				return eris.Wrapf(err, "spawn particle %d,%d", c, r)
			}
			grid = append(grid, id)
		}
	}
	link := func(a, b ecs.EntityID) error {
		id := w.CreateEntity()
		p.spawned = append(p.spawned, id)
		return w.Attach(id, &ClothSpring{A: a, B: b, Rest: d, Stiffness: 1})
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			if c+1 < cols {
				if err := link(grid[i], grid[i+1]); err != nil {
					return eris.Wrap(err, "spawn spring")
				}
			}
			if r+1 < rows {
				if err := link(grid[i], grid[i+cols]); err != nil {
					return eris.Wrap(err, "spawn spring")
				}
			}
		}
	}
	return nil
}

// Unregister destroys the sheet this plugin spawned.
func (p *ClothPlugin) Unregister() error {
	if p.world != nil {
		for _, id := range p.spawned {
			p.world.DestroyEntity(id)
		}
	}
	p.spawned = nil
	return nil
}

func (p *ClothPlugin) Systems(sc *plugin.StudioContext) []ecs.System {
	return []ecs.System{
		&ClothForceSystem{
			Gravity: plugin.Param(sc, "gravity", p.params.Gravity),
			Wind:    p.params.Wind,
			Damping: plugin.Param(sc, "damping", p.params.Damping),
		},
		&ClothConstraintSystem{Iterations: p.params.Iterations},
	}
}

func (*ClothPlugin) ParameterSchema() *jsonschema.Schema {
	return reflectParams(&ClothParams{})
}

// ClothForceSystem applies gravity, wind and damping to free particles.
type ClothForceSystem struct {
	Gravity float64
	Wind    Vec3
	Damping float64
}

func (*ClothForceSystem) Priority() int { return PriorityForces }

func (s *ClothForceSystem) Update(w *ecs.World, dt time.Duration) {
	step := dt.Seconds()
	accel := s.Wind.Add(Vec3{Y: s.Gravity}).Scale(step)
	keep := 1 - s.Damping*step
	if keep < 0 {
		keep = 0
	}
	ecs.Each2[ClothParticle, Velocity](w, func(_ ecs.EntityID, p *ClothParticle, v *Velocity) {
		if p.Pinned {
			v.Linear = Vec3{}
			return
		}
		v.Linear = v.Linear.Add(accel).Scale(keep)
	})
}

// ClothConstraintSystem relaxes springs toward their rest length after
// integration. Pinned particles never move; a spring between two pinned
// particles is skipped.
type ClothConstraintSystem struct {
	Iterations int
}

func (*ClothConstraintSystem) Priority() int { return PriorityConstraints }

func (s *ClothConstraintSystem) Update(w *ecs.World, _ time.Duration) {
	for i := 0; i < s.Iterations; i++ {
		ecs.Each[ClothSpring](w, func(_ ecs.EntityID, sp *ClothSpring) {
			relax(w, sp)
		})
	}
}

func relax(w *ecs.World, sp *ClothSpring) {
	ta, okA := ecs.Get[Transform](w, sp.A)
	tb, okB := ecs.Get[Transform](w, sp.B)
	if !okA || !okB {
		return
	}
	wa, wb := freeWeight(w, sp.A), freeWeight(w, sp.B)
	if wa+wb == 0 {
		return
	}
	delta := tb.Position.Sub(ta.Position)
	dist := delta.Len()
	if dist == 0 {
		return
	}
	corr := delta.Scale((dist - sp.Rest) / dist * sp.Stiffness / (wa + wb))
	ta.Position = ta.Position.Add(corr.Scale(wa))
	tb.Position = tb.Position.Sub(corr.Scale(wb))
}

// freeWeight is 0 for pinned particles and 1 otherwise.
func freeWeight(w *ecs.World, id ecs.EntityID) float64 {
	if p, ok := ecs.Get[ClothParticle](w, id); ok && p.Pinned {
		return 0
	}
	return 1
}
