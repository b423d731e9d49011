package simulation

import (
	"time"

	"github.com/invopop/jsonschema"
	"github.com/physim/studio/internal/core/ecs"
	"github.com/physim/studio/internal/plugin"
)

// System priorities of the built-in plugins. Forces run before integration,
// constraints after it.
const (
	PriorityForces      = 50
	PriorityIntegration = 100
	PriorityConstraints = 150
)

// CoreParams are the tunables of the core plugin.
type CoreParams struct {
	TimeScale float64 `json:"time_scale" jsonschema:"title=Time scale,description=Multiplier applied to every tick,minimum=0,default=1"`
}

// CorePlugin provides Transform and Velocity and integrates motion.
type CorePlugin struct {
	params CoreParams
}

func NewCorePlugin(params CoreParams) *CorePlugin {
	if params.TimeScale == 0 {
		params.TimeScale = 1
	}
	return &CorePlugin{params: params}
}

func (*CorePlugin) Name() string           { return "core" }
func (*CorePlugin) Dependencies() []string { return nil }
func (*CorePlugin) Version() string        { return "1.0.0" }
func (*CorePlugin) Description() string    { return "Transforms, velocities and explicit Euler integration" }
func (*CorePlugin) Author() string         { return "physim" }

func (*CorePlugin) Register(w *ecs.World) error {
	return registerMissing(w, TransformClass, VelocityClass)
}

func (*CorePlugin) Unregister() error                   { return nil }
func (*CorePlugin) InitializeEntities(*ecs.World) error { return nil }

func (p *CorePlugin) Systems(sc *plugin.StudioContext) []ecs.System {
	return []ecs.System{&IntegrationSystem{
		TimeScale: plugin.Param(sc, "time_scale", p.params.TimeScale),
	}}
}

func (*CorePlugin) ParameterSchema() *jsonschema.Schema {
	return reflectParams(&CoreParams{})
}

// IntegrationSystem moves every entity with Transform and Velocity.
type IntegrationSystem struct {
	TimeScale float64
}

func (*IntegrationSystem) Priority() int { return PriorityIntegration }

func (s *IntegrationSystem) Update(w *ecs.World, dt time.Duration) {
	step := dt.Seconds() * s.TimeScale
	ecs.Each2[Transform, Velocity](w, func(_ ecs.EntityID, t *Transform, v *Velocity) {
		t.Position = t.Position.Add(v.Linear.Scale(step))
		t.Rotation = t.Rotation.Add(v.Angular.Scale(step))
	})
}

func reflectParams(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	return r.Reflect(v)
}
