// Package plugin activates simulation plugins into a shared ecs.World in
// dependency order.
package plugin

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/physim/studio/internal/core/ecs"
	"go.uber.org/zap"
)

// Plugin is a named unit contributing components, systems and entities.
// Registering a plugin with a Manager only makes it known; Register runs on
// activation.
type Plugin interface {
	Name() string
	// Dependencies names the plugins that must be active first.
	Dependencies() []string
	Register(w *ecs.World) error
	Unregister() error
	InitializeEntities(w *ecs.World) error
}

// SystemProvider is implemented by plugins that contribute systems. The
// Manager registers them into the World and removes them on deactivation.
type SystemProvider interface {
	Systems(sc *StudioContext) []ecs.System
}

// Preparer is implemented by plugins that need to do slow setup, such as
// loading a physics engine, before they can register. Prepare runs before any
// plugin of the activation pass registers and must not touch the World.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Describer carries optional metadata shown by tooling.
type Describer interface {
	Version() string
	Description() string
	Author() string
}

// ParameterSchemaProvider exposes the tunable parameters of a plugin so an
// inspector can render them.
type ParameterSchemaProvider interface {
	ParameterSchema() *jsonschema.Schema
}

// StudioContext is handed to plugins when they contribute systems.
type StudioContext struct {
	Logger *zap.Logger
	Params map[string]any
}

// Param returns the named parameter or def when it is absent or of another type.
func Param[T any](sc *StudioContext, key string, def T) T {
	if sc == nil {
		return def
	}
	v, ok := sc.Params[key].(T)
	if !ok {
		return def
	}
	return v
}

// Info describes a registered plugin.
type Info struct {
	Name         string
	Version      string
	Description  string
	Author       string
	Dependencies []string
	Active       bool
}

// Event is delivered to lifecycle listeners.
type Event struct {
	Name   string
	Plugin Plugin
}
