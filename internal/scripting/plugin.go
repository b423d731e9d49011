package scripting

import (
	"time"

	"github.com/physim/studio/internal/core/ecs"
	"github.com/physim/studio/internal/plugin"
	"github.com/rotisserie/eris"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ScriptPlugin is a plugin.Plugin declared by a Lua script.
type ScriptPlugin struct {
	engine *Engine

	name        string
	version     string
	description string
	author      string
	deps        []string
	components  []ecs.ComponentType

	register     *lua.LFunction
	unregister   *lua.LFunction
	initEntities *lua.LFunction
	systems      []scriptSystemDef
}

type scriptSystemDef struct {
	priority int
	update   *lua.LFunction
}

var _ interface {
	plugin.Plugin
	plugin.SystemProvider
	plugin.Describer
} = (*ScriptPlugin)(nil)

func newScriptPlugin(e *Engine, t *lua.LTable) (*ScriptPlugin, error) {
	p := &ScriptPlugin{
		engine:       e,
		name:         lStr(t, "name"),
		version:      lStr(t, "version"),
		description:  lStr(t, "description"),
		author:       lStr(t, "author"),
		deps:         lStrings(t, "dependencies"),
		register:     lFunc(t, "register"),
		unregister:   lFunc(t, "unregister"),
		initEntities: lFunc(t, "initialize_entities"),
	}
	if _, ok := t.RawGetString("name").(lua.LString); !ok || p.name == "" {
		return nil, eris.New("plugin table needs a name")
	}
	for _, tag := range lStrings(t, "components") {
		if tag == "" {
			return nil, eris.Errorf("plugin %s: empty component type", p.name)
		}
		p.components = append(p.components, ecs.ComponentType(tag))
	}
	if systems, ok := t.RawGetString("systems").(*lua.LTable); ok {
		for i := 1; i <= systems.Len(); i++ {
			st, ok := systems.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, eris.Errorf("plugin %s: system %d is not a table", p.name, i)
			}
			update := lFunc(st, "update")
			if update == nil {
				return nil, eris.Errorf("plugin %s: system %d has no update function", p.name, i)
			}
			p.systems = append(p.systems, scriptSystemDef{priority: lInt(st, "priority"), update: update})
		}
	}
	return p, nil
}

func (p *ScriptPlugin) Name() string           { return p.name }
func (p *ScriptPlugin) Dependencies() []string { return p.deps }
func (p *ScriptPlugin) Version() string        { return p.version }
func (p *ScriptPlugin) Description() string    { return p.description }
func (p *ScriptPlugin) Author() string         { return p.author }

// ComponentTypes lists the component kinds the script declares.
func (p *ScriptPlugin) ComponentTypes() []ecs.ComponentType { return p.components }

// Register declares the script's component types on w, keeping the stores of
// types that are already known, then runs the script's register callback.
func (p *ScriptPlugin) Register(w *ecs.World) error {
	for _, typ := range p.components {
		if w.ComponentManager().IsRegistered(typ) {
			continue
		}
		if err := w.RegisterComponent(ScriptComponentClass(typ)); err != nil {
			return eris.Wrapf(err, "plugin %s", p.name)
		}
	}
	return p.callWorld(p.register, w, "register")
}

func (p *ScriptPlugin) InitializeEntities(w *ecs.World) error {
	return p.callWorld(p.initEntities, w, "initialize_entities")
}

func (p *ScriptPlugin) Unregister() error {
	if p.unregister == nil {
		return nil
	}
	p.engine.mu.Lock()
	defer p.engine.mu.Unlock()
	if err := p.engine.call(p.unregister); err != nil {
		return eris.Wrapf(err, "plugin %s: unregister", p.name)
	}
	return nil
}

func (p *ScriptPlugin) callWorld(fn *lua.LFunction, w *ecs.World, what string) error {
	if fn == nil {
		return nil
	}
	p.engine.mu.Lock()
	defer p.engine.mu.Unlock()
	if err := p.engine.call(fn, p.engine.worldValue(w)); err != nil {
		return eris.Wrapf(err, "plugin %s: %s", p.name, what)
	}
	return nil
}

// Systems returns one system per entry of the script's systems table. Each
// update receives the studio parameters as a table after dt.
func (p *ScriptPlugin) Systems(sc *plugin.StudioContext) []ecs.System {
	var raw map[string]any
	if sc != nil {
		raw = sc.Params
	}
	p.engine.mu.Lock()
	params := toLua(p.engine.vm, raw)
	p.engine.mu.Unlock()

	out := make([]ecs.System, 0, len(p.systems))
	for _, def := range p.systems {
		out = append(out, &scriptSystem{plugin: p, priority: def.priority, update: def.update, params: params})
	}
	return out
}

// scriptSystem runs a Lua update function every tick with dt in seconds.
type scriptSystem struct {
	plugin   *ScriptPlugin
	priority int
	update   *lua.LFunction
	params   lua.LValue
}

func (s *scriptSystem) Priority() int { return s.priority }

// Update logs script errors and keeps the tick going, like the other systems
// sharing the World.
func (s *scriptSystem) Update(w *ecs.World, dt time.Duration) {
	e := s.plugin.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.call(s.update, e.worldValue(w), lua.LNumber(dt.Seconds()), s.params); err != nil {
		e.log.Error("lua system update error", zap.String("plugin", s.plugin.name), zap.Error(err))
	}
}
