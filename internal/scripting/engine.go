// Package scripting loads simulation plugins written in Lua.
//
// A script declares its plugin by calling register_plugin with a table:
//
//	register_plugin {
//	  name = "spinner",
//	  dependencies = { "core" },
//	  components = { "Spin" },
//	  initialize_entities = function(world) ... end,
//	  systems = { { priority = 50, update = function(world, dt) ... end } },
//	}
//
// Every script plugin shares the Engine's single VM.
package scripting

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/physim/studio/internal/core/ecs"
	"github.com/rotisserie/eris"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// APIVersion is exposed to scripts as the API_VERSION global.
const APIVersion = 1

// Engine wraps a single gopher-lua VM. Calls into the VM are serialized, so
// plugins may be activated from another goroutine than the one ticking the World.
type Engine struct {
	mu      sync.Mutex
	vm      *lua.LState
	log     *zap.Logger
	plugins []*ScriptPlugin
	worlds  map[*ecs.World]*lua.LUserData
}

// NewEngine creates a Lua engine with the studio API installed.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	e := &Engine{
		vm:     vm,
		log:    log,
		worlds: make(map[*ecs.World]*lua.LUserData),
	}

	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))
	vm.SetGlobal("register_plugin", vm.NewFunction(e.luaRegisterPlugin))
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	e.installWorldType()
	return e
}

// LoadDir loads all .lua files in dir in name order. A missing dir is not an error.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "read scripts dir %s", dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile runs one script.
func (e *Engine) LoadFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := len(e.plugins)
	if err := e.vm.DoFile(path); err != nil {
		return eris.Wrapf(err, "load %s", path)
	}
	e.log.Debug("loaded lua script", zap.String("file", path), zap.Int("plugins", len(e.plugins)-before))
	return nil
}

// Plugins returns the plugins declared by the loaded scripts, in load order.
func (e *Engine) Plugins() []*ScriptPlugin {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*ScriptPlugin, len(e.plugins))
	copy(out, e.plugins)
	return out
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

// call runs fn in protected mode. The caller holds e.mu.
func (e *Engine) call(fn *lua.LFunction, args ...lua.LValue) error {
	return e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...)
}

// --- Lua globals ---

func (e *Engine) luaRegisterPlugin(L *lua.LState) int {
	t := L.CheckTable(1)
	p, err := newScriptPlugin(e, t)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	for _, existing := range e.plugins {
		if existing.name == p.name {
			L.ArgError(1, "plugin "+p.name+" declared twice")
			return 0
		}
	}
	e.plugins = append(e.plugins, p)
	return 0
}

func (e *Engine) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	var fields []zap.Field
	if t := L.OptTable(2, nil); t != nil {
		t.ForEach(func(k, v lua.LValue) {
			fields = append(fields, zap.Any(lua.LVAsString(k), toGo(v)))
		})
	}
	e.log.Info(msg, fields...)
	return 0
}

// --- Lua helpers ---

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// lFunc reads an optional function field from a Lua table.
func lFunc(t *lua.LTable, key string) *lua.LFunction {
	fn, _ := t.RawGetString(key).(*lua.LFunction)
	return fn
}

// lStrings reads an array of strings from a Lua table.
func lStrings(t *lua.LTable, key string) []string {
	arr, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}
	out := make([]string, 0, arr.Len())
	for i := 1; i <= arr.Len(); i++ {
		out = append(out, lua.LVAsString(arr.RawGetInt(i)))
	}
	return out
}
