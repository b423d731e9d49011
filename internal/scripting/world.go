package scripting

import (
	"github.com/physim/studio/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
)

const worldTypeName = "studio.world"

// installWorldType registers the metatable backing the world handle passed to
// script callbacks. Entity ids cross into Lua as numbers.
func (e *Engine) installWorldType() {
	mt := e.vm.NewTypeMetatable(worldTypeName)
	e.vm.SetField(mt, "__index", e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"create_entity":    worldCreateEntity,
		"destroy_entity":   worldDestroyEntity,
		"has_entity":       worldHasEntity,
		"entities":         worldEntities,
		"add_component":    worldAddComponent,
		"get_component":    worldGetComponent,
		"set_component":    worldSetComponent,
		"remove_component": worldRemoveComponent,
		"has_component":    worldHasComponent,
		"query":            worldQuery,
	}))
}

// worldValue returns the Lua handle of w, creating it on first use. The
// caller holds e.mu.
func (e *Engine) worldValue(w *ecs.World) *lua.LUserData {
	if ud, ok := e.worlds[w]; ok {
		return ud
	}
	ud := e.vm.NewUserData()
	ud.Value = w
	e.vm.SetMetatable(ud, e.vm.GetTypeMetatable(worldTypeName))
	e.worlds[w] = ud
	return ud
}

func checkWorld(L *lua.LState) *ecs.World {
	ud := L.CheckUserData(1)
	if w, ok := ud.Value.(*ecs.World); ok {
		return w
	}
	L.ArgError(1, "world expected")
	return nil
}

func checkEntity(L *lua.LState, n int) ecs.EntityID {
	return ecs.EntityID(uint64(L.CheckNumber(n)))
}

func entityValue(id ecs.EntityID) lua.LNumber {
	return lua.LNumber(float64(uint64(id)))
}

func worldCreateEntity(L *lua.LState) int {
	w := checkWorld(L)
	L.Push(entityValue(w.CreateEntity()))
	return 1
}

func worldDestroyEntity(L *lua.LState) int {
	w := checkWorld(L)
	w.DestroyEntity(checkEntity(L, 2))
	return 0
}

func worldHasEntity(L *lua.LState) int {
	w := checkWorld(L)
	L.Push(lua.LBool(w.HasEntity(checkEntity(L, 2))))
	return 1
}

func worldEntities(L *lua.LState) int {
	w := checkWorld(L)
	ids := w.EntityManager().GetAllEntities()
	t := L.CreateTable(len(ids), 0)
	for _, id := range ids {
		t.Append(entityValue(id))
	}
	L.Push(t)
	return 1
}

// decodeArg builds a component of type typ from the optional table at n.
func decodeArg(L *lua.LState, w *ecs.World, typ ecs.ComponentType, n int) ecs.Component {
	ctor, ok := w.ComponentManager().Registry().GetConstructor(typ)
	if !ok {
		L.ArgError(n-1, "component type "+string(typ)+" is not registered")
		return nil
	}
	data := map[string]any{}
	if t := L.OptTable(n, nil); t != nil {
		if m, ok := toGo(t).(map[string]any); ok {
			data = m
		}
	}
	c, err := ecs.DecodeComponent(typ, ctor, data)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return nil
	}
	return c
}

func worldAddComponent(L *lua.LState) int {
	w := checkWorld(L)
	id := checkEntity(L, 2)
	typ := ecs.ComponentType(L.CheckString(3))
	c := decodeArg(L, w, typ, 4)
	if err := w.AddComponent(id, typ, c); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// set_component replaces the stored component; script-side tables are copies.
func worldSetComponent(L *lua.LState) int {
	w := checkWorld(L)
	id := checkEntity(L, 2)
	typ := ecs.ComponentType(L.CheckString(3))
	c := decodeArg(L, w, typ, 4)
	if err := w.UpdateComponent(id, typ, c); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func worldGetComponent(L *lua.LState) int {
	w := checkWorld(L)
	c, ok := w.GetComponent(checkEntity(L, 2), ecs.ComponentType(L.CheckString(3)))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	data, err := ecs.EncodeComponent(c)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(toLua(L, data))
	return 1
}

func worldRemoveComponent(L *lua.LState) int {
	w := checkWorld(L)
	w.RemoveComponent(checkEntity(L, 2), ecs.ComponentType(L.CheckString(3)))
	return 0
}

func worldHasComponent(L *lua.LState) int {
	w := checkWorld(L)
	L.Push(lua.LBool(w.HasComponent(checkEntity(L, 2), ecs.ComponentType(L.CheckString(3)))))
	return 1
}

func worldQuery(L *lua.LState) int {
	w := checkWorld(L)
	types := make([]ecs.ComponentType, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		types = append(types, ecs.ComponentType(L.CheckString(i)))
	}
	ids := w.GetEntitiesWithComponentTypes(types...)
	t := L.CreateTable(len(ids), 0)
	for _, id := range ids {
		t.Append(entityValue(id))
	}
	L.Push(t)
	return 1
}
