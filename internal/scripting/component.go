package scripting

import (
	"github.com/physim/studio/internal/core/ecs"
	"github.com/rotisserie/eris"
)

// ScriptComponent is a component kind declared by a script. Its data is a free
// form field map, mirrored from and to Lua tables.
type ScriptComponent struct {
	Tag    ecs.ComponentType
	Fields map[string]any
}

func (c *ScriptComponent) ComponentType() ecs.ComponentType { return c.Tag }

func (c *ScriptComponent) Clone() ecs.Component {
	return &ScriptComponent{Tag: c.Tag, Fields: cloneMap(c.Fields)}
}

func (c *ScriptComponent) Serialize() (map[string]any, error) {
	return cloneMap(c.Fields), nil
}

func (c *ScriptComponent) Deserialize(data map[string]any) error {
	c.Fields = cloneMap(data)
	return nil
}

// ScriptComponentClass returns the class registering tag. The optional
// constructor argument is a map[string]any of initial fields.
func ScriptComponentClass(tag ecs.ComponentType) ecs.ComponentClass {
	return ecs.ComponentClass{
		Type: tag,
		New: func(args ...any) (ecs.Component, error) {
			c := &ScriptComponent{Tag: tag, Fields: map[string]any{}}
			if len(args) == 0 {
				return c, nil
			}
			fields, ok := args[0].(map[string]any)
			if !ok {
				return nil, eris.Errorf("construct %s: want map[string]any, got %T", tag, args[0])
			}
			c.Fields = cloneMap(fields)
			return c, nil
		},
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
