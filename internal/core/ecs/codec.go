package ecs

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// EncodeComponent returns the persisted form of c: its own Serialize result, or
// a structural copy of its exported fields.
func EncodeComponent(c Component) (map[string]any, error) {
	if s, ok := c.(Serializer); ok {
		return s.Serialize()
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrapf(err, "encode %s", c.ComponentType())
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, eris.Wrapf(err, "encode %s", c.ComponentType())
	}
	return data, nil
}

// DecodeComponent builds a typ instance through ctor and fills it from data.
func DecodeComponent(typ ComponentType, ctor Constructor, data map[string]any) (Component, error) {
	c, err := ctor()
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s", typ)
	}
	if d, ok := c.(Deserializer); ok {
		if err := d.Deserialize(data); err != nil {
			return nil, eris.Wrapf(err, "decode %s", typ)
		}
		return c, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s", typ)
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, eris.Wrapf(err, "decode %s", typ)
	}
	return c, nil
}
