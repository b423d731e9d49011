package data

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Plugin kinds a catalog entry can name.
const (
	KindBuiltin = "builtin"
	KindScript  = "script"
)

// PluginEntry configures one plugin known to the studio.
type PluginEntry struct {
	Name    string         `yaml:"name"`
	Kind    string         `yaml:"kind"`   // "builtin" or "script"
	Script  string         `yaml:"script"` // relative to the catalog file
	Enabled bool           `yaml:"enabled"`
	Params  map[string]any `yaml:"params"`
}

type catalogFile struct {
	Plugins []PluginEntry `yaml:"plugins"`
}

// PluginCatalog is the parsed plugins catalog, in file order.
type PluginCatalog struct {
	entries []*PluginEntry
	byName  map[string]*PluginEntry
}

// LoadPluginCatalog loads a plugins.yaml. Script paths are resolved against
// the catalog's directory.
func LoadPluginCatalog(path string) (*PluginCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read plugin catalog")
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrap(err, "parse plugin catalog")
	}
	c := &PluginCatalog{
		entries: make([]*PluginEntry, 0, len(f.Plugins)),
		byName:  make(map[string]*PluginEntry, len(f.Plugins)),
	}
	dir := filepath.Dir(path)
	for i := range f.Plugins {
		e := &f.Plugins[i]
		if e.Name == "" {
			return nil, eris.Errorf("plugin catalog entry %d has no name", i)
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, eris.Errorf("plugin catalog lists %q twice", e.Name)
		}
		switch e.Kind {
		case "":
			e.Kind = KindBuiltin
		case KindBuiltin:
		case KindScript:
			if e.Script == "" {
				return nil, eris.Errorf("script plugin %q has no script", e.Name)
			}
			if !filepath.IsAbs(e.Script) {
				e.Script = filepath.Join(dir, e.Script)
			}
		default:
			return nil, eris.Errorf("plugin %q: unknown kind %q", e.Name, e.Kind)
		}
		c.entries = append(c.entries, e)
		c.byName[e.Name] = e
	}
	return c, nil
}

// Get returns the entry for name, or nil if none.
func (c *PluginCatalog) Get(name string) *PluginEntry {
	return c.byName[name]
}

// Entries returns every entry in file order.
func (c *PluginCatalog) Entries() []*PluginEntry {
	return c.entries
}

// Enabled returns the names of entries marked enabled, in file order.
func (c *PluginCatalog) Enabled() []string {
	var out []string
	for _, e := range c.entries {
		if e.Enabled {
			out = append(out, e.Name)
		}
	}
	return out
}

// Scripts returns the script paths of script entries, in file order.
func (c *PluginCatalog) Scripts() []string {
	var out []string
	for _, e := range c.entries {
		if e.Kind == KindScript {
			out = append(out, e.Script)
		}
	}
	return out
}

// Params returns the params of name, or nil.
func (c *PluginCatalog) Params(name string) map[string]any {
	if e := c.byName[name]; e != nil {
		return e.Params
	}
	return nil
}

// Count returns the total number of entries loaded.
func (c *PluginCatalog) Count() int {
	return len(c.entries)
}
