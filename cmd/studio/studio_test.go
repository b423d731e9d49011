package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/physim/studio/internal/config"
	"github.com/physim/studio/internal/data"
	"github.com/physim/studio/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStudio(t *testing.T, edit func(cfg *config.Config)) *studio {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Plugins.ScriptsDir = filepath.Join(t.TempDir(), "scripts")
	if edit != nil {
		edit(cfg)
	}
	s, err := newStudio(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.close)
	return s
}

func TestSaveOnExitDoesNothingUnlessAsked(t *testing.T) {
	s := newTestStudio(t, nil)
	require.NoError(t, s.activate(context.Background()))

	assert.NoError(t, s.saveOnExit(context.Background()))
}

func TestSaveOnExitWritesSceneFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final.json")
	s := newTestStudio(t, func(cfg *config.Config) {
		cfg.Plugins.Enabled = []string{"rigidbody"}
		cfg.Plugins.Params = map[string]map[string]any{"rigidbody": {"spawn": 2}}
		cfg.Scene.Save = path
	})
	require.NoError(t, s.activate(context.Background()))

	require.NoError(t, s.saveOnExit(context.Background()))

	doc, err := scene.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Entities, 2)
}

func TestSaveSceneStoreNeedsDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.json")
	s := newTestStudio(t, nil)

	_, err := s.saveScene(context.Background(), path, true)

	assert.ErrorIs(t, err, errNoDatabase)
	assert.NoFileExists(t, path)
}

func TestPluginKindsFollowCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spin.lua"),
		[]byte(`register_plugin { name = "spinner", dependencies = { "core" } }`), 0o644))
	catalog := filepath.Join(dir, "plugins.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`
plugins:
  - name: core
  - name: spinner
    kind: script
    script: spin.lua
    enabled: true
  - name: ghost
`), 0o644))

	s := newTestStudio(t, func(cfg *config.Config) { cfg.Plugins.Catalog = catalog })

	assert.Equal(t, data.KindBuiltin, s.kind("core"))
	assert.Equal(t, data.KindBuiltin, s.kind("cloth"))
	assert.Equal(t, data.KindScript, s.kind("spinner"))
	assert.Equal(t, []string{"core", "spinner"}, s.enabled())

	unknown := s.unknownCatalogEntries()
	require.Len(t, unknown, 1)
	assert.Equal(t, "ghost", unknown[0].Name)
}
