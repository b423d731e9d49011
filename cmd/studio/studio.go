package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/physim/studio/internal/config"
	"github.com/physim/studio/internal/core/ecs"
	"github.com/physim/studio/internal/data"
	"github.com/physim/studio/internal/persist"
	"github.com/physim/studio/internal/plugin"
	"github.com/physim/studio/internal/scene"
	"github.com/physim/studio/internal/scripting"
	"github.com/physim/studio/internal/simulation"
	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var errNoDatabase = eris.New("scene storage needs database.dsn")

// studio is everything a command needs: the World, its plugins and the
// optional scene store.
type studio struct {
	cfg     *config.Config
	log     *zap.Logger
	world   *ecs.World
	plugins *plugin.Manager
	scripts *scripting.Engine
	catalog *data.PluginCatalog
	db      *persist.DB
	scenes  *persist.SceneRepo
}

func newStudio(ctx context.Context, cfg *config.Config, log *zap.Logger) (*studio, error) {
	s := &studio{
		cfg:     cfg,
		log:     log,
		world:   ecs.NewWorld(ecs.WithLogger(log.Named("ecs"))),
		scripts: scripting.NewEngine(log.Named("lua")),
	}
	s.plugins = plugin.NewManager(s.world, log.Named("plugin"))

	if cfg.Plugins.Catalog != "" {
		catalog, err := data.LoadPluginCatalog(cfg.Plugins.Catalog)
		if err != nil {
			s.close()
			return nil, err
		}
		s.catalog = catalog
		log.Debug("plugin catalog loaded",
			zap.String("path", cfg.Plugins.Catalog), zap.Int("entries", catalog.Count()))
	}

	if err := s.registerBuiltins(); err != nil {
		s.close()
		return nil, err
	}
	if err := s.registerScripts(); err != nil {
		s.close()
		return nil, err
	}

	if cfg.Database.DSN != "" {
		db, err := persist.NewDB(ctx, cfg.Database, log.Named("db"))
		if err != nil {
			s.close()
			return nil, eris.Wrap(err, "database")
		}
		s.db = db
		if _, err := persist.RunMigrations(ctx, db); err != nil {
			s.close()
			return nil, eris.Wrap(err, "migrations")
		}
		s.scenes = persist.NewSceneRepo(db)
	}
	return s, nil
}

func (s *studio) close() {
	if s.db != nil {
		s.db.Close()
	}
	s.scripts.Close()
}

// params merges the catalog params of name with the config params, the config
// winning on conflicts.
func (s *studio) params(name string) map[string]any {
	out := map[string]any{}
	if s.catalog != nil {
		for k, v := range s.catalog.Params(name) {
			out[k] = v
		}
	}
	for k, v := range s.cfg.PluginParams(name) {
		out[k] = v
	}
	return out
}

// decodeParams overlays the configured params of name onto into.
func (s *studio) decodeParams(name string, into any) error {
	p := s.params(name)
	if len(p) == 0 {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return eris.Wrapf(err, "plugin %s params", name)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return eris.Wrapf(err, "plugin %s params", name)
	}
	return nil
}

func (s *studio) registerBuiltins() error {
	core := simulation.CoreParams{}
	rigid := simulation.DefaultRigidBodyParams()
	cloth := simulation.DefaultClothParams()
	err := multierr.Combine(
		s.decodeParams("core", &core),
		s.decodeParams("rigidbody", &rigid),
		s.decodeParams("cloth", &cloth),
	)
	if err != nil {
		return err
	}
	return multierr.Combine(
		s.plugins.RegisterPlugin(simulation.NewCorePlugin(core)),
		s.plugins.RegisterPlugin(simulation.NewRigidBodyPlugin(rigid)),
		s.plugins.RegisterPlugin(simulation.NewClothPlugin(cloth)),
	)
}

// registerScripts loads the scripts dir and every script listed in the
// catalog, then registers the plugins they declare.
func (s *studio) registerScripts() error {
	if err := s.scripts.LoadDir(s.cfg.Plugins.ScriptsDir); err != nil {
		return err
	}
	if s.catalog != nil {
		loaded := map[string]bool{}
		if entries, err := os.ReadDir(s.cfg.Plugins.ScriptsDir); err == nil {
			for _, e := range entries {
				loaded[filepath.Clean(filepath.Join(s.cfg.Plugins.ScriptsDir, e.Name()))] = true
			}
		}
		for _, path := range s.catalog.Scripts() {
			if loaded[filepath.Clean(path)] {
				continue
			}
			if err := s.scripts.LoadFile(path); err != nil {
				return err
			}
		}
	}
	for _, p := range s.scripts.Plugins() {
		if err := s.plugins.RegisterPlugin(p); err != nil {
			return err
		}
	}
	return nil
}

// kind reports where a registered plugin comes from.
func (s *studio) kind(name string) string {
	if s.catalog != nil {
		if e := s.catalog.Get(name); e != nil {
			return e.Kind
		}
	}
	if p, ok := s.plugins.GetPlugin(name); ok {
		if _, script := p.(*scripting.ScriptPlugin); script {
			return data.KindScript
		}
	}
	return data.KindBuiltin
}

// unknownCatalogEntries lists catalog entries no registered plugin answers to.
func (s *studio) unknownCatalogEntries() []*data.PluginEntry {
	if s.catalog == nil {
		return nil
	}
	var out []*data.PluginEntry
	for _, e := range s.catalog.Entries() {
		if _, ok := s.plugins.GetPlugin(e.Name); !ok {
			out = append(out, e)
		}
	}
	return out
}

// enabled lists the plugins to activate: config first, then the catalog.
func (s *studio) enabled() []string {
	out := slices.Clone(s.cfg.Plugins.Enabled)
	if s.catalog != nil {
		for _, name := range s.catalog.Enabled() {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// activate activates every enabled plugin within the configured timeout.
func (s *studio) activate(ctx context.Context) error {
	if s.cfg.Plugins.ActivationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Plugins.ActivationTimeout)
		defer cancel()
	}
	for _, name := range s.enabled() {
		sc := &plugin.StudioContext{
			Logger: s.log.Named(name),
			Params: s.params(name),
		}
		if err := s.plugins.ActivatePlugin(ctx, name, sc); err != nil {
			return err
		}
	}
	return nil
}

// loadScene restores src into the World. src is a scene file, or the id of a
// stored scene when a database is configured.
func (s *studio) loadScene(ctx context.Context, src string) error {
	var doc *scene.Document
	if id, err := uuid.Parse(src); err == nil && s.scenes != nil {
		doc, err = s.scenes.Load(ctx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return eris.Errorf("scene %s not found", id)
		}
	} else {
		doc, err = scene.LoadFile(src)
		if err != nil {
			return err
		}
	}
	if err := scene.Restore(s.world, doc); err != nil {
		return eris.Wrapf(err, "restore %s", src)
	}
	s.log.Info("scene loaded", zap.String("source", src), zap.Int("entities", len(doc.Entities)))
	return nil
}

// saveScene snapshots the World to dst when dst is set and, when store is set,
// into the database too.
func (s *studio) saveScene(ctx context.Context, dst string, store bool) (*scene.Document, error) {
	if store && s.scenes == nil {
		return nil, errNoDatabase
	}
	doc, err := scene.Snapshot(s.world)
	if err != nil {
		return nil, err
	}
	if dst != "" {
		if err := scene.SaveFile(dst, doc); err != nil {
			return nil, err
		}
		s.log.Info("scene saved", zap.String("path", dst), zap.Int("entities", len(doc.Entities)))
	}
	if store {
		row, err := s.scenes.Save(ctx, s.cfg.Studio.Name, doc)
		if err != nil {
			return nil, err
		}
		s.log.Info("scene stored", zap.Stringer("id", row.ID), zap.String("digest", row.Digest))
	}
	return doc, nil
}

// saveOnExit writes the scene the config asks for when the loop stops. It does
// nothing when neither a file nor storage was requested.
func (s *studio) saveOnExit(ctx context.Context) error {
	if s.cfg.Scene.Save == "" && !s.cfg.Scene.Store {
		return nil
	}
	_, err := s.saveScene(ctx, s.cfg.Scene.Save, s.cfg.Scene.Store)
	return err
}
