package plugin

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/physim/studio/internal/core/ecs"
	"github.com/physim/studio/internal/core/event"
	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Manager knows every registered plugin and drives activation into its World.
//
// Activation builds the dependency graph of the requested plugin up front,
// rejects missing names and cycles, prepares every plugin of the pass
// concurrently, then registers them dependency-first. A failure rolls back the
// plugins activated by that pass in reverse order.
//
// Deactivation is not cascaded: plugins depending on a deactivated plugin stay
// active.
type Manager struct {
	world *ecs.World
	log   *zap.Logger

	mu      sync.Mutex // protects the fields below
	plugins map[string]Plugin
	names   []string
	active  []string
	systems map[string][]ecs.System

	// activation serializes passes over the World; inflight coalesces
	// concurrent requests for the same name onto one pass.
	activation sync.Mutex
	inflight   singleflight.Group

	registered  event.Listeners[Event]
	requested   event.Listeners[Event]
	activated   event.Listeners[Event]
	deactivated event.Listeners[Event]
}

func NewManager(world *ecs.World, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		world:   world,
		log:     log,
		plugins: make(map[string]Plugin, 16),
		systems: make(map[string][]ecs.System, 16),
	}
}

func (m *Manager) World() *ecs.World { return m.world }

// RegisterPlugin makes p known under p.Name(). It does not call p.Register.
func (m *Manager) RegisterPlugin(p Plugin) error {
	name := p.Name()
	if name == "" {
		return eris.Wrapf(ErrInvalidName, "register plugin %T", p)
	}
	m.mu.Lock()
	if _, ok := m.plugins[name]; ok {
		m.mu.Unlock()
		return eris.Wrapf(ErrDuplicatePlugin, "register plugin %q", name)
	}
	m.plugins[name] = p
	m.names = append(m.names, name)
	m.mu.Unlock()

	m.log.Debug("plugin registered", zap.String("plugin", name), zap.Strings("dependencies", p.Dependencies()))
	m.registered.Emit(Event{Name: name, Plugin: p})
	return nil
}

// ActivatePlugin activates name and, first, every dependency it needs. It is a
// no-op for an active plugin. Concurrent calls for the same name share one
// activation pass and its result; the pass runs with the context and
// StudioContext of the caller that started it. A caller whose own context is
// still live when a shared pass is cancelled under it runs a pass of its own.
func (m *Manager) ActivatePlugin(ctx context.Context, name string, sc *StudioContext) error {
	shared, err := m.activateShared(ctx, name, sc)
	if shared && ctx.Err() == nil && isCancellation(err) {
		m.log.Debug("shared activation cancelled, retrying", zap.String("plugin", name))
		_, err = m.activateShared(ctx, name, sc)
	}
	return err
}

func (m *Manager) activateShared(ctx context.Context, name string, sc *StudioContext) (bool, error) {
	_, err, shared := m.inflight.Do(name, func() (any, error) {
		return nil, m.activate(ctx, name, sc)
	})
	return shared, err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (m *Manager) activate(ctx context.Context, name string, sc *StudioContext) error {
	m.activation.Lock()
	defer m.activation.Unlock()

	order, err := m.resolve(name)
	if err != nil {
		return err
	}
	if len(order) == 0 {
		return nil
	}
	if err := m.prepare(ctx, order); err != nil {
		return err
	}

	done := make([]string, 0, len(order))
	for _, n := range order {
		if err := ctx.Err(); err != nil {
			return multierr.Append(eris.Wrapf(err, "activate plugin %q", n), m.rollback(done))
		}
		if err := m.activateOne(n, sc); err != nil {
			m.log.Error("plugin activation failed",
				zap.String("plugin", n), zap.String("requested", name), zap.Error(err))
			return multierr.Append(err, m.rollback(done))
		}
		done = append(done, n)
	}
	return nil
}

// resolve walks the dependency graph of root depth-first and returns the
// inactive plugins it reaches, dependencies before dependents. Every visit is
// announced to OnPluginRequested listeners, root first.
func (m *Manager) resolve(root string) ([]string, error) {
	const (
		visiting = 1
		visited  = 2
	)
	state := make(map[string]int)
	var order, path []string

	var visit func(name string) error
	visit = func(name string) error {
		m.mu.Lock()
		p, known := m.plugins[name]
		isActive := slices.Contains(m.active, name)
		m.mu.Unlock()

		m.requested.Emit(Event{Name: name, Plugin: p})
		if isActive {
			return nil
		}
		switch state[name] {
		case visited:
			return nil
		case visiting:
			start := slices.Index(path, name)
			cycle := append(slices.Clone(path[start:]), name)
			return &CycleError{Path: cycle}
		}
		if !known {
			return &NotFoundError{Name: name}
		}

		state[name] = visiting
		path = append(path, name)
		for _, dep := range p.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = visited
		order = append(order, name)
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return order, nil
}

// prepare runs Prepare of every plugin in order concurrently.
func (m *Manager) prepare(ctx context.Context, order []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range order {
		p, _ := m.GetPlugin(name)
		prep, ok := p.(Preparer)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := prep.Prepare(gctx); err != nil {
				return eris.Wrapf(err, "prepare plugin %q", name)
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) activateOne(name string, sc *StudioContext) error {
	p, _ := m.GetPlugin(name)
	if err := p.Register(m.world); err != nil {
		return eris.Wrapf(err, "register plugin %q", name)
	}
	if err := p.InitializeEntities(m.world); err != nil {
		if uerr := p.Unregister(); uerr != nil {
			err = multierr.Append(err, uerr)
		}
		return eris.Wrapf(err, "initialize entities of plugin %q", name)
	}

	var systems []ecs.System
	if sp, ok := p.(SystemProvider); ok {
		for _, s := range sp.Systems(sc) {
			if err := m.world.RegisterSystem(s); err != nil {
				for _, added := range systems {
					m.world.RemoveSystem(added)
				}
				if uerr := p.Unregister(); uerr != nil {
					err = multierr.Append(err, uerr)
				}
				return eris.Wrapf(err, "systems of plugin %q", name)
			}
			systems = append(systems, s)
		}
	}

	m.mu.Lock()
	m.active = append(m.active, name)
	m.systems[name] = systems
	m.mu.Unlock()

	m.log.Info("plugin activated", zap.String("plugin", name), zap.Int("systems", len(systems)))
	m.activated.Emit(Event{Name: name, Plugin: p})
	return nil
}

// rollback deactivates names in reverse order.
func (m *Manager) rollback(names []string) error {
	var errs error
	for i := len(names) - 1; i >= 0; i-- {
		m.log.Warn("rolling back plugin", zap.String("plugin", names[i]))
		errs = multierr.Append(errs, m.deactivate(names[i]))
	}
	return errs
}

// DeactivatePlugin removes the systems registered for name, calls its
// Unregister and marks it inactive. Plugins that depend on name are left
// active. Deactivating an inactive plugin is a no-op.
func (m *Manager) DeactivatePlugin(name string) error {
	m.activation.Lock()
	defer m.activation.Unlock()

	if _, ok := m.GetPlugin(name); !ok {
		return &NotFoundError{Name: name}
	}
	if !m.IsActive(name) {
		return nil
	}
	return m.deactivate(name)
}

func (m *Manager) deactivate(name string) error {
	m.mu.Lock()
	p := m.plugins[name]
	systems := m.systems[name]
	delete(m.systems, name)
	if i := slices.Index(m.active, name); i >= 0 {
		m.active = slices.Delete(m.active, i, i+1)
	}
	m.mu.Unlock()

	for _, s := range systems {
		m.world.RemoveSystem(s)
	}
	err := p.Unregister()

	m.log.Info("plugin deactivated", zap.String("plugin", name))
	m.deactivated.Emit(Event{Name: name, Plugin: p})
	if err != nil {
		return eris.Wrapf(err, "unregister plugin %q", name)
	}
	return nil
}

// GetAvailablePluginNames lists registered plugins in registration order.
func (m *Manager) GetAvailablePluginNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.names)
}

// GetActivePluginNames lists active plugins in activation order.
func (m *Manager) GetActivePluginNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.active)
}

func (m *Manager) GetPlugin(name string) (Plugin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plugins[name]
	return p, ok
}

func (m *Manager) IsActive(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.active, name)
}

// Describe returns the metadata of a registered plugin.
func (m *Manager) Describe(name string) (Info, bool) {
	p, ok := m.GetPlugin(name)
	if !ok {
		return Info{}, false
	}
	info := Info{
		Name:         name,
		Dependencies: slices.Clone(p.Dependencies()),
		Active:       m.IsActive(name),
	}
	if d, ok := p.(Describer); ok {
		info.Version = d.Version()
		info.Description = d.Description()
		info.Author = d.Author()
	}
	return info, true
}

// OnPluginRegistered subscribes fn to RegisterPlugin calls.
func (m *Manager) OnPluginRegistered(fn func(Event)) (unsubscribe func()) {
	return m.registered.Subscribe(fn)
}

// OnPluginRequested subscribes fn to activation requests. A request is
// announced for the plugin asked for and for every dependency visited while
// resolving it, in visiting order: a chain D -> C -> B -> A is announced as
// D, C, B, A while registration itself runs A, B, C, D. Listeners must not
// activate or deactivate plugins.
func (m *Manager) OnPluginRequested(fn func(Event)) (unsubscribe func()) {
	return m.requested.Subscribe(fn)
}

func (m *Manager) OnPluginActivated(fn func(Event)) (unsubscribe func()) {
	return m.activated.Subscribe(fn)
}

func (m *Manager) OnPluginDeactivated(fn func(Event)) (unsubscribe func()) {
	return m.deactivated.Subscribe(fn)
}
