package plugin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/physim/studio/internal/core/ecs"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	name string
	deps []string

	registerErr   error
	initErr       error
	unregisterErr error
	prepareErr    error
	prepareFn     func(ctx context.Context, call int32) error
	systems       []ecs.System

	registers   atomic.Int32
	unregisters atomic.Int32
	prepares    atomic.Int32

	// sequence, when set, receives "register:<name>" and "unregister:<name>".
	sequence *[]string
}

func (p *fakePlugin) Name() string           { return p.name }
func (p *fakePlugin) Dependencies() []string { return p.deps }

func (p *fakePlugin) Register(*ecs.World) error {
	p.registers.Add(1)
	if p.sequence != nil {
		*p.sequence = append(*p.sequence, "register:"+p.name)
	}
	return p.registerErr
}

func (p *fakePlugin) Unregister() error {
	p.unregisters.Add(1)
	if p.sequence != nil {
		*p.sequence = append(*p.sequence, "unregister:"+p.name)
	}
	return p.unregisterErr
}

func (p *fakePlugin) InitializeEntities(*ecs.World) error { return p.initErr }

func (p *fakePlugin) Systems(*StudioContext) []ecs.System { return p.systems }

func (p *fakePlugin) Prepare(ctx context.Context) error {
	call := p.prepares.Add(1)
	if p.prepareFn != nil {
		return p.prepareFn(ctx, call)
	}
	return p.prepareErr
}

func newTestManager(t *testing.T, plugins ...*fakePlugin) *Manager {
	t.Helper()
	m := NewManager(ecs.NewWorld(), nil)
	for _, p := range plugins {
		require.NoError(t, m.RegisterPlugin(p))
	}
	return m
}

func TestActivateChainRequestsRootFirstAndRegistersDependenciesFirst(t *testing.T) {
	var seq []string
	a := &fakePlugin{name: "A", sequence: &seq}
	b := &fakePlugin{name: "B", deps: []string{"A"}, sequence: &seq}
	c := &fakePlugin{name: "C", deps: []string{"B"}, sequence: &seq}
	d := &fakePlugin{name: "D", deps: []string{"C"}, sequence: &seq}
	m := newTestManager(t, a, b, c, d)

	var requested []string
	m.OnPluginRequested(func(ev Event) { requested = append(requested, ev.Name) })

	require.NoError(t, m.ActivatePlugin(context.Background(), "D", nil))

	assert.Equal(t, []string{"D", "C", "B", "A"}, requested)
	assert.Equal(t, []string{"register:A", "register:B", "register:C", "register:D"}, seq)
	assert.Equal(t, []string{"A", "B", "C", "D"}, m.GetActivePluginNames())
	for _, name := range []string{"A", "B", "C", "D"} {
		assert.True(t, m.IsActive(name), name)
	}
}

func TestActivateMissingDependencyMessage(t *testing.T) {
	b := &fakePlugin{name: "B", deps: []string{"A"}}
	m := newTestManager(t, b)

	err := m.ActivatePlugin(context.Background(), "B", nil)

	require.Error(t, err)
	assert.Equal(t, `Plugin "A" not found. Make sure it is registered.`, err.Error())
	assert.True(t, errors.Is(err, ErrPluginNotFound))
	assert.Zero(t, b.registers.Load())
	assert.Empty(t, m.GetActivePluginNames())
}

func TestActivateUnknownPlugin(t *testing.T) {
	m := newTestManager(t)

	err := m.ActivatePlugin(context.Background(), "ghost", nil)

	assert.EqualError(t, err, `Plugin "ghost" not found. Make sure it is registered.`)
}

func TestDeactivateUnregistersOnce(t *testing.T) {
	a := &fakePlugin{name: "A"}
	m := newTestManager(t, a)

	require.NoError(t, m.ActivatePlugin(context.Background(), "A", nil))
	require.NoError(t, m.DeactivatePlugin("A"))

	assert.EqualValues(t, 1, a.unregisters.Load())
	assert.NotContains(t, m.GetActivePluginNames(), "A")
	assert.False(t, m.IsActive("A"))
}

func TestDeactivateInactiveIsNoop(t *testing.T) {
	a := &fakePlugin{name: "A"}
	m := newTestManager(t, a)

	require.NoError(t, m.DeactivatePlugin("A"))
	assert.Zero(t, a.unregisters.Load())
}

func TestDeactivateUnknownPlugin(t *testing.T) {
	m := newTestManager(t)

	err := m.DeactivatePlugin("ghost")
	assert.True(t, errors.Is(err, ErrPluginNotFound))
}

func TestDeactivateKeepsDependentsActive(t *testing.T) {
	a := &fakePlugin{name: "A"}
	b := &fakePlugin{name: "B", deps: []string{"A"}}
	m := newTestManager(t, a, b)
	require.NoError(t, m.ActivatePlugin(context.Background(), "B", nil))

	require.NoError(t, m.DeactivatePlugin("A"))

	assert.Equal(t, []string{"B"}, m.GetActivePluginNames())
	assert.Zero(t, b.unregisters.Load())
}

func TestDeactivateMarksInactiveWhenUnregisterFails(t *testing.T) {
	a := &fakePlugin{name: "A", unregisterErr: eris.New("boom")}
	m := newTestManager(t, a)
	require.NoError(t, m.ActivatePlugin(context.Background(), "A", nil))

	err := m.DeactivatePlugin("A")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, m.IsActive("A"))
}

func TestActivateTwiceRegistersOnce(t *testing.T) {
	a := &fakePlugin{name: "A"}
	m := newTestManager(t, a)

	require.NoError(t, m.ActivatePlugin(context.Background(), "A", nil))
	require.NoError(t, m.ActivatePlugin(context.Background(), "A", nil))

	assert.EqualValues(t, 1, a.registers.Load())
	assert.Equal(t, []string{"A"}, m.GetActivePluginNames())
}

func TestActivateSkipsActiveDependencies(t *testing.T) {
	a := &fakePlugin{name: "A"}
	b := &fakePlugin{name: "B", deps: []string{"A"}}
	c := &fakePlugin{name: "C", deps: []string{"A"}}
	m := newTestManager(t, a, b, c)

	require.NoError(t, m.ActivatePlugin(context.Background(), "B", nil))
	require.NoError(t, m.ActivatePlugin(context.Background(), "C", nil))

	assert.EqualValues(t, 1, a.registers.Load())
	assert.Equal(t, []string{"A", "B", "C"}, m.GetActivePluginNames())
}

func TestActivateDiamondRegistersSharedDependencyOnce(t *testing.T) {
	base := &fakePlugin{name: "base"}
	left := &fakePlugin{name: "left", deps: []string{"base"}}
	right := &fakePlugin{name: "right", deps: []string{"base"}}
	top := &fakePlugin{name: "top", deps: []string{"left", "right"}}
	m := newTestManager(t, base, left, right, top)

	require.NoError(t, m.ActivatePlugin(context.Background(), "top", nil))

	assert.EqualValues(t, 1, base.registers.Load())
	assert.Equal(t, []string{"base", "left", "right", "top"}, m.GetActivePluginNames())
}

func TestActivateRejectsCycle(t *testing.T) {
	a := &fakePlugin{name: "A", deps: []string{"C"}}
	b := &fakePlugin{name: "B", deps: []string{"A"}}
	c := &fakePlugin{name: "C", deps: []string{"B"}}
	m := newTestManager(t, a, b, c)

	err := m.ActivatePlugin(context.Background(), "A", nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyCycle))
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"A", "C", "B", "A"}, cycle.Path)
	assert.Zero(t, a.registers.Load()+b.registers.Load()+c.registers.Load())
}

func TestActivateRollsBackOnFailure(t *testing.T) {
	var seq []string
	a := &fakePlugin{name: "A", sequence: &seq}
	b := &fakePlugin{name: "B", deps: []string{"A"}, sequence: &seq}
	c := &fakePlugin{name: "C", deps: []string{"B"}, sequence: &seq, registerErr: eris.New("no engine")}
	m := newTestManager(t, a, b, c)

	err := m.ActivatePlugin(context.Background(), "C", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no engine")
	assert.Empty(t, m.GetActivePluginNames())
	assert.Equal(t, []string{
		"register:A", "register:B", "register:C",
		"unregister:B", "unregister:A",
	}, seq)
}

func TestActivateUnregistersWhenEntitiesFail(t *testing.T) {
	a := &fakePlugin{name: "A", initErr: eris.New("bad scene")}
	m := newTestManager(t, a)

	err := m.ActivatePlugin(context.Background(), "A", nil)

	require.Error(t, err)
	assert.EqualValues(t, 1, a.registers.Load())
	assert.EqualValues(t, 1, a.unregisters.Load())
	assert.False(t, m.IsActive("A"))
}

func TestActivatePrepareFailureRegistersNothing(t *testing.T) {
	a := &fakePlugin{name: "A"}
	b := &fakePlugin{name: "B", deps: []string{"A"}, prepareErr: eris.New("engine download failed")}
	m := newTestManager(t, a, b)

	err := m.ActivatePlugin(context.Background(), "B", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine download failed")
	assert.EqualValues(t, 1, a.prepares.Load())
	assert.Zero(t, a.registers.Load())
	assert.Zero(t, b.registers.Load())
}

func TestActivateCancelledContext(t *testing.T) {
	a := &fakePlugin{name: "A"}
	m := newTestManager(t, a)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.ActivatePlugin(ctx, "A", nil)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, a.registers.Load())
}

func TestConcurrentActivationRegistersOnce(t *testing.T) {
	a := &fakePlugin{name: "A"}
	b := &fakePlugin{name: "B", deps: []string{"A"}}
	m := newTestManager(t, a, b)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "A"
			if i%2 == 0 {
				name = "B"
			}
			errs[i] = m.ActivatePlugin(context.Background(), name, nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, a.registers.Load())
	assert.EqualValues(t, 1, b.registers.Load())
	assert.ElementsMatch(t, []string{"A", "B"}, m.GetActivePluginNames())
}

func TestSystemsFollowPluginLifecycle(t *testing.T) {
	var ticks int
	sys := &ecs.SystemFunc{Order: 1, Fn: func(*ecs.World, time.Duration) { ticks++ }}
	a := &fakePlugin{name: "A", systems: []ecs.System{sys}}
	m := newTestManager(t, a)

	require.NoError(t, m.ActivatePlugin(context.Background(), "A", nil))
	m.World().Update(time.Millisecond)
	assert.Equal(t, 1, ticks)

	require.NoError(t, m.DeactivatePlugin("A"))
	m.World().Update(time.Millisecond)
	assert.Equal(t, 1, ticks)
	assert.Empty(t, m.World().SystemManager().GetAllSystems())
}

func TestLifecycleEvents(t *testing.T) {
	m := newTestManager(t)
	var got []string
	m.OnPluginRegistered(func(ev Event) { got = append(got, "registered:"+ev.Name) })
	m.OnPluginActivated(func(ev Event) { got = append(got, "activated:"+ev.Name) })
	stop := m.OnPluginDeactivated(func(ev Event) { got = append(got, "deactivated:"+ev.Name) })

	require.NoError(t, m.RegisterPlugin(&fakePlugin{name: "A"}))
	require.NoError(t, m.ActivatePlugin(context.Background(), "A", nil))
	require.NoError(t, m.DeactivatePlugin("A"))
	stop()
	require.NoError(t, m.ActivatePlugin(context.Background(), "A", nil))
	require.NoError(t, m.DeactivatePlugin("A"))

	assert.Equal(t, []string{
		"registered:A", "activated:A", "deactivated:A", "activated:A",
	}, got)
}

func TestRegisterPluginValidation(t *testing.T) {
	m := newTestManager(t, &fakePlugin{name: "A"})

	assert.True(t, errors.Is(m.RegisterPlugin(&fakePlugin{name: "A"}), ErrDuplicatePlugin))
	assert.True(t, errors.Is(m.RegisterPlugin(&fakePlugin{}), ErrInvalidName))
	assert.Equal(t, []string{"A"}, m.GetAvailablePluginNames())
}

type describedPlugin struct {
	fakePlugin
}

func (*describedPlugin) Version() string     { return "1.2.0" }
func (*describedPlugin) Description() string { return "rigid bodies" }
func (*describedPlugin) Author() string      { return "physim" }

func TestDescribe(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.RegisterPlugin(&describedPlugin{fakePlugin{name: "rigid", deps: []string{"core"}}}))

	info, ok := m.Describe("rigid")
	require.True(t, ok)
	assert.Equal(t, Info{
		Name:         "rigid",
		Version:      "1.2.0",
		Description:  "rigid bodies",
		Author:       "physim",
		Dependencies: []string{"core"},
	}, info)

	_, ok = m.Describe("ghost")
	assert.False(t, ok)
}

func TestParam(t *testing.T) {
	sc := &StudioContext{Params: map[string]any{"gravity": -9.81, "label": "x"}}

	assert.Equal(t, -9.81, Param(sc, "gravity", 0.0))
	assert.Equal(t, 1.0, Param(sc, "label", 1.0))
	assert.Equal(t, 2.0, Param[float64](nil, "gravity", 2.0))
}

func TestCoalescedCallerSurvivesCancelledPass(t *testing.T) {
	started := make(chan struct{})
	a := &fakePlugin{name: "A", prepareFn: func(ctx context.Context, call int32) error {
		if call == 1 {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}}
	m := newTestManager(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- m.ActivatePlugin(ctx, "A", nil) }()
	<-started

	second := make(chan error, 1)
	go func() { second <- m.ActivatePlugin(context.Background(), "A", nil) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-first, context.Canceled)
	require.NoError(t, <-second)
	assert.True(t, m.IsActive("A"))
	assert.EqualValues(t, 1, a.registers.Load())
}

// valueSystem has value receivers, so it cannot be removed by identity.
type valueSystem struct{}

func (valueSystem) Priority() int                    { return 0 }
func (valueSystem) Update(*ecs.World, time.Duration) {}

func TestActivateRejectsUnremovableSystems(t *testing.T) {
	ok := &ecs.SystemFunc{Order: 1, Fn: func(*ecs.World, time.Duration) {}}
	a := &fakePlugin{name: "A", systems: []ecs.System{ok, valueSystem{}}}
	m := newTestManager(t, a)

	err := m.ActivatePlugin(context.Background(), "A", nil)

	assert.ErrorIs(t, err, ecs.ErrInvalidSystem)
	assert.False(t, m.IsActive("A"))
	assert.EqualValues(t, 1, a.unregisters.Load())
	assert.Empty(t, m.World().SystemManager().GetAllSystems())
}
