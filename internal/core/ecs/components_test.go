package ecs

import (
	"time"

	"github.com/rotisserie/eris"
)

type position struct {
	X, Y float64
}

func (*position) ComponentType() ComponentType { return "Position" }
func (p *position) Clone() Component {
	c := *p
	return &c
}

type velocity struct {
	DX, DY float64
}

func (*velocity) ComponentType() ComponentType { return "Velocity" }
func (v *velocity) Clone() Component {
	c := *v
	return &c
}

type label struct {
	Text string
}

func (*label) ComponentType() ComponentType { return "Label" }
func (l *label) Clone() Component {
	c := *l
	return &c
}

func (l *label) Serialize() (map[string]any, error) {
	return map[string]any{"text": l.Text}, nil
}

func (l *label) Deserialize(data map[string]any) error {
	text, ok := data["text"].(string)
	if !ok {
		return eris.New("label text missing")
	}
	l.Text = text
	return nil
}

var (
	positionClass = Define[position](func(p *position, args ...any) error {
		if len(args) == 2 {
			p.X, _ = args[0].(float64)
			p.Y, _ = args[1].(float64)
		}
		return nil
	})
	velocityClass = Define[velocity](nil)
	labelClass    = Define[label](nil)
)

// recordingSystem logs updates and lifecycle hooks into a shared slice.
type recordingSystem struct {
	name     string
	priority int
	log      *[]string
}

func (s *recordingSystem) Priority() int { return s.priority }

func (s *recordingSystem) Update(_ *World, _ time.Duration) {
	*s.log = append(*s.log, s.name)
}

func (s *recordingSystem) OnRegister(*World) {
	*s.log = append(*s.log, "register:"+s.name)
}

func (s *recordingSystem) OnRemove(*World) {
	*s.log = append(*s.log, "remove:"+s.name)
}

// removalWatcher records component and entity removal hooks.
type removalWatcher struct {
	components []ComponentType
	entities   []EntityID
	sawEntity  []bool
}

func (*removalWatcher) Priority() int                { return 0 }
func (*removalWatcher) Update(*World, time.Duration) {}

func (r *removalWatcher) OnComponentRemoved(_ *World, _ EntityID, typ ComponentType, _ Component) {
	r.components = append(r.components, typ)
}

func (r *removalWatcher) OnEntityRemoved(w *World, id EntityID) {
	r.entities = append(r.entities, id)
	r.sawEntity = append(r.sawEntity, w.HasEntity(id))
}

func newTestWorld(t interface{ Fatalf(string, ...any) }) *World {
	w := NewWorld()
	for _, c := range []ComponentClass{positionClass, velocityClass, labelClass} {
		if err := w.RegisterComponent(c); err != nil {
			t.Fatalf("register %s: %v", c.Type, err)
		}
	}
	return w
}
