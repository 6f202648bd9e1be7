package canvas

import "github.com/abhisek/mathpad/internal/apperr"

// EventKind is the phase of a pointer gesture.
type EventKind string

const (
	PointerDown EventKind = "down"
	PointerMove EventKind = "move"
	PointerUp   EventKind = "up"
)

// PointerEvent is one pointer sample. Generation is the canvas generation
// the client was drawing on; samples from an older generation are dropped.
type PointerEvent struct {
	Kind       EventKind `json:"kind"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Generation int       `json:"generation"`
}

// Validate rejects unknown event kinds.
func (e PointerEvent) Validate() error {
	switch e.Kind {
	case PointerDown, PointerMove, PointerUp:
		return nil
	}
	return apperr.Validation("unknown pointer event %q", e.Kind)
}

type drag struct {
	Index int   `json:"index"`
	From  Point `json:"from"`
}

// Surface is the serializable state of one drawing canvas.
type Surface struct {
	Settings   Settings `json:"settings"`
	Generation int      `json:"generation"`
	Shapes     []Shape  `json:"shapes,omitempty"`

	Active *Shape `json:"active,omitempty"`
	Drag   *drag  `json:"drag,omitempty"`
}

// NewSurface returns a blank canvas with the given settings.
func NewSurface(s Settings) Surface {
	return Surface{Settings: s}
}

// ApplySettings replaces the drawing settings. Committed shapes keep the
// color and width they were drawn with.
func (c *Surface) ApplySettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.Settings = s
	return nil
}

// Clear starts a new generation with no shapes.
func (c *Surface) Clear() {
	c.Generation++
	c.Shapes = nil
	c.Active = nil
	c.Drag = nil
}

// Empty reports whether nothing visible has been drawn.
func (c *Surface) Empty() bool {
	for _, s := range c.Shapes {
		if !s.Eraser {
			return false
		}
	}
	return true
}

// Handle applies one pointer event and reports whether it changed the
// surface. Events for another generation are ignored.
func (c *Surface) Handle(ev PointerEvent) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}
	if ev.Generation != c.Generation {
		return false, nil
	}

	p := Point{X: ev.X, Y: ev.Y}
	tool := c.Settings.EffectiveTool()

	switch ev.Kind {
	case PointerDown:
		c.Active, c.Drag = nil, nil
		if tool == ToolTransform {
			if i := c.topmostAt(p); i >= 0 {
				c.Drag = &drag{Index: i, From: p}
				return true, nil
			}
			return false, nil
		}
		c.Active = &Shape{
			Tool:   tool,
			Points: []Point{p},
			Color:  c.Settings.EffectiveColor(),
			Width:  c.Settings.StrokeWidth,
			Eraser: c.Settings.Eraser,
		}
		if tool != ToolFreehand {
			c.Active.Points = append(c.Active.Points, p)
		}
		return true, nil

	case PointerMove:
		if c.Active == nil {
			return false, nil
		}
		c.extend(p)
		return true, nil

	default:
		if c.Drag != nil {
			d := c.Drag
			c.Drag = nil
			if d.Index < len(c.Shapes) {
				c.Shapes[d.Index].translate(p.sub(d.From))
			}
			return true, nil
		}
		if c.Active == nil {
			return false, nil
		}
		c.extend(p)
		shape := *c.Active
		c.Active = nil
		if shape.Tool != ToolFreehand && shape.start() == shape.end() {
			return false, nil
		}
		c.Shapes = append(c.Shapes, shape)
		return true, nil
	}
}

func (c *Surface) extend(p Point) {
	if c.Active.Tool == ToolFreehand {
		last := c.Active.end()
		if last != p {
			c.Active.Points = append(c.Active.Points, p)
		}
		return
	}
	c.Active.Points[len(c.Active.Points)-1] = p
}

func (c *Surface) topmostAt(p Point) int {
	for i := len(c.Shapes) - 1; i >= 0; i-- {
		if c.Shapes[i].Eraser {
			continue
		}
		if c.Shapes[i].hit(p) {
			return i
		}
	}
	return -1
}
