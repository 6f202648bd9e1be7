package canvas

import (
	"image"
	"io"
	"math"

	"github.com/fogleman/gg"
)

// Render rasterizes the committed shapes over the background color. The
// boolean is false when nothing visible has been drawn.
func (c *Surface) Render() (image.Image, bool) {
	dc := c.draw()
	return dc.Image(), !c.Empty()
}

// EncodePNG writes the current raster, including any in-progress stroke.
func (c *Surface) EncodePNG(w io.Writer) error {
	dc := c.draw()
	if c.Active != nil {
		drawShape(dc, *c.Active)
	}
	return dc.EncodePNG(w)
}

func (c *Surface) draw() *gg.Context {
	dc := gg.NewContext(c.Settings.Width, c.Settings.Height)
	dc.SetHexColor(c.Settings.BackgroundColor)
	dc.Clear()
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	for _, s := range c.Shapes {
		drawShape(dc, s)
	}
	return dc
}

func drawShape(dc *gg.Context, s Shape) {
	if len(s.Points) == 0 {
		return
	}
	dc.SetHexColor(s.Color)
	dc.SetLineWidth(s.Width)

	a, b := s.start(), s.end()
	switch s.Tool {
	case ToolLine:
		dc.DrawLine(a.X, a.Y, b.X, b.Y)
		dc.Stroke()
	case ToolRect:
		dc.DrawRectangle(math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))
		dc.Stroke()
	case ToolCircle:
		dc.DrawCircle(a.X, a.Y, a.dist(b))
		dc.Stroke()
	default:
		if len(s.Points) == 1 {
			dc.DrawCircle(a.X, a.Y, s.Width/2)
			dc.Fill()
			return
		}
		dc.MoveTo(a.X, a.Y)
		for _, p := range s.Points[1:] {
			dc.LineTo(p.X, p.Y)
		}
		dc.Stroke()
	}
}
