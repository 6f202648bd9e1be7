package canvas

import "math"

// Point is a canvas coordinate in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

func (p Point) dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Shape is one committed stroke. Freehand shapes keep the whole path; line,
// rect and circle keep the drag start and end.
type Shape struct {
	Tool   Tool    `json:"tool"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Eraser bool    `json:"eraser,omitempty"`
}

func (s *Shape) start() Point { return s.Points[0] }

func (s *Shape) end() Point { return s.Points[len(s.Points)-1] }

// translate moves every point of s by d.
func (s *Shape) translate(d Point) {
	for i := range s.Points {
		s.Points[i].X += d.X
		s.Points[i].Y += d.Y
	}
}

// hit reports whether p touches s, with a tolerance of half the stroke
// width plus a few pixels.
func (s *Shape) hit(p Point) bool {
	if len(s.Points) == 0 {
		return false
	}
	tol := s.Width/2 + 4

	switch s.Tool {
	case ToolRect:
		a, b := s.start(), s.end()
		return p.X >= math.Min(a.X, b.X)-tol && p.X <= math.Max(a.X, b.X)+tol &&
			p.Y >= math.Min(a.Y, b.Y)-tol && p.Y <= math.Max(a.Y, b.Y)+tol
	case ToolCircle:
		return p.dist(s.start()) <= s.start().dist(s.end())+tol
	default:
		if len(s.Points) == 1 {
			return p.dist(s.Points[0]) <= tol
		}
		for i := 1; i < len(s.Points); i++ {
			if segmentDist(p, s.Points[i-1], s.Points[i]) <= tol {
				return true
			}
		}
		return false
	}
}

func segmentDist(p, a, b Point) float64 {
	ab := b.sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return p.dist(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / l2
	t = math.Max(0, math.Min(1, t))
	return p.dist(Point{a.X + t*ab.X, a.Y + t*ab.Y})
}
