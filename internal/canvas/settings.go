// Package canvas implements the drawing surface: pointer events in, a raster
// of committed strokes out.
package canvas

import (
	"regexp"

	"github.com/abhisek/mathpad/internal/apperr"
)

// Tool selects how pointer drags become ink.
type Tool string

const (
	ToolFreehand  Tool = "freehand"
	ToolLine      Tool = "line"
	ToolRect      Tool = "rect"
	ToolCircle    Tool = "circle"
	ToolTransform Tool = "transform"
)

// Tools lists the selectable tools in display order.
var Tools = []Tool{ToolFreehand, ToolLine, ToolRect, ToolCircle, ToolTransform}

func (t Tool) valid() bool {
	for _, v := range Tools {
		if v == t {
			return true
		}
	}
	return false
}

const (
	DefaultWidth           = 1200
	DefaultHeight          = 605
	DefaultStrokeWidth     = 3
	DefaultStrokeColor     = "#33E6F6"
	DefaultBackgroundColor = "#1A1A3D"

	MinStrokeWidth = 1
	MaxStrokeWidth = 50
	maxDimension   = 4096
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Settings are the user-adjustable drawing parameters.
type Settings struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	StrokeWidth     float64 `json:"stroke_width"`
	StrokeColor     string  `json:"stroke_color"`
	BackgroundColor string  `json:"background_color"`
	Tool            Tool    `json:"tool"`
	Eraser          bool    `json:"eraser"`
}

// DefaultSettings returns the settings of a fresh canvas.
func DefaultSettings() Settings {
	return Settings{
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		StrokeWidth:     DefaultStrokeWidth,
		StrokeColor:     DefaultStrokeColor,
		BackgroundColor: DefaultBackgroundColor,
		Tool:            ToolFreehand,
	}
}

// Validate checks every field.
func (s Settings) Validate() error {
	if s.Width <= 0 || s.Height <= 0 || s.Width > maxDimension || s.Height > maxDimension {
		return apperr.Validation("canvas size must be between 1 and %d pixels", maxDimension)
	}
	if s.StrokeWidth < MinStrokeWidth || s.StrokeWidth > MaxStrokeWidth {
		return apperr.Validation("stroke width must be between %d and %d", MinStrokeWidth, MaxStrokeWidth)
	}
	if !hexColor.MatchString(s.StrokeColor) {
		return apperr.Validation("invalid stroke color %q", s.StrokeColor)
	}
	if !hexColor.MatchString(s.BackgroundColor) {
		return apperr.Validation("invalid background color %q", s.BackgroundColor)
	}
	if !s.Tool.valid() {
		return apperr.Validation("unknown tool %q", s.Tool)
	}
	return nil
}

// EffectiveTool is the tool pointer events use. The eraser always draws
// freehand without touching the selected tool.
func (s Settings) EffectiveTool() Tool {
	if s.Eraser {
		return ToolFreehand
	}
	return s.Tool
}

// EffectiveColor is the ink color. The eraser paints with the background.
func (s Settings) EffectiveColor() string {
	if s.Eraser {
		return s.BackgroundColor
	}
	return s.StrokeColor
}
