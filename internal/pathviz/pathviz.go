// Package pathviz synthesizes the renderable path primitive handed to the
// rendering collaborator: a pure function from display state to shape, colour
// and placement.
package pathviz

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Shape selects the renderable primitive kind.
type Shape int

const (
	// ShapeBox is the straight oriented box drawn for the normal, on-route,
	// clear path.
	ShapeBox Shape = iota + 1
	// ShapeCylinder is drawn whenever the user is deviating: off-route or
	// with an obstacle ahead.
	ShapeCylinder
)

func (s Shape) String() string {
	switch s {
	case ShapeBox:
		return "box"
	case ShapeCylinder:
		return "cylinder"
	default:
		return "unknown"
	}
}

// Color is an RGBA colour with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

var (
	// ColorNeutral is the clear-path tone.
	ColorNeutral = Color{R: 0.25, G: 0.55, B: 0.95, A: 0.8}
	// ColorWarning is shown while an obstacle is present ahead.
	ColorWarning = Color{R: 0.9, G: 0.2, B: 0.15, A: 0.9}
)

// DisplayState drives geometry and colour selection only; it is derived each
// update and never persisted.
type DisplayState struct {
	OffRoute        bool
	ObstaclePresent bool
}

// Primitive describes the path visualization for one update. Position is
// always the current observer position: the visualization moves with the
// user rather than decorating the world.
type Primitive struct {
	Shape    Shape
	WidthM   float64
	LengthM  float64
	Color    Color
	Position r3.Vec
}

// Synthesize maps the display state to a primitive with the configured
// corridor footprint, re-anchored at the observer.
func Synthesize(state DisplayState, widthM, lengthM float64, observer r3.Vec) Primitive {
	shape := ShapeBox
	if state.OffRoute || state.ObstaclePresent {
		shape = ShapeCylinder
	}

	color := ColorNeutral
	if state.ObstaclePresent {
		color = ColorWarning
	}

	return Primitive{
		Shape:    shape,
		WidthM:   widthM,
		LengthM:  lengthM,
		Color:    color,
		Position: observer,
	}
}
