package valueobjects

import (
	"fmt"
	"math"
)

// Position is an immutable 2D coordinate on the diagram canvas
type Position struct {
	x float64
	y float64
}

// NewPosition creates a position, rejecting NaN and infinite coordinates
func NewPosition(x, y float64) (Position, error) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return Position{}, fmt.Errorf("position coordinates cannot be NaN")
	}
	if math.IsInf(x, 0) || math.IsInf(y, 0) {
		return Position{}, fmt.Errorf("position coordinates cannot be infinite")
	}
	return Position{x: x, y: y}, nil
}

// X returns the horizontal coordinate
func (p Position) X() float64 {
	return p.x
}

// Y returns the vertical coordinate
func (p Position) Y() float64 {
	return p.y
}

// Translate returns a new position offset by (dx, dy)
func (p Position) Translate(dx, dy float64) Position {
	return Position{x: p.x + dx, y: p.y + dy}
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	return p.x == other.x && p.y == other.y
}

// DistanceTo returns the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	dx := p.x - other.x
	dy := p.y - other.y
	return math.Sqrt(dx*dx + dy*dy)
}
