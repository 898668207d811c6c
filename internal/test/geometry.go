package test

import (
	"math"

	"github.com/paulmach/orb"
)

// Square returns a closed counter-clockwise square with its lower-left
// corner at origin.
func Square(origin orb.Point, side float64) orb.Polygon {
	x, y := origin[0], origin[1]
	return orb.Polygon{{{x, y}, {x + side, y}, {x + side, y + side}, {x, y + side}, {x, y}}}
}

// Bowtie returns a ring whose two diagonals cross once in the middle of
// the square at origin.
func Bowtie(origin orb.Point, side float64) orb.Polygon {
	x, y := origin[0], origin[1]
	return orb.Polygon{{{x, y}, {x + side, y + side}, {x + side, y}, {x, y + side}, {x, y}}}
}

// Pentagram returns a five-pointed star drawn in one stroke. Its edges
// cross each other five times.
func Pentagram(center orb.Point, radius float64) orb.Polygon {
	ring := make(orb.Ring, 0, 6)
	for k := 0; k < 5; k++ {
		angle := (90 + 144*float64(k)) * math.Pi / 180
		ring = append(ring, orb.Point{
			center[0] + radius*math.Cos(angle),
			center[1] + radius*math.Sin(angle),
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
