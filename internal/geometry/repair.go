package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
)

// repair applies the deterministic cleanup rules to every polygon and
// validates the result. Polygons whose shell degenerates are dropped and a
// shell that crosses itself once becomes two polygons.
func repair(mp orb.MultiPolygon) (orb.MultiPolygon, error) {
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, poly := range mp {
		fixed, err := repairPolygon(poly)
		if err != nil {
			return nil, err
		}
		out = append(out, fixed...)
	}
	if len(out) == 0 {
		return nil, domainErrors.NewGeometryError("empty geometry after repair", nil)
	}
	return out, nil
}

func repairPolygon(p orb.Polygon) ([]orb.Polygon, error) {
	if len(p) == 0 {
		return nil, nil
	}
	shells, err := cleanRing(p[0])
	if err != nil || len(shells) == 0 {
		return nil, err
	}

	polys := make([]orb.Polygon, 0, len(shells))
	for _, shell := range shells {
		if shell.Orientation() != orb.CCW {
			shell.Reverse()
		}
		polys = append(polys, orb.Polygon{shell})
	}

	for _, r := range p[1:] {
		holes, err := cleanRing(r)
		if err != nil {
			return nil, err
		}
		for _, hole := range holes {
			if hole.Orientation() != orb.CW {
				hole.Reverse()
			}
			owner := -1
			for i := range polys {
				if ringWithin(hole, polys[i][0]) {
					owner = i
					break
				}
			}
			if owner < 0 {
				return nil, domainErrors.NewGeometryError("hole outside shell", nil)
			}
			polys[owner] = append(polys[owner], hole)
		}
	}

	for _, poly := range polys {
		for i := 1; i < len(poly); i++ {
			for j := 0; j < i; j++ {
				if ringsCross(poly[i], poly[j]) {
					return nil, domainErrors.NewGeometryError("unrepairable self-intersection", nil)
				}
			}
		}
	}
	return polys, nil
}

// cleanRing removes repeated vertices and zero-width spikes and closes the
// ring. A ring whose edges cross exactly once is split at the crossing
// into two rings; any other self-intersection is rejected. No rings means
// the input degenerated.
func cleanRing(r orb.Ring) ([]orb.Ring, error) {
	pts := dedupe(r)
	for {
		i := spikeAt(pts)
		if i < 0 {
			break
		}
		pts = dedupe(append(pts[:i:i], pts[i+1:]...))
	}
	if len(pts) < 3 {
		return nil, nil
	}

	ring := closeRing(pts)
	if ringIsSimple(ring) {
		if ring.Orientation() == 0 {
			return nil, nil
		}
		return []orb.Ring{ring}, nil
	}

	lobes, ok := splitAtCrossing(pts)
	if !ok {
		return nil, domainErrors.NewGeometryError("unrepairable self-intersection", nil)
	}
	return lobes, nil
}

func closeRing(pts []orb.Point) orb.Ring {
	ring := make(orb.Ring, 0, len(pts)+1)
	ring = append(ring, pts...)
	return append(ring, pts[0])
}

// splitAtCrossing handles the figure-eight case: exactly one pair of edges
// crossing in their interiors. Lobes that collapse are dropped.
func splitAtCrossing(pts []orb.Point) ([]orb.Ring, bool) {
	n := len(pts)
	ci, cj := -1, -1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			a1, a2, b1, b2 := pts[i], pts[i+1], pts[j], pts[(j+1)%n]
			if !segmentsIntersect(a1, a2, b1, b2) {
				continue
			}
			if ci >= 0 || !crossesProperly(a1, a2, b1, b2) {
				return nil, false
			}
			ci, cj = i, j
		}
	}
	if ci < 0 {
		return nil, false
	}

	x := crossingPoint(pts[ci], pts[ci+1], pts[cj], pts[(cj+1)%n])
	first := make([]orb.Point, 0, n+1)
	first = append(first, pts[:ci+1]...)
	first = append(first, x)
	first = append(first, pts[cj+1:]...)
	second := make([]orb.Point, 0, cj-ci+1)
	second = append(second, x)
	second = append(second, pts[ci+1:cj+1]...)

	var lobes []orb.Ring
	for _, part := range [][]orb.Point{first, second} {
		part = dedupe(part)
		if len(part) < 3 {
			continue
		}
		ring := closeRing(part)
		if !ringIsSimple(ring) {
			return nil, false
		}
		if ring.Orientation() == 0 {
			continue
		}
		lobes = append(lobes, ring)
	}
	return lobes, true
}

func crossesProperly(p1, p2, q1, q2 orb.Point) bool {
	return sign(orient(q1, q2, p1))*sign(orient(q1, q2, p2)) < 0 &&
		sign(orient(p1, p2, q1))*sign(orient(p1, p2, q2)) < 0
}

// crossingPoint assumes the segments cross properly.
func crossingPoint(p1, p2, q1, q2 orb.Point) orb.Point {
	rx, ry := p2[0]-p1[0], p2[1]-p1[1]
	sx, sy := q2[0]-q1[0], q2[1]-q1[1]
	t := ((q1[0]-p1[0])*sy - (q1[1]-p1[1])*sx) / (rx*sy - ry*sx)
	return orb.Point{p1[0] + t*rx, p1[1] + t*ry}
}

// ringWithin reports whether every vertex of inner lies inside or on outer.
func ringWithin(inner, outer orb.Ring) bool {
	for _, p := range inner {
		if !planar.RingContains(outer, p) {
			return false
		}
	}
	return true
}

// dedupe returns the open ring without consecutive duplicates, treating
// the ring as circular.
func dedupe(r []orb.Point) []orb.Point {
	pts := make([]orb.Point, 0, len(r))
	for _, p := range r {
		if len(pts) > 0 && pts[len(pts)-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	for len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

func spikeAt(pts []orb.Point) int {
	n := len(pts)
	if n < 3 {
		return -1
	}
	for i := 0; i < n; i++ {
		prev, cur, next := pts[(i+n-1)%n], pts[i], pts[(i+1)%n]
		if orient(prev, cur, next) != 0 {
			continue
		}
		dot := (cur[0]-prev[0])*(next[0]-cur[0]) + (cur[1]-prev[1])*(next[1]-cur[1])
		if dot < 0 {
			return i
		}
	}
	return -1
}

func ringIsSimple(r orb.Ring) bool {
	n := len(r) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsIntersect(r[i], r[i+1], r[j], r[j+1]) {
				return false
			}
		}
	}
	return true
}

// ringsCross reports whether two rings of one polygon meet anywhere but a
// single shared point. Touching at one vertex keeps the interior connected.
func ringsCross(a, b orb.Ring) bool {
	var (
		touch   orb.Point
		touched bool
	)
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			kind, at := segmentContact(a[i], a[i+1], b[j], b[j+1])
			switch kind {
			case contactCross:
				return true
			case contactTouch:
				if touched && at != touch {
					return true
				}
				touch, touched = at, true
			}
		}
	}
	return false
}

type contact int

const (
	contactNone contact = iota
	contactTouch
	contactCross
)

func segmentContact(p1, p2, q1, q2 orb.Point) (contact, orb.Point) {
	d1 := sign(orient(q1, q2, p1))
	d2 := sign(orient(q1, q2, p2))
	d3 := sign(orient(p1, p2, q1))
	d4 := sign(orient(p1, p2, q2))

	if d1*d2 < 0 && d3*d4 < 0 {
		return contactCross, orb.Point{}
	}

	if d1 == 0 && d2 == 0 {
		var shared []orb.Point
		add := func(p orb.Point) {
			for _, s := range shared {
				if s == p {
					return
				}
			}
			shared = append(shared, p)
		}
		for _, p := range []orb.Point{p1, p2} {
			if onSegment(q1, q2, p) {
				add(p)
			}
		}
		for _, q := range []orb.Point{q1, q2} {
			if onSegment(p1, p2, q) {
				add(q)
			}
		}
		switch len(shared) {
		case 0:
			return contactNone, orb.Point{}
		case 1:
			return contactTouch, shared[0]
		}
		return contactCross, orb.Point{}
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return contactTouch, p1
	case d2 == 0 && onSegment(q1, q2, p2):
		return contactTouch, p2
	case d3 == 0 && onSegment(p1, p2, q1):
		return contactTouch, q1
	case d4 == 0 && onSegment(p1, p2, q2):
		return contactTouch, q2
	}
	return contactNone, orb.Point{}
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func onSegment(a, b, p orb.Point) bool {
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := sign(orient(q1, q2, p1))
	d2 := sign(orient(q1, q2, p2))
	d3 := sign(orient(p1, p2, q1))
	d4 := sign(orient(p1, p2, q2))

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}
