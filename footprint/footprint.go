// Package footprint derives the valid-data geometry of a dataset from
// per-grid pixel masks. The shape of each grid's valid data is traced
// in pixel space, smoothed to a small convex polygon, and mapped into
// CRS coordinates through the grid's affine transform.
package footprint

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/op"

	"github.com/nci/eopackage/geobox"
	"github.com/nci/eopackage/raster"
)

// Footprint computes the valid-data polygon of one grid in CRS space.
//
// The processing order matters for numeric reproducibility and must not
// be rearranged: fill interior holes, trace the boundary rings of the
// valid regions, union them, take the convex hull, buffer outward by
// one pixel with mitred joins, simplify with a one pixel tolerance,
// clip to the pixel bounding box, then apply the affine transform.
//
// An empty mask yields a nil polygon and no error.
func Footprint(m *raster.Mask, transform geobox.Affine) (geom.Polygon, error) {
	filled := fillHoles(m)

	rings := traceRings(filled, m.Height, m.Width)
	if len(rings) == 0 {
		return nil, nil
	}

	var union geom.Geom
	var err error
	for _, ring := range rings {
		union, err = op.Construct(union, ring, op.UNION)
		if err != nil {
			return nil, fmt.Errorf("union of valid-data rings failed: %v", err)
		}
	}

	hull := convexHull(asPolygon(union))

	buffered := bufferMitre(hull, 1.0)

	simplified := asPolygon(buffered.Simplify(1.0))

	bbox := geom.Polygon{{
		{X: 0, Y: 0},
		{X: float64(m.Width), Y: 0},
		{X: float64(m.Width), Y: float64(m.Height)},
		{X: 0, Y: float64(m.Height)},
	}}
	clipped, err := op.Construct(simplified, bbox, op.INTERSECTION)
	if err != nil {
		return nil, fmt.Errorf("clipping footprint to pixel bounds failed: %v", err)
	}

	out := openRings(asPolygon(clipped))
	for i, ring := range out {
		for j, p := range ring {
			x, y := transform.Apply(p.X, p.Y)
			out[i][j] = geom.Point{X: x, Y: y}
		}
	}
	return out, nil
}

// Union folds per-grid footprints into one dataset-level geometry.
// Nil polygons are skipped.
func Union(geoms []geom.Polygon) (geom.Polygon, error) {
	var out geom.Geom
	var err error
	for _, g := range geoms {
		if g == nil {
			continue
		}
		out, err = op.Construct(out, g, op.UNION)
		if err != nil {
			return nil, fmt.Errorf("union of grid footprints failed: %v", err)
		}
	}
	if out == nil {
		return nil, nil
	}
	return openRings(asPolygon(out)), nil
}

// openRings drops the repeated closing vertex that boolean operations
// leave on each ring, keeping all rings in open form.
func openRings(p geom.Polygon) geom.Polygon {
	for i, ring := range p {
		if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
			p[i] = ring[:len(ring)-1]
		}
	}
	return p
}

func asPolygon(g geom.Geom) geom.Polygon {
	switch t := g.(type) {
	case geom.Polygon:
		return t
	case geom.MultiPolygon:
		var out geom.Polygon
		for _, p := range t {
			out = append(out, p...)
		}
		return out
	default:
		return nil
	}
}

// fillHoles returns a copy of the mask with interior invalid regions
// marked valid. Invalid pixels still connected to the image border stay
// invalid. Filling first keeps single noisy interior pixels from
// punching spurious holes through the traced rings.
func fillHoles(m *raster.Mask) []bool {
	h, w := m.Height, m.Width
	reached := make([]bool, h*w)
	queue := make([]int, 0, 2*(h+w))

	push := func(i int) {
		if !reached[i] && !m.Data[i] {
			reached[i] = true
			queue = append(queue, i)
		}
	}

	for c := 0; c < w; c++ {
		push(c)
		push((h-1)*w + c)
	}
	for r := 0; r < h; r++ {
		push(r * w)
		push(r*w + w - 1)
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		r, c := i/w, i%w
		if r > 0 {
			push(i - w)
		}
		if r < h-1 {
			push(i + w)
		}
		if c > 0 {
			push(i - 1)
		}
		if c < w-1 {
			push(i + 1)
		}
	}

	out := make([]bool, h*w)
	for i := range out {
		out[i] = m.Data[i] || !reached[i]
	}
	return out
}

type gridPoint struct {
	x, y int
}

type gridEdge struct {
	from, to gridPoint
	used     bool
}

// traceRings extracts the closed boundary rings of the valid regions.
// Each valid pixel (r, c) covers the unit square [c,c+1]x[r,r+1] in
// pixel coordinates. Edges are emitted in row-major order and stitched
// deterministically, so repeat invocations produce identical rings.
func traceRings(data []bool, h, w int) []geom.Polygon {
	valid := func(r, c int) bool {
		if r < 0 || r >= h || c < 0 || c >= w {
			return false
		}
		return data[r*w+c]
	}

	var edges []gridEdge
	starts := make(map[gridPoint][]int)
	add := func(from, to gridPoint) {
		starts[from] = append(starts[from], len(edges))
		edges = append(edges, gridEdge{from: from, to: to})
	}

	// Interior left of each directed edge.
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			if !data[r*w+c] {
				continue
			}
			if !valid(r-1, c) {
				add(gridPoint{c, r}, gridPoint{c + 1, r})
			}
			if !valid(r, c+1) {
				add(gridPoint{c + 1, r}, gridPoint{c + 1, r + 1})
			}
			if !valid(r+1, c) {
				add(gridPoint{c + 1, r + 1}, gridPoint{c, r + 1})
			}
			if !valid(r, c-1) {
				add(gridPoint{c, r + 1}, gridPoint{c, r})
			}
		}
	}

	var rings []geom.Polygon
	for i := range edges {
		if edges[i].used {
			continue
		}

		var ring []geom.Point
		start := edges[i].from
		cur := i
		for {
			edges[cur].used = true
			ring = append(ring, geom.Point{X: float64(edges[cur].from.x), Y: float64(edges[cur].from.y)})
			at := edges[cur].to
			if at == start {
				break
			}
			next := -1
			for _, j := range starts[at] {
				if !edges[j].used {
					next = j
					break
				}
			}
			if next < 0 {
				// Open chain; should not happen for well-formed masks.
				break
			}
			cur = next
		}
		rings = append(rings, geom.Polygon{ring})
	}
	return rings
}

// convexHull computes the convex hull of all ring vertices using the
// monotone chain algorithm, returned as a single counterclockwise ring
// without collinear points.
func convexHull(p geom.Polygon) geom.Polygon {
	var pts []geom.Point
	for _, ring := range p {
		pts = append(pts, ring...)
	}

	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	uniq := pts[:0]
	for i, pt := range pts {
		if i == 0 || pt != pts[i-1] {
			uniq = append(uniq, pt)
		}
	}
	pts = uniq

	if len(pts) < 3 {
		return geom.Polygon{append([]geom.Point(nil), pts...)}
	}

	cross := func(o, a, b geom.Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower []geom.Point
	for _, pt := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}
	var upper []geom.Point
	for i := len(pts) - 1; i >= 0; i-- {
		pt := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	return geom.Polygon{hull}
}

// bufferMitre offsets a convex counterclockwise ring outward by dist,
// joining adjacent offset edges at their mitre intersection.
func bufferMitre(p geom.Polygon, dist float64) geom.Polygon {
	if len(p) == 0 || len(p[0]) < 3 {
		return p
	}
	ring := p[0]
	n := len(ring)

	// Outward unit normal of each edge i: ring[i] -> ring[i+1].
	normals := make([]geom.Point, n)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			normals[i] = geom.Point{}
			continue
		}
		// Interior is left of the edge, so outward is the right normal.
		normals[i] = geom.Point{X: dy / length, Y: -dx / length}
	}

	out := make([]geom.Point, n)
	for i := 0; i < n; i++ {
		prev := (i + n - 1) % n
		// Offset lines of the edges either side of vertex i.
		p1 := geom.Point{X: ring[prev].X + normals[prev].X*dist, Y: ring[prev].Y + normals[prev].Y*dist}
		d1 := geom.Point{X: ring[i].X - ring[prev].X, Y: ring[i].Y - ring[prev].Y}
		p2 := geom.Point{X: ring[i].X + normals[i].X*dist, Y: ring[i].Y + normals[i].Y*dist}
		d2 := geom.Point{X: ring[(i+1)%n].X - ring[i].X, Y: ring[(i+1)%n].Y - ring[i].Y}

		denom := d1.X*d2.Y - d1.Y*d2.X
		if math.Abs(denom) < 1e-12 {
			// Collinear edges: no join to mitre.
			out[i] = p2
			continue
		}
		t := ((p2.X-p1.X)*d2.Y - (p2.Y-p1.Y)*d2.X) / denom
		out[i] = geom.Point{X: p1.X + d1.X*t, Y: p1.Y + d1.Y*t}
	}
	return geom.Polygon{out}
}
