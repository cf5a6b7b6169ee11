// Package geobox holds the value types describing where a raster sits
// on the earth: its pixel shape, affine transform and coordinate
// reference system.
package geobox

import (
	"fmt"
	"strconv"
	"strings"
)

// Affine is a 2D affine transform in row order (a, b, c, d, e, f),
// mapping pixel coordinates (x, y) to CRS coordinates:
//
//	X = a*x + b*y + c
//	Y = d*x + e*y + f
type Affine [6]float64

// FromGDAL converts a GDAL geotransform, which uses the order
// (ulX, xRes, xRot, ulY, yRot, yRes), into an Affine.
func FromGDAL(geot [6]float64) Affine {
	return Affine{geot[1], geot[2], geot[0], geot[4], geot[5], geot[3]}
}

// GDAL returns the transform in GDAL geotransform order.
func (a Affine) GDAL() [6]float64 {
	return [6]float64{a[2], a[0], a[1], a[5], a[3], a[4]}
}

// Nine renders the transform in the 9-element document form, the last
// row being the constant (0, 0, 1).
func (a Affine) Nine() [9]float64 {
	return [9]float64{a[0], a[1], a[2], a[3], a[4], a[5], 0, 0, 1}
}

// Apply maps a pixel coordinate into CRS space.
func (a Affine) Apply(x, y float64) (float64, float64) {
	return a[0]*x + a[1]*y + a[2], a[3]*x + a[4]*y + a[5]
}

// CRS is an opaque coordinate reference system handle: either an
// "epsg:NNNN" code or a WKT string. Two CRS values are considered
// equivalent only when their strings are equal; in-process
// representations of the same projection are not guaranteed comparable
// beyond that.
type CRS string

// EPSG returns the numeric EPSG code when the CRS is in epsg form.
func (c CRS) EPSG() (int, bool) {
	s := string(c)
	if len(s) < 6 || !strings.EqualFold(s[:5], "epsg:") {
		return 0, false
	}
	code, err := strconv.Atoi(s[5:])
	if err != nil {
		return 0, false
	}
	return code, true
}

// EPSGCRS builds an epsg-form CRS from a code.
func EPSGCRS(code int) CRS {
	return CRS(fmt.Sprintf("epsg:%d", code))
}

// GridSpec identifies a raster grid: pixel shape (rows, cols), affine
// transform and CRS. It is the grouping key for measurements that share
// a resolution.
type GridSpec struct {
	Shape     [2]int
	Transform Affine
	CRS       CRS
}

// Key is the mapping identity of a grid. It deliberately excludes the
// CRS: all grids within one dataset must agree on CRS anyway, and that
// is checked separately at finalise time.
type Key struct {
	Shape     [2]int
	Transform Affine
}

func (g GridSpec) Key() Key {
	return Key{g.Shape, g.Transform}
}

// ResolutionYX returns the absolute pixel sizes (y, x).
func (g GridSpec) ResolutionYX() (float64, float64) {
	y := g.Transform[4]
	if y < 0 {
		y = -y
	}
	x := g.Transform[0]
	if x < 0 {
		x = -x
	}
	return y, x
}
