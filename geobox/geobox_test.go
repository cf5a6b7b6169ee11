package geobox

import (
	"testing"
)

func TestAffineRoundTrip(t *testing.T) {
	geot := [6]float64{309375.0, 25.0, 0.0, -3866375.0, 0.0, -25.0}
	a := FromGDAL(geot)

	if a != (Affine{25.0, 0.0, 309375.0, 0.0, -25.0, -3866375.0}) {
		t.Errorf("unexpected affine: %v", a)
	}

	if a.GDAL() != geot {
		t.Errorf("geotransform round trip failed: %v", a.GDAL())
	}

	nine := a.Nine()
	if nine[6] != 0 || nine[7] != 0 || nine[8] != 1 {
		t.Errorf("last affine row should be constant: %v", nine)
	}
}

func TestAffineApply(t *testing.T) {
	a := FromGDAL([6]float64{100.0, 10.0, 0.0, 200.0, 0.0, -10.0})

	x, y := a.Apply(0, 0)
	if x != 100.0 || y != 200.0 {
		t.Errorf("origin should map to upper left: %v %v", x, y)
	}

	x, y = a.Apply(3, 2)
	if x != 130.0 || y != 180.0 {
		t.Errorf("pixel (3,2) mapped to %v %v", x, y)
	}
}

func TestCRSEPSG(t *testing.T) {
	code, ok := CRS("epsg:32650").EPSG()
	if !ok || code != 32650 {
		t.Errorf("failed to parse epsg code: %v %v", code, ok)
	}

	code, ok = CRS("EPSG:4326").EPSG()
	if !ok || code != 4326 {
		t.Errorf("epsg parsing should be case insensitive: %v %v", code, ok)
	}

	if _, ok := CRS(`GEOGCS["WGS 84"]`).EPSG(); ok {
		t.Errorf("WKT should not parse as an epsg code")
	}

	if EPSGCRS(32650) != CRS("epsg:32650") {
		t.Errorf("unexpected epsg CRS: %v", EPSGCRS(32650))
	}
}

func TestGridKeyExcludesCRS(t *testing.T) {
	a := GridSpec{Shape: [2]int{100, 200}, Transform: FromGDAL([6]float64{0, 25, 0, 0, 0, -25}), CRS: "epsg:32650"}
	b := a
	b.CRS = `PROJCS["WGS 84 / UTM zone 50N"]`

	if a.Key() != b.Key() {
		t.Errorf("grid keys should ignore CRS differences")
	}

	c := a
	c.Shape = [2]int{50, 100}
	if a.Key() == c.Key() {
		t.Errorf("grid keys should differ for different shapes")
	}
}

func TestResolution(t *testing.T) {
	g := GridSpec{Shape: [2]int{100, 100}, Transform: FromGDAL([6]float64{0, 25, 0, 0, 0, -25})}
	y, x := g.ResolutionYX()
	if y != 25.0 || x != 25.0 {
		t.Errorf("unexpected resolution: %v %v", y, x)
	}
}
