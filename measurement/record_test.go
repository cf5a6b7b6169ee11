package measurement

import (
	"strings"
	"testing"

	"github.com/nci/eopackage/geobox"
	"github.com/nci/eopackage/raster"
)

func grid25m() geobox.GridSpec {
	return geobox.GridSpec{
		Shape:     [2]int{2, 2},
		Transform: geobox.FromGDAL([6]float64{309375, 25, 0, -3866375, 0, -25}),
		CRS:       geobox.EPSGCRS(32655),
	}
}

func grid50m() geobox.GridSpec {
	return geobox.GridSpec{
		Shape:     [2]int{1, 1},
		Transform: geobox.FromGDAL([6]float64{309375, 50, 0, -3866375, 0, -50}),
		CRS:       geobox.EPSGCRS(32655),
	}
}

func band(vals ...uint8) *raster.ByteRaster {
	side := 1
	if len(vals) == 4 {
		side = 2
	}
	return &raster.ByteRaster{Data: vals, Height: side, Width: side}
}

func record(t *testing.T, r *Record, name string, grid geobox.GridSpec, img raster.Raster) {
	t.Helper()
	nodata := 0.0
	if err := r.RecordImage(name, grid, name+".tif", img, &nodata, true); err != nil {
		t.Fatal(err)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	r := NewRecord()
	record(t, r, "blue", grid25m(), band(1, 1, 1, 1))

	nodata := 0.0
	err := r.RecordImage("blue", grid50m(), "other.tif", band(1), &nodata, true)
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
	if !strings.Contains(err.Error(), "blue") {
		t.Errorf("error does not name the band: %v", err)
	}

	// The failed call must leave the record untouched.
	paths := r.IterPaths()
	if len(paths) != 1 || paths[0].Path != "blue.tif" {
		t.Errorf("record mutated by failed call: %+v", paths)
	}
}

func TestDefaultGridAssignment(t *testing.T) {
	r := NewRecord()
	record(t, r, "nbar_blue", grid25m(), band(1, 1, 1, 1))
	record(t, r, "nbar_red", grid25m(), band(1, 1, 1, 1))
	record(t, r, "quality", grid50m(), band(1))

	crs, grids, measurements, err := r.AsGeoDocs()
	if err != nil {
		t.Fatal(err)
	}
	if crs != geobox.EPSGCRS(32655) {
		t.Errorf("crs %v", crs)
	}
	if _, ok := grids["default"]; !ok {
		t.Fatalf("no default grid: %v", grids)
	}
	if grids["default"].Shape != [2]int{2, 2} {
		t.Errorf("default grid should be the 25m grid with two bands: %+v", grids["default"])
	}
	if _, ok := grids["quality"]; !ok {
		t.Errorf("expected quality grid, got %v", grids)
	}
	if measurements["nbar_blue"].Grid != "" {
		t.Errorf("default-grid measurement should omit grid: %+v", measurements["nbar_blue"])
	}
	if measurements["quality"].Grid != "quality" {
		t.Errorf("quality measurement grid %q", measurements["quality"].Grid)
	}
}

func TestDefaultGridTieBreakFirstRegistered(t *testing.T) {
	r := NewRecord()
	record(t, r, "a", grid25m(), band(1, 1, 1, 1))
	record(t, r, "b", grid50m(), band(1))

	_, grids, _, err := r.AsGeoDocs()
	if err != nil {
		t.Fatal(err)
	}
	if grids["default"].Shape != [2]int{2, 2} {
		t.Errorf("tie should go to the first-registered grid: %+v", grids)
	}
}

func TestCommonNameHeuristic(t *testing.T) {
	cases := []struct {
		names []string
		want  string
	}{
		{[]string{"nbar_blue", "nbar_red"}, "nbar"},
		{[]string{"nbar_band08", "nbart_band08"}, "band08"},
		{[]string{"nbar:band08", "nbart:band08"}, "band08"},
		{[]string{"panchromatic"}, "panchromatic"},
		{[]string{"nbar_panchromatic"}, "nbar_panchromatic"},
		{[]string{"nbar_blue", "nbar_red", "qa"}, ""},
		{[]string{"a", "b"}, ""},
	}
	for _, c := range cases {
		if got := findCommonName(c.names); got != c.want {
			t.Errorf("findCommonName(%v) = %q, want %q", c.names, got, c.want)
		}
	}
}

func TestFallbackGridNameConcatenates(t *testing.T) {
	r := NewRecord()
	record(t, r, "blue", grid25m(), band(1, 1, 1, 1))
	record(t, r, "twix", grid25m(), band(1, 1, 1, 1))
	record(t, r, "qa", grid50m(), band(1))
	record(t, r, "zz", grid50m(), band(1))

	_, grids, _, err := r.AsGeoDocs()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := grids["qa_zz"]; !ok {
		t.Errorf("expected concatenated fallback name, got %v", grids)
	}
}

func TestGridNameCollision(t *testing.T) {
	thirdGrid := geobox.GridSpec{
		Shape:     [2]int{1, 1},
		Transform: geobox.FromGDAL([6]float64{309375, 100, 0, -3866375, 0, -100}),
		CRS:       geobox.EPSGCRS(32655),
	}

	r := NewRecord()
	record(t, r, "a", grid25m(), band(1, 1, 1, 1))
	record(t, r, "b", grid25m(), band(1, 1, 1, 1))
	record(t, r, "swir_1", grid50m(), band(1))
	record(t, r, "swir_2", grid50m(), band(1))
	record(t, r, "swir_a", thirdGrid, band(1))
	record(t, r, "swir_b", thirdGrid, band(1))

	_, _, _, err := r.AsGeoDocs()
	if err == nil || !strings.Contains(err.Error(), "clashing grid names") {
		t.Errorf("expected grid name collision error, got %v", err)
	}
}

func TestMixedCRSRejected(t *testing.T) {
	other := grid50m()
	other.CRS = geobox.EPSGCRS(4326)

	r := NewRecord()
	record(t, r, "a", grid25m(), band(1, 1, 1, 1))
	record(t, r, "b", other, band(1))

	_, _, _, err := r.AsGeoDocs()
	if err == nil || !strings.Contains(err.Error(), "different CRSes") {
		t.Errorf("expected CRS mismatch error, got %v", err)
	}
}

func TestMeasurementNameSeparators(t *testing.T) {
	r := NewRecord()
	record(t, r, "oa:fmask", grid25m(), band(1, 1, 1, 1))

	_, _, measurements, err := r.AsGeoDocs()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := measurements["oa_fmask"]; !ok {
		t.Errorf("group separator should become underscore: %v", measurements)
	}
}

func TestIterPathsOrder(t *testing.T) {
	r := NewRecord()
	record(t, r, "red", grid25m(), band(1, 1, 1, 1))
	record(t, r, "qa", grid50m(), band(1))
	record(t, r, "blue", grid25m(), band(1, 1, 1, 1))

	first := r.IterPaths()
	want := []string{"red", "blue", "qa"}
	if len(first) != len(want) {
		t.Fatalf("got %d entries", len(first))
	}
	for i, name := range want {
		if first[i].Name != name {
			t.Errorf("entry %d is %s, want %s", i, first[i].Name, name)
		}
	}

	// Each call builds a fresh slice.
	second := r.IterPaths()
	second[0].Name = "mangled"
	if r.IterPaths()[0].Name != "red" {
		t.Error("IterPaths result aliases internal state")
	}
}

func TestValidDataUnionsGrids(t *testing.T) {
	r := NewRecord()
	record(t, r, "red", grid25m(), band(1, 1, 1, 1))
	record(t, r, "qa", grid50m(), band(1))

	poly, err := r.ValidData()
	if err != nil {
		t.Fatal(err)
	}
	if len(poly) == 0 {
		t.Fatal("expected non-empty valid data geometry")
	}
	// Both grids cover the same 50x50m square on the ground; their
	// buffered footprints overlap, and the union's area is bounded by
	// the larger buffered footprint.
	area := poly.Area()
	if area <= 0 {
		t.Errorf("area %v", area)
	}
}

func TestEmptyRecord(t *testing.T) {
	r := NewRecord()
	if _, _, _, err := r.AsGeoDocs(); err == nil {
		t.Error("expected error for empty record")
	}
	poly, err := r.ValidData()
	if err != nil {
		t.Fatal(err)
	}
	if poly != nil {
		t.Errorf("expected nil geometry, got %v", poly)
	}
}
