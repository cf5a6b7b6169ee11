// Package document models the ODC dataset metadata document and its
// YAML serialisation.
package document

import (
	"fmt"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/google/uuid"
	"github.com/nci/eopackage/geobox"
)

const SchemaURL = "https://schemas.opendatacube.org/dataset"

type Product struct {
	Name string `yaml:"name"`
	Href string `yaml:"href,omitempty"`
}

// Grid is the document form of a grid: row/column shape and the
// 9-element affine transform.
type Grid struct {
	Shape     [2]int     `yaml:"shape,flow"`
	Transform [9]float64 `yaml:"transform,flow"`
}

type Measurement struct {
	Path string `yaml:"path"`
	Band int    `yaml:"band,omitempty"`
	Grid string `yaml:"grid,omitempty"`
}

// Dataset is the in-memory form of an odc-metadata.yaml document.
type Dataset struct {
	ID           uuid.UUID
	Label        string
	Product      Product
	CRS          geobox.CRS
	Geometry     *geojson.Geometry
	Grids        map[string]Grid
	Measurements map[string]Measurement
	Properties   Properties
	Accessories  map[string]string
	Lineage      map[string][]uuid.UUID
}

func NewDataset() *Dataset {
	return &Dataset{
		Grids:        map[string]Grid{},
		Measurements: map[string]Measurement{},
		Properties:   Properties{},
		Accessories:  map[string]string{},
		Lineage:      map[string][]uuid.UUID{},
	}
}

// EncodeGeometry renders a polygon as a GeoJSON geometry with closed
// rings. A polygon of several disjoint rings is promoted to a
// MultiPolygon, matching how unions of separate footprints serialise.
func EncodeGeometry(p geom.Polygon) *geojson.Geometry {
	if len(p) == 0 {
		return nil
	}
	if len(p) == 1 {
		return &geojson.Geometry{Type: "Polygon", Coordinates: closedRings(p)}
	}
	polys := make([][][][]float64, len(p))
	for i, ring := range p {
		polys[i] = closedRings(geom.Polygon{ring})
	}
	return &geojson.Geometry{Type: "MultiPolygon", Coordinates: polys}
}

func closedRings(p geom.Polygon) [][][]float64 {
	rings := make([][][]float64, len(p))
	for i, ring := range p {
		coords := make([][]float64, 0, len(ring)+1)
		for _, pt := range ring {
			coords = append(coords, []float64{pt.X, pt.Y})
		}
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			coords = append(coords, []float64{ring[0].X, ring[0].Y})
		}
		rings[i] = coords
	}
	return rings
}

// MakePathsRelative rewrites absolute measurement and accessory paths
// to be relative to base. Paths outside base are an error: a dataset
// document must be self-contained.
func MakePathsRelative(d *Dataset, base string) error {
	for name, m := range d.Measurements {
		rel, err := relativise(m.Path, base)
		if err != nil {
			return fmt.Errorf("measurement %s: %v", name, err)
		}
		m.Path = rel
		d.Measurements[name] = m
	}
	for name, path := range d.Accessories {
		rel, err := relativise(path, base)
		if err != nil {
			return fmt.Errorf("accessory %s: %v", name, err)
		}
		d.Accessories[name] = rel
	}
	return nil
}

func relativise(path, base string) (string, error) {
	if !filepath.IsAbs(path) {
		return path, nil
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", err
	}
	if len(rel) >= 2 && rel[:2] == ".." {
		return "", fmt.Errorf("path %s is outside dataset location %s", path, base)
	}
	return filepath.ToSlash(rel), nil
}
