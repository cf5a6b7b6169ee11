package document

import (
	"fmt"
	"io/ioutil"
	"sort"

	"github.com/ctessum/geom/encoding/geojson"
	"github.com/google/uuid"
	"github.com/nci/eopackage/geobox"
	"gopkg.in/yaml.v2"
)

// ToMapSlice renders the dataset in document key order. yaml.v2 maps
// randomise key order, so every mapping is built explicitly.
func ToMapSlice(d *Dataset) yaml.MapSlice {
	doc := yaml.MapSlice{
		{Key: "$schema", Value: SchemaURL},
		{Key: "id", Value: d.ID.String()},
	}
	if d.Label != "" {
		doc = append(doc, yaml.MapItem{Key: "label", Value: d.Label})
	}
	product := yaml.MapSlice{{Key: "name", Value: d.Product.Name}}
	if d.Product.Href != "" {
		product = append(product, yaml.MapItem{Key: "href", Value: d.Product.Href})
	}
	doc = append(doc, yaml.MapItem{Key: "product", Value: product})

	if d.CRS != "" {
		doc = append(doc, yaml.MapItem{Key: "crs", Value: string(d.CRS)})
	}
	if d.Geometry != nil {
		doc = append(doc, yaml.MapItem{Key: "geometry", Value: yaml.MapSlice{
			{Key: "type", Value: d.Geometry.Type},
			{Key: "coordinates", Value: d.Geometry.Coordinates},
		}})
	}

	grids := yaml.MapSlice{}
	for _, name := range sortedGridNames(d.Grids) {
		g := d.Grids[name]
		grids = append(grids, yaml.MapItem{Key: name, Value: yaml.MapSlice{
			{Key: "shape", Value: g.Shape[:]},
			{Key: "transform", Value: g.Transform[:]},
		}})
	}
	if len(grids) > 0 {
		doc = append(doc, yaml.MapItem{Key: "grids", Value: grids})
	}

	props := yaml.MapSlice{}
	for _, key := range d.Properties.SortedKeys() {
		props = append(props, yaml.MapItem{Key: key, Value: d.Properties[key]})
	}
	doc = append(doc, yaml.MapItem{Key: "properties", Value: props})

	measurements := yaml.MapSlice{}
	for _, name := range sortedMeasurementNames(d.Measurements) {
		m := d.Measurements[name]
		entry := yaml.MapSlice{{Key: "path", Value: m.Path}}
		if m.Band != 0 {
			entry = append(entry, yaml.MapItem{Key: "band", Value: m.Band})
		}
		if m.Grid != "" {
			entry = append(entry, yaml.MapItem{Key: "grid", Value: m.Grid})
		}
		measurements = append(measurements, yaml.MapItem{Key: name, Value: entry})
	}
	if len(measurements) > 0 {
		doc = append(doc, yaml.MapItem{Key: "measurements", Value: measurements})
	}

	if len(d.Accessories) > 0 {
		accessories := yaml.MapSlice{}
		names := make([]string, 0, len(d.Accessories))
		for name := range d.Accessories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			accessories = append(accessories, yaml.MapItem{
				Key:   name,
				Value: yaml.MapSlice{{Key: "path", Value: d.Accessories[name]}},
			})
		}
		doc = append(doc, yaml.MapItem{Key: "accessories", Value: accessories})
	}

	if len(d.Lineage) > 0 {
		lineage := yaml.MapSlice{}
		classifiers := make([]string, 0, len(d.Lineage))
		for c := range d.Lineage {
			classifiers = append(classifiers, c)
		}
		sort.Strings(classifiers)
		for _, c := range classifiers {
			ids := make([]string, len(d.Lineage[c]))
			for i, id := range d.Lineage[c] {
				ids[i] = id.String()
			}
			lineage = append(lineage, yaml.MapItem{Key: c, Value: ids})
		}
		doc = append(doc, yaml.MapItem{Key: "lineage", Value: lineage})
	}
	return doc
}

func sortedGridNames(grids map[string]Grid) []string {
	names := make([]string, 0, len(grids))
	for name := range grids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedMeasurementNames(measurements map[string]Measurement) []string {
	names := make([]string, 0, len(measurements))
	for name := range measurements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Marshal renders the dataset as a YAML document with an explicit
// start marker, the form the rest of the toolchain expects on disk.
func Marshal(d *Dataset) ([]byte, error) {
	body, err := yaml.Marshal(ToMapSlice(d))
	if err != nil {
		return nil, err
	}
	return append([]byte("---\n# Dataset\n"), body...), nil
}

// WriteToPath serialises the dataset document to a file.
func WriteToPath(path string, d *Dataset) error {
	data, err := Marshal(d)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}

type rawGeometry struct {
	Type        string      `yaml:"type"`
	Coordinates interface{} `yaml:"coordinates"`
}

type rawAccessory struct {
	Path string `yaml:"path"`
}

type rawDataset struct {
	Schema       string                  `yaml:"$schema"`
	ID           string                  `yaml:"id"`
	Label        string                  `yaml:"label"`
	Product      Product                 `yaml:"product"`
	CRS          string                  `yaml:"crs"`
	Geometry     *rawGeometry            `yaml:"geometry"`
	Grids        map[string]Grid         `yaml:"grids"`
	Measurements map[string]Measurement  `yaml:"measurements"`
	Properties   map[string]interface{}  `yaml:"properties"`
	Accessories  map[string]rawAccessory `yaml:"accessories"`
	Lineage      map[string][]string     `yaml:"lineage"`
}

// FromBytes parses a dataset document, normalising its properties.
func FromBytes(data []byte) (*Dataset, error) {
	var raw rawDataset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	d := NewDataset()
	if raw.ID != "" {
		id, err := uuid.Parse(raw.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid dataset id %q: %v", raw.ID, err)
		}
		d.ID = id
	}
	d.Label = raw.Label
	d.Product = raw.Product
	d.CRS = geobox.CRS(raw.CRS)
	if raw.Geometry != nil {
		d.Geometry = &geojson.Geometry{Type: raw.Geometry.Type, Coordinates: raw.Geometry.Coordinates}
	}
	for name, g := range raw.Grids {
		d.Grids[name] = g
	}
	for name, m := range raw.Measurements {
		d.Measurements[name] = m
	}
	if err := d.Properties.SetAll(raw.Properties); err != nil {
		return nil, err
	}
	for name, a := range raw.Accessories {
		d.Accessories[name] = a.Path
	}
	for classifier, ids := range raw.Lineage {
		parsed := make([]uuid.UUID, len(ids))
		for i, s := range ids {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("lineage %s: invalid id %q: %v", classifier, s, err)
			}
			parsed[i] = id
		}
		d.Lineage[classifier] = parsed
	}
	return d, nil
}

// FromPath loads and parses a dataset document file.
func FromPath(path string) (*Dataset, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return d, nil
}
