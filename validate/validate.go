// Package validate checks dataset documents before they are committed
// to disk. Findings carry a severity: only Error findings should stop
// a package from being written.
package validate

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	geo "github.com/nci/geometry"

	"github.com/nci/eopackage/document"
)

type Level int

const (
	Info Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Message is a single validation finding.
type Message struct {
	Level  Level
	Code   string
	Reason string
	Hint   string
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s: %s", m.Level, m.Code, m.Reason)
}

func errorf(code, format string, args ...interface{}) Message {
	return Message{Level: Error, Code: code, Reason: fmt.Sprintf(format, args...)}
}

func warningf(code, format string, args ...interface{}) Message {
	return Message{Level: Warning, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Validate runs every check against the document and returns the
// findings, worst first not guaranteed; callers filter by Level.
func Validate(d *document.Dataset) []Message {
	var msgs []Message

	if d.ID == uuid.Nil {
		msgs = append(msgs, errorf("no_id", "dataset has no id"))
	}
	if d.Product.Name == "" {
		msgs = append(msgs, errorf("no_product", "dataset has no product name"))
	}
	if d.CRS == "" {
		msgs = append(msgs, errorf("incomplete_crs", "dataset has no crs"))
	}

	if d.Geometry == nil {
		msgs = append(msgs, warningf("missing_geometry", "dataset has no valid-data geometry"))
	} else if msg := checkGeometry(d); msg != nil {
		msgs = append(msgs, *msg)
	}

	if len(d.Measurements) == 0 {
		msgs = append(msgs, warningf("no_measurements", "dataset has no measurements"))
	}
	for _, name := range sortedKeys(d.Measurements) {
		m := d.Measurements[name]
		grid := m.Grid
		if grid == "" {
			grid = "default"
		}
		if _, ok := d.Grids[grid]; !ok && len(d.Grids) > 0 {
			msgs = append(msgs, errorf("invalid_grid_ref",
				"measurement %s refers to unknown grid %q", name, grid))
		}
		if filepath.IsAbs(m.Path) {
			msgs = append(msgs, Message{
				Level:  Warning,
				Code:   "absolute_path",
				Reason: fmt.Sprintf("measurement %s has an absolute path: %s", name, m.Path),
				Hint:   "dataset documents are expected to be portable",
			})
		}
	}

	if _, ok := d.Properties.Datetime(); !ok {
		msgs = append(msgs, warningf("missing_datetime", "dataset has no datetime property"))
	}

	return msgs
}

// checkGeometry round-trips the document geometry through a GeoJSON
// feature parse. Geometry that cannot be read back, or renders to an
// empty WKT, would be unusable downstream.
func checkGeometry(d *document.Dataset) *Message {
	featJSON, err := json.Marshal(map[string]interface{}{
		"type":       "Feature",
		"geometry":   map[string]interface{}{"type": d.Geometry.Type, "coordinates": d.Geometry.Coordinates},
		"properties": map[string]interface{}{},
	})
	if err != nil {
		m := errorf("invalid_geometry", "geometry does not serialise: %v", err)
		return &m
	}
	var feat geo.Feature
	if err := json.Unmarshal(featJSON, &feat); err != nil {
		m := errorf("invalid_geometry", "geometry does not parse as GeoJSON: %v", err)
		return &m
	}
	if feat.Geometry == nil || feat.Geometry.MarshalWKT() == "" {
		m := errorf("invalid_geometry", "geometry of type %q is empty", d.Geometry.Type)
		return &m
	}
	return nil
}

func sortedKeys(m map[string]document.Measurement) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
