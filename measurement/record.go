// Package measurement accumulates the bands written into a dataset,
// grouped by grid, and turns them into document grids, measurements
// and valid-data geometry at finalise time.
package measurement

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ctessum/geom"

	"github.com/nci/eopackage/document"
	"github.com/nci/eopackage/footprint"
	"github.com/nci/eopackage/geobox"
	"github.com/nci/eopackage/raster"
)

type gridEntry struct {
	spec  geobox.GridSpec
	names []string
	paths map[string]string
	mask  *raster.Mask
}

// Record tracks measurements per grid. Grid iteration order is
// insertion order, so repeated packaging of the same inputs produces
// identical documents.
type Record struct {
	keys  []geobox.Key
	grids map[geobox.Key]*gridEntry
}

func NewRecord() *Record {
	return &Record{grids: map[geobox.Key]*gridEntry{}}
}

// IsEmpty reports whether any measurement has been recorded.
func (r *Record) IsEmpty() bool {
	return len(r.keys) == 0
}

// RecordImage registers a band against its grid. Band names are unique
// across the whole dataset, not just within a grid; a duplicate name is
// rejected without changing any state. When expandValidData is set the
// grid's valid-pixel mask is widened by every pixel differing from
// nodata.
func (r *Record) RecordImage(name string, grid geobox.GridSpec, path string, img raster.Raster, nodata *float64, expandValidData bool) error {
	for _, key := range r.keys {
		if existing, ok := r.grids[key].paths[name]; ok {
			return fmt.Errorf("duplicate addition of band called %q: original at %s and now %s", name, existing, path)
		}
	}

	key := grid.Key()
	entry, ok := r.grids[key]
	if !ok {
		entry = &gridEntry{spec: grid, paths: map[string]string{}}
		r.grids[key] = entry
		r.keys = append(r.keys, key)
	}

	if expandValidData {
		h, w := img.Dims()
		if entry.mask == nil {
			entry.mask = raster.NewMask(h, w)
		}
		// Without a nodata value every pixel is valid.
		nd := math.NaN()
		if nodata != nil {
			nd = *nodata
		}
		if err := entry.mask.Expand(img, nd); err != nil {
			return err
		}
	}

	entry.names = append(entry.names, name)
	entry.paths[name] = path
	return nil
}

// AsGeoDocs renders the recorded grids and measurements in document
// form. The grid carrying the most measurements becomes "default";
// every other grid is named from what its band names have in common.
// Ties on measurement count go to the earlier-registered grid.
func (r *Record) AsGeoDocs() (geobox.CRS, map[string]document.Grid, map[string]document.Measurement, error) {
	if len(r.keys) == 0 {
		return "", nil, nil, fmt.Errorf("no measurements recorded")
	}

	ordered := make([]*gridEntry, len(r.keys))
	for i, key := range r.keys {
		ordered[i] = r.grids[key]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].names) > len(ordered[j].names)
	})

	crs := ordered[0].spec.CRS
	gridDocs := map[string]document.Grid{}
	measurementDocs := map[string]document.Measurement{}
	for i, entry := range ordered {
		if entry.spec.CRS != crs {
			return "", nil, nil, fmt.Errorf("measurements have different CRSes in the same dataset: %q and %q", crs, entry.spec.CRS)
		}

		gridName := "default"
		if i != 0 {
			gridName = findCommonName(entry.names)
			if _, taken := gridDocs[gridName]; gridName != "" && taken {
				return "", nil, nil, fmt.Errorf("clashing grid names: %q already taken by another grid", gridName)
			}
			if gridName == "" {
				gridName = strings.Join(entry.names, "_")
			}
		}

		gridDocs[gridName] = document.Grid{
			Shape:     entry.spec.Shape,
			Transform: entry.spec.Transform.Nine(),
		}
		for _, name := range entry.names {
			doc := document.Measurement{Path: entry.paths[name]}
			if gridName != "default" {
				doc.Grid = gridName
			}
			// Group separators don't survive into the doc.
			measurementDocs[strings.Replace(name, ":", "_", -1)] = doc
		}
	}
	return crs, gridDocs, measurementDocs, nil
}

// ValidData unions the footprint of every grid's valid-pixel mask into
// one dataset geometry in CRS coordinates.
func (r *Record) ValidData() (geom.Polygon, error) {
	var geoms []geom.Polygon
	for _, key := range r.keys {
		entry := r.grids[key]
		if entry.mask == nil {
			continue
		}
		g, err := footprint.Footprint(entry.mask, entry.spec.Transform)
		if err != nil {
			return nil, err
		}
		if g != nil {
			geoms = append(geoms, g)
		}
	}
	return footprint.Union(geoms)
}

// PathEntry is one recorded band on disk.
type PathEntry struct {
	Grid geobox.GridSpec
	Name string
	Path string
}

// IterPaths returns every recorded band in grid-then-insertion order.
// The slice is freshly built per call.
func (r *Record) IterPaths() []PathEntry {
	var out []PathEntry
	for _, key := range r.keys {
		entry := r.grids[key]
		for _, name := range entry.names {
			out = append(out, PathEntry{Grid: entry.spec, Name: name, Path: entry.paths[name]})
		}
	}
	return out
}

func commonPrefix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefix := names[0]
	for _, name := range names[1:] {
		for !strings.HasPrefix(name, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

func commonSuffix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	suffix := names[0]
	for _, name := range names[1:] {
		for !strings.HasSuffix(name, suffix) {
			suffix = suffix[1:]
			if suffix == "" {
				return ""
			}
		}
	}
	return suffix
}

// findCommonName derives a grid name from a group of band names: the
// longer of their common prefix and common suffix, trimmed of group
// separators. Empty when the names share nothing usable.
func findCommonName(names []string) string {
	prefix := strings.Trim(commonPrefix(names), "_:")
	suffix := strings.Trim(commonSuffix(names), "_:")
	if len(suffix) > len(prefix) {
		return suffix
	}
	return prefix
}
