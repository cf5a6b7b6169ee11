// Package assembler orchestrates the packaging of one dataset: bands
// are written as COGs into a hidden work directory next to the
// destination, metadata and checksums accumulate alongside, and the
// finished directory is moved into place with a single rename.
package assembler

import (
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"github.com/nci/eopackage/checksum"
	"github.com/nci/eopackage/cogtif"
	"github.com/nci/eopackage/document"
	"github.com/nci/eopackage/geobox"
	"github.com/nci/eopackage/measurement"
	"github.com/nci/eopackage/raster"
	"github.com/nci/eopackage/validate"
)

const (
	Version = "1.0.0"
	RepoURL = "https://github.com/nci/eopackage"
)

// IfExists selects the behaviour when the destination directory turns
// out to already exist.
type IfExists int

const (
	ThrowError IfExists = iota
	Skip
	Overwrite
)

// ErrOverwriteUnsupported is returned under IfExists Overwrite; nobody
// has needed overwriting badly enough to define its semantics for a
// half-written conflicting package.
var ErrOverwriteUnsupported = errors.New("overwriting outputs is not supported")

// IncompleteDatasetError aborts packaging: the document failed
// validation with an error-level finding.
type IncompleteDatasetError struct {
	Finding validate.Message
}

func (e *IncompleteDatasetError) Error() string {
	return fmt.Sprintf("incomplete dataset: %s", e.Finding)
}

// Result describes a committed package.
type Result struct {
	ID       uuid.UUID
	Path     string
	Warnings []validate.Message
}

type softwareVersion struct {
	name    string
	url     string
	version string
}

// Validator is any document check producing leveled findings. The
// packaged validator is the default.
type Validator func(*document.Dataset) []validate.Message

type Assembler struct {
	destination string
	ifExists    IfExists
	workPath    string

	id         uuid.UUID
	label      string
	product    document.Product
	properties document.Properties

	record   *measurement.Record
	checksum *checksum.Manifest

	userSections     []string
	userMetadata     map[string]interface{}
	softwareVersions []softwareVersion
	lineage          map[string][]uuid.UUID
	accessories      map[string]string

	validator Validator
	finished  bool
}

type Option func(*Assembler)

// WithDatasetID overrides the autogenerated dataset id.
func WithDatasetID(id uuid.UUID) Option {
	return func(a *Assembler) { a.id = id }
}

// WithValidator replaces the default document validator.
func WithValidator(v Validator) Option {
	return func(a *Assembler) { a.validator = v }
}

// NewAssembler prepares a work directory for a dataset that will
// finally live at destination. The work directory is a hidden sibling
// so the final move stays within one filesystem.
func NewAssembler(destination string, ifExists IfExists, opts ...Option) (*Assembler, error) {
	parent := filepath.Dir(destination)
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("output location doesn't exist: %s", parent)
	}
	if _, err := os.Stat(destination); err == nil && ifExists == ThrowError {
		return nil, fmt.Errorf("dataset already exists: %s", destination)
	}

	workPath, err := ioutil.TempDir(parent, ".eopackage-")
	if err != nil {
		return nil, err
	}

	a := &Assembler{
		destination:  destination,
		ifExists:     ifExists,
		workPath:     workPath,
		id:           uuid.New(),
		properties:   document.Properties{},
		record:       measurement.NewRecord(),
		checksum:     checksum.NewManifest(),
		userMetadata: map[string]interface{}{},
		lineage:      map[string][]uuid.UUID{},
		accessories:  map[string]string{},
		validator:    validate.Validate,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Assembler) DatasetID() uuid.UUID {
	return a.id
}

// Properties is the live normalising property view for this dataset.
func (a *Assembler) Properties() document.Properties {
	return a.properties
}

func (a *Assembler) SetProduct(name, href string) {
	a.product = document.Product{Name: name, Href: href}
}

// SetLabel overrides the label that would otherwise be derived from
// the product name and datetime.
func (a *Assembler) SetLabel(label string) {
	a.label = label
}

// Label is the human-readable dataset identifier used in file names,
// eg "ga_ls8c_ard_20190704".
func (a *Assembler) Label() string {
	if a.label != "" {
		return a.label
	}
	dt, ok := a.properties.Datetime()
	if a.product.Name == "" || !ok {
		return ""
	}
	return fmt.Sprintf("%s_%s", a.product.Name, dt.Format("20060102"))
}

func (a *Assembler) measurementPath(name string) string {
	fname := strings.Replace(name, ":", "_", -1) + ".tif"
	if label := a.Label(); label != "" {
		fname = label + "_" + fname
	}
	return filepath.Join(a.workPath, fname)
}

// WriteMeasurement copies a band from an existing raster file,
// re-encoding it as a COG inside the package.
func (a *Assembler) WriteMeasurement(name, path string) error {
	img, grid, nodata, err := cogtif.ReadBand(path)
	if err != nil {
		return err
	}
	return a.WriteMeasurementRaster(name, img, grid, nodata, "AVERAGE")
}

// WriteMeasurementRaster writes an in-memory raster as a measurement.
// The file is checksummed immediately, while still hot in the
// filesystem cache.
func (a *Assembler) WriteMeasurementRaster(name string, img raster.Raster, grid geobox.GridSpec, nodata *float64, resampling string) error {
	outPath := a.measurementPath(name)
	if err := cogtif.WriteArray(img, outPath, grid, nodata, resampling, cogtif.DefaultOverviews); err != nil {
		return err
	}

	if err := a.noteFileFormat("GeoTIFF"); err != nil {
		return err
	}
	if err := a.record.RecordImage(name, grid, outPath, img, nodata, true); err != nil {
		return err
	}
	return a.checksum.AddFile(outPath)
}

// NoteMeasurement references a measurement at an existing external
// path. No data is copied; grid and valid-data information is read
// from the file.
func (a *Assembler) NoteMeasurement(name, path string) error {
	img, grid, nodata, err := cogtif.ReadBand(path)
	if err != nil {
		return err
	}
	return a.record.RecordImage(name, grid, path, img, nodata, true)
}

func (a *Assembler) noteFileFormat(format string) error {
	existing, ok := a.properties["odc:file_format"]
	if !ok {
		return a.properties.Set("odc:file_format", format)
	}
	if existing != format {
		return fmt.Errorf("inconsistent file formats between bands: was %v, now %v", existing, format)
	}
	return nil
}

// ExtendUserMetadata records a free-form section for the proc-info
// document. Section names are unique.
func (a *Assembler) ExtendUserMetadata(section string, doc interface{}) error {
	if _, ok := a.userMetadata[section]; ok {
		return fmt.Errorf("metadata section %s already exists", section)
	}
	a.userSections = append(a.userSections, section)
	a.userMetadata[section] = doc
	return nil
}

// NoteSoftwareVersion records the version of software used to produce
// the dataset. Software is identified by (name, url); re-noting the
// same pair with a different version is an error.
func (a *Assembler) NoteSoftwareVersion(name, url, version string) error {
	for _, v := range a.softwareVersions {
		if v.name == name && v.url == url {
			if v.version != version {
				return fmt.Errorf("duplicate setting of software %q with different value (%q != %q)", url, v.version, version)
			}
			return nil
		}
	}
	a.softwareVersions = append(a.softwareVersions, softwareVersion{name: name, url: url, version: version})
	return nil
}

// AddSourcePath records a source dataset from its metadata document
// path.
func (a *Assembler) AddSourcePath(path, classifier string, autoInherit bool) error {
	doc, err := document.FromPath(path)
	if err != nil {
		return err
	}
	return a.AddSourceDataset(doc, classifier, autoInherit)
}

// AddSourceDataset records a source dataset in the lineage. The
// classifier defaults to the source's odc:product_family. With
// autoInherit, acquisition-level properties are copied across;
// conflicts warn rather than fail, the existing value winning.
func (a *Assembler) AddSourceDataset(doc *document.Dataset, classifier string, autoInherit bool) error {
	if classifier == "" {
		family, _ := doc.Properties["odc:product_family"].(string)
		if family == "" {
			return fmt.Errorf("source dataset doesn't have an odc:product_family property (eg. 'level1'), specify a classifier for the kind of source dataset")
		}
		classifier = family
	}
	a.lineage[classifier] = append(a.lineage[classifier], doc.ID)

	if autoInherit {
		a.inheritPropertiesFrom(doc)
	}
	return nil
}

func (a *Assembler) inheritPropertiesFrom(doc *document.Dataset) {
	keys := make([]string, 0, len(doc.Properties))
	for k := range doc.Properties {
		if document.InheritableProperties[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		newVal := doc.Properties[k]
		existing, ok := a.properties[k]
		if !ok {
			a.properties[k] = newVal
			continue
		}
		if existing != newVal {
			log.Printf("warning: inheritable property %q is different from current value: %v != %v", k, existing, newVal)
		}
	}
}

// IterMeasurementPaths lists the measurements written so far and their
// current (work directory) paths.
func (a *Assembler) IterMeasurementPaths() []measurement.PathEntry {
	return a.record.IterPaths()
}

// Done validates, writes the metadata documents and checksum file, and
// atomically moves the package into place. Warning-level findings are
// logged and collected in the result; an error-level finding aborts
// with IncompleteDatasetError and nothing appears at the destination.
func (a *Assembler) Done() (*Result, error) {
	if a.finished {
		return nil, fmt.Errorf("assembler already finished")
	}
	if err := a.NoteSoftwareVersion("eopackage", RepoURL, Version); err != nil {
		return nil, err
	}

	d := document.NewDataset()
	d.ID = a.id
	d.Label = a.Label()
	d.Product = a.product
	for k, v := range a.properties {
		d.Properties[k] = v
	}
	for classifier, ids := range a.lineage {
		d.Lineage[classifier] = append([]uuid.UUID(nil), ids...)
	}

	if !a.record.IsEmpty() {
		crs, grids, measurements, err := a.record.AsGeoDocs()
		if err != nil {
			return nil, err
		}
		d.CRS = crs
		d.Grids = grids
		d.Measurements = measurements

		validData, err := a.record.ValidData()
		if err != nil {
			return nil, err
		}
		d.Geometry = document.EncodeGeometry(validData)
	}

	metadataPath := filepath.Join(a.workPath, "odc-metadata.yaml")
	checksumPath := filepath.Join(a.workPath, "package.sha1")
	procInfoPath := filepath.Join(a.workPath, "proc-info.yaml")
	d.Accessories["checksum:sha1"] = checksumPath
	d.Accessories["metadata:processor"] = procInfoPath

	if err := document.MakePathsRelative(d, a.workPath); err != nil {
		return nil, err
	}

	var warnings []validate.Message
	for _, m := range a.validator(d) {
		switch m.Level {
		case validate.Error:
			return nil, &IncompleteDatasetError{Finding: m}
		default:
			log.Printf("validation: %s", m)
			warnings = append(warnings, m)
		}
	}

	if err := document.WriteToPath(metadataPath, d); err != nil {
		return nil, err
	}
	if err := a.checksum.AddFile(metadataPath); err != nil {
		return nil, err
	}

	// The proc-info document may legitimately reference paths outside
	// the dataset, so it skips path relativisation.
	if err := a.writeProcInfo(procInfoPath); err != nil {
		return nil, err
	}
	if err := a.checksum.AddFile(procInfoPath); err != nil {
		return nil, err
	}

	// Written last: the manifest does not list itself.
	if err := a.checksum.Write(checksumPath); err != nil {
		return nil, err
	}

	// Temp directories default to 0700; match the destination parent.
	if info, err := os.Stat(filepath.Dir(a.destination)); err == nil {
		os.Chmod(a.workPath, info.Mode().Perm())
	}

	if err := os.Rename(a.workPath, a.destination); err != nil {
		// Someone else may have created the output while we worked.
		if _, statErr := os.Stat(a.destination); statErr != nil {
			return nil, err
		}
		switch a.ifExists {
		case Skip:
			log.Printf("skipping, already exists: %s", a.destination)
		case ThrowError:
			return nil, fmt.Errorf("dataset already exists: %s", a.destination)
		case Overwrite:
			return nil, ErrOverwriteUnsupported
		default:
			return nil, err
		}
	}

	a.finished = true
	return &Result{ID: d.ID, Path: a.destination, Warnings: warnings}, nil
}

func (a *Assembler) writeProcInfo(path string) error {
	doc := yaml.MapSlice{}
	for _, section := range a.userSections {
		doc = append(doc, yaml.MapItem{Key: section, Value: a.userMetadata[section]})
	}
	versions := make([]yaml.MapSlice, len(a.softwareVersions))
	for i, v := range a.softwareVersions {
		versions[i] = yaml.MapSlice{
			{Key: "name", Value: v.name},
			{Key: "url", Value: v.url},
			{Key: "version", Value: v.version},
		}
	}
	doc = append(doc, yaml.MapItem{Key: "software_versions", Value: versions})

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}

// Close removes the work directory. It is safe to call repeatedly and
// after Done; an unfinished assembly leaves no trace at the
// destination.
func (a *Assembler) Close() {
	if a.workPath != "" {
		os.RemoveAll(a.workPath)
	}
}
