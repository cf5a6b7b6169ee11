package document

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NormaliseFunc converts a raw property value into its canonical form,
// or rejects it.
type NormaliseFunc func(interface{}) (interface{}, error)

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05.999999",
	"2006-01-02",
}

func datetimeType(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range datetimeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}
		return nil, fmt.Errorf("unparseable datetime %q", t)
	default:
		return nil, fmt.Errorf("expected datetime, got %T", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func floatType(v interface{}) (interface{}, error) {
	return toFloat(v)
}

func intType(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	default:
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
}

func percentType(v interface{}) (interface{}, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	if f < 0.0 || f > 100.0 {
		return nil, fmt.Errorf("expected percent between 0,100, got %v", f)
	}
	return f, nil
}

func degreesType(v interface{}) (interface{}, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	if f < -360.0 || f > 360.0 {
		return nil, fmt.Errorf("expected degrees between -360,360, got %v", f)
	}
	return f, nil
}

// normalisePlatform maps eg. 'LANDSAT_8' to 'landsat-8'.
func normalisePlatform(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string platform, got %T", v)
	}
	return strings.Replace(strings.ToLower(s), "_", "-", -1), nil
}

func ofEnumType(vals []string, lower, strict bool) NormaliseFunc {
	return func(v interface{}) (interface{}, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		if lower {
			s = strings.ToLower(s)
		}
		for _, val := range vals {
			if s == val {
				return s, nil
			}
		}
		msg := fmt.Sprintf("unexpected value %q, expected one of: %s", s, strings.Join(vals, ", "))
		if strict {
			return nil, fmt.Errorf("%s", msg)
		}
		log.Printf("warning: %s", msg)
		return s, nil
	}
}

func producerCheck(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string producer, got %T", v)
	}
	if !strings.Contains(s, ".") {
		log.Printf("warning: odc:producer is expected to be a domain name, eg 'usgs.gov' or 'ga.gov.au'")
	}
	return s, nil
}

// Every property seen or dealt with so far. A nil normaliser means the
// value passes through untouched. Keep sorted.
var knownProperties = map[string]NormaliseFunc{
	"datetime":                              datetimeType,
	"dea:dataset_maturity":                  ofEnumType([]string{"final", "interim", "nrt"}, true, true),
	"dea:processing_level":                  nil,
	"dtr:end_datetime":                      datetimeType,
	"dtr:start_datetime":                    datetimeType,
	"eo:azimuth":                            floatType,
	"eo:cloud_cover":                        percentType,
	"eo:epsg":                               nil,
	"eo:gsd":                                nil,
	"eo:instrument":                         nil,
	"eo:off_nadir":                          nil,
	"eo:platform":                           normalisePlatform,
	"eo:sun_azimuth":                        degreesType,
	"eo:sun_elevation":                      degreesType,
	"landsat:collection_category":           nil,
	"landsat:collection_number":             intType,
	"landsat:data_type":                     nil,
	"landsat:earth_sun_distance":            nil,
	"landsat:ephemeris_type":                nil,
	"landsat:geometric_rmse_model":          nil,
	"landsat:geometric_rmse_model_x":        nil,
	"landsat:geometric_rmse_model_y":        nil,
	"landsat:geometric_rmse_verify":         nil,
	"landsat:ground_control_points_model":   nil,
	"landsat:ground_control_points_verify":  nil,
	"landsat:ground_control_points_version": nil,
	"landsat:image_quality_oli":             nil,
	"landsat:image_quality_tirs":            nil,
	"landsat:landsat_product_id":            nil,
	"landsat:landsat_scene_id":              nil,
	"landsat:processing_software_version":   nil,
	"landsat:station_id":                    nil,
	"landsat:wrs_path":                      intType,
	"landsat:wrs_row":                       intType,
	"odc:dataset_version":                   nil,
	"odc:file_format":                       ofEnumType([]string{"GeoTIFF", "NetCDF"}, false, false),
	"odc:processing_datetime":               datetimeType,
	"odc:producer":                          producerCheck,
	"odc:product_family":                    nil,
	"odc:reference_code":                    nil,
	"odc:region_code":                       nil,
}

// InheritableProperties are safe to copy from a source dataset to its
// derivative: they describe the underlying acquisition rather than any
// one processing level.
var InheritableProperties = map[string]bool{
	"datetime":                    true,
	"eo:cloud_cover":              true,
	"eo:gsd":                      true,
	"eo:instrument":               true,
	"eo:platform":                 true,
	"eo:sun_azimuth":              true,
	"eo:sun_elevation":            true,
	"landsat:collection_category": true,
	"landsat:collection_number":   true,
	"landsat:landsat_product_id":  true,
	"landsat:landsat_scene_id":    true,
	"landsat:wrs_path":            true,
	"landsat:wrs_row":             true,
	"odc:region_code":             true,
}

// Properties is the normalising key/value view over a dataset's STAC
// properties.
type Properties map[string]interface{}

// Set stores a property value after normalisation. Unknown keys are
// logged and stored as-is; known keys with invalid values are an error.
func (p Properties) Set(key string, value interface{}) error {
	normalise, known := knownProperties[key]
	if !known {
		log.Printf("warning: unknown stac property %q", key)
	}
	if normalise != nil {
		normalised, err := normalise(value)
		if err != nil {
			return fmt.Errorf("property %s: %v", key, err)
		}
		value = normalised
	}
	p[key] = value
	return nil
}

// SetAll applies Set to each pair, failing on the first invalid value.
func (p Properties) SetAll(values map[string]interface{}) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := p.Set(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Datetime returns the acquisition datetime when present.
func (p Properties) Datetime() (time.Time, bool) {
	t, ok := p["datetime"].(time.Time)
	return t, ok
}

// SortedKeys orders keys for document output: unprefixed keys first,
// then prefixed keys, each group alphabetical.
func (p Properties) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return stacKeyOrder(keys[i]) < stacKeyOrder(keys[j])
	})
	return keys
}

func stacKeyOrder(key string) string {
	if strings.Contains(key, ":") {
		// Tilde sorts after all alphanumerics.
		return "~" + key
	}
	return key
}
