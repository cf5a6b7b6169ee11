package raster

import (
	"fmt"
	"math"
)

// Mask is a per-grid boolean raster marking pixels that carry valid
// data. It is built up by OR-ing the valid pixels of every measurement
// written against the grid.
type Mask struct {
	Data          []bool
	Height, Width int
}

func NewMask(height, width int) *Mask {
	return &Mask{Data: make([]bool, height*width), Height: height, Width: width}
}

// Count returns the number of valid pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Expand ORs (pixel != nodata) into the mask. The comparison follows
// IEEE semantics: a NaN nodata value never equals any pixel, so every
// pixel is treated as valid.
func (m *Mask) Expand(r Raster, nodata float64) error {
	h, w := r.Dims()
	if h != m.Height || w != m.Width {
		return fmt.Errorf("mask shape (%d, %d) does not match raster shape (%d, %d)", m.Height, m.Width, h, w)
	}

	// NaN never equals anything, so every pixel counts as valid.
	if math.IsNaN(nodata) {
		for i := range m.Data {
			m.Data[i] = true
		}
		return nil
	}

	switch t := r.(type) {
	case *ByteRaster:
		noData := uint8(nodata)
		for i, v := range t.Data {
			if v != noData {
				m.Data[i] = true
			}
		}
	case *UInt16Raster:
		noData := uint16(nodata)
		for i, v := range t.Data {
			if v != noData {
				m.Data[i] = true
			}
		}
	case *Int16Raster:
		noData := int16(nodata)
		for i, v := range t.Data {
			if v != noData {
				m.Data[i] = true
			}
		}
	case *UInt32Raster:
		noData := uint32(nodata)
		for i, v := range t.Data {
			if v != noData {
				m.Data[i] = true
			}
		}
	case *Int32Raster:
		noData := int32(nodata)
		for i, v := range t.Data {
			if v != noData {
				m.Data[i] = true
			}
		}
	case *Float32Raster:
		noData := float32(nodata)
		for i, v := range t.Data {
			if v != noData {
				m.Data[i] = true
			}
		}
	case *Float64Raster:
		for i, v := range t.Data {
			if v != nodata {
				m.Data[i] = true
			}
		}
	case *BoolRaster:
		wantFalse := nodata != 0
		for i, v := range t.Data {
			if v != wantFalse {
				m.Data[i] = true
			}
		}
	case *Int64Raster:
		noData := int64(nodata)
		for i, v := range t.Data {
			if v != noData {
				m.Data[i] = true
			}
		}
	case *UInt64Raster:
		noData := uint64(nodata)
		for i, v := range t.Data {
			if v != noData {
				m.Data[i] = true
			}
		}
	default:
		return fmt.Errorf("unsupported raster type %s", r.DType())
	}
	return nil
}

// ExpandBits ORs ((pixel & bits) == bits) into the mask, for bit-flag
// quality rasters where validity is a flag rather than a fill value.
// Only integer rasters can carry bit flags.
func (m *Mask) ExpandBits(r Raster, bits uint64) error {
	h, w := r.Dims()
	if h != m.Height || w != m.Width {
		return fmt.Errorf("mask shape (%d, %d) does not match raster shape (%d, %d)", m.Height, m.Width, h, w)
	}

	switch t := r.(type) {
	case *ByteRaster:
		b := uint8(bits)
		for i, v := range t.Data {
			if v&b == b {
				m.Data[i] = true
			}
		}
	case *UInt16Raster:
		b := uint16(bits)
		for i, v := range t.Data {
			if v&b == b {
				m.Data[i] = true
			}
		}
	case *Int16Raster:
		b := int16(bits)
		for i, v := range t.Data {
			if v&b == b {
				m.Data[i] = true
			}
		}
	case *UInt32Raster:
		b := uint32(bits)
		for i, v := range t.Data {
			if v&b == b {
				m.Data[i] = true
			}
		}
	case *Int32Raster:
		b := int32(bits)
		for i, v := range t.Data {
			if v&b == b {
				m.Data[i] = true
			}
		}
	case *Int64Raster:
		b := int64(bits)
		for i, v := range t.Data {
			if v&b == b {
				m.Data[i] = true
			}
		}
	case *UInt64Raster:
		for i, v := range t.Data {
			if v&bits == bits {
				m.Data[i] = true
			}
		}
	default:
		return fmt.Errorf("bit tests need an integer raster, got %s", r.DType())
	}
	return nil
}
