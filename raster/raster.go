// Package raster holds the in-memory band arrays handed to the
// packaging engine, one concrete type per pixel data type.
package raster

// Raster is a single band of pixels stored as a flat row-major array.
type Raster interface {
	Dims() (height, width int)
	GetNoData() float64
	// DType reports the GDAL-style data type name ("Byte", "Int16", ...).
	DType() string
}

type ByteRaster struct {
	Data          []uint8
	Height, Width int
	NoData        float64
}

func (r *ByteRaster) Dims() (int, int)   { return r.Height, r.Width }
func (r *ByteRaster) GetNoData() float64 { return r.NoData }
func (r *ByteRaster) DType() string      { return "Byte" }

type UInt16Raster struct {
	Data          []uint16
	Height, Width int
	NoData        float64
}

func (r *UInt16Raster) Dims() (int, int)   { return r.Height, r.Width }
func (r *UInt16Raster) GetNoData() float64 { return r.NoData }
func (r *UInt16Raster) DType() string      { return "UInt16" }

type Int16Raster struct {
	Data          []int16
	Height, Width int
	NoData        float64
}

func (r *Int16Raster) Dims() (int, int)   { return r.Height, r.Width }
func (r *Int16Raster) GetNoData() float64 { return r.NoData }
func (r *Int16Raster) DType() string      { return "Int16" }

type UInt32Raster struct {
	Data          []uint32
	Height, Width int
	NoData        float64
}

func (r *UInt32Raster) Dims() (int, int)   { return r.Height, r.Width }
func (r *UInt32Raster) GetNoData() float64 { return r.NoData }
func (r *UInt32Raster) DType() string      { return "UInt32" }

type Int32Raster struct {
	Data          []int32
	Height, Width int
	NoData        float64
}

func (r *Int32Raster) Dims() (int, int)   { return r.Height, r.Width }
func (r *Int32Raster) GetNoData() float64 { return r.NoData }
func (r *Int32Raster) DType() string      { return "Int32" }

type Float32Raster struct {
	Data          []float32
	Height, Width int
	NoData        float64
}

func (r *Float32Raster) Dims() (int, int)   { return r.Height, r.Width }
func (r *Float32Raster) GetNoData() float64 { return r.NoData }
func (r *Float32Raster) DType() string      { return "Float32" }

type Float64Raster struct {
	Data          []float64
	Height, Width int
	NoData        float64
}

func (r *Float64Raster) Dims() (int, int)   { return r.Height, r.Width }
func (r *Float64Raster) GetNoData() float64 { return r.NoData }
func (r *Float64Raster) DType() string      { return "Float64" }

// BoolRaster holds mask-style data. The COG writer coerces it to bytes,
// GeoTIFF having no boolean type.
type BoolRaster struct {
	Data          []bool
	Height, Width int
	NoData        float64
}

func (r *BoolRaster) Dims() (int, int)   { return r.Height, r.Width }
func (r *BoolRaster) GetNoData() float64 { return r.NoData }
func (r *BoolRaster) DType() string      { return "Bool" }

// Int64Raster exists so 64-bit integer sources can be represented and
// rejected with a clear error at write time; GeoTIFF does not support
// the type.
type Int64Raster struct {
	Data          []int64
	Height, Width int
	NoData        float64
}

func (r *Int64Raster) Dims() (int, int)   { return r.Height, r.Width }
func (r *Int64Raster) GetNoData() float64 { return r.NoData }
func (r *Int64Raster) DType() string      { return "Int64" }

type UInt64Raster struct {
	Data          []uint64
	Height, Width int
	NoData        float64
}

func (r *UInt64Raster) Dims() (int, int)   { return r.Height, r.Width }
func (r *UInt64Raster) GetNoData() float64 { return r.NoData }
func (r *UInt64Raster) DType() string      { return "UInt64" }

// AsBytes converts a BoolRaster to its byte representation.
func (r *BoolRaster) AsBytes() *ByteRaster {
	out := &ByteRaster{Data: make([]uint8, len(r.Data)), Height: r.Height, Width: r.Width, NoData: r.NoData}
	for i, v := range r.Data {
		if v {
			out.Data[i] = 1
		}
	}
	return out
}
